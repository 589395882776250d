package notify

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"gopkg.in/gomail.v2"
)

// EmailNotifier sends a plain text and HTML message over SMTP.
type EmailNotifier struct {
	from string
	to   []string
	send func(msgs ...*gomail.Message) error
}

// NewEmailNotifier returns a notifier that dials host:port for every event.
// Credentials are optional for relays that accept unauthenticated mail.
func NewEmailNotifier(host string, port int, username, password, from string, to []string) *EmailNotifier {
	dialer := gomail.NewDialer(host, port, username, password)
	return &EmailNotifier{
		from: from,
		to:   to,
		send: dialer.DialAndSend,
	}
}

// Name implements Notifier.
func (e *EmailNotifier) Name() string { return "email" }

// Notify implements Notifier. gomail has no context support; ctx is only
// checked before dialling.
func (e *EmailNotifier) Notify(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.send(e.message(ev)); err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	return nil
}

func (e *EmailNotifier) message(ev Event) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", e.to...)
	subject := "[Gatehouse] " + ev.Title()
	if ev.Site != "" {
		subject = fmt.Sprintf("[Gatehouse %s] %s", ev.Site, ev.Title())
	}
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", plainBody(ev))
	m.AddAlternative("text/html", htmlBody(ev))
	return m
}

type row struct{ Label, Value string }

func rows(ev Event) []row {
	d := ev.Device
	return []row{
		{"Nombre", d.Name},
		{"Marca", d.Brand},
		{"Número de Serie", d.SerialNumber},
		{"Responsable", d.Responsible},
		{"Motivo", d.Reason},
		{"Fecha", ev.When()},
		{"Estado", d.Status.Label()},
		{"Tipo de Movimiento", d.MovementType.Label()},
	}
}

func plainBody(ev Event) string {
	var b strings.Builder
	b.WriteString(ev.Title())
	b.WriteString("\n\n")
	for _, r := range rows(ev) {
		fmt.Fprintf(&b, "%s: %s\n", r.Label, r.Value)
	}
	fmt.Fprintf(&b, "\nDentro: %d  Fuera: %d\n", ev.Occupancy.Inside, ev.Occupancy.Outside)
	return b.String()
}

var htmlTemplate = template.Must(template.New("event").Parse(`<h2>{{.Title}}</h2>
<table>{{range .Rows}}
<tr><th align="left">{{.Label}}</th><td>{{.Value}}</td></tr>{{end}}
</table>
<p>Dentro: {{.Inside}} &middot; Fuera: {{.Outside}}</p>
`))

func htmlBody(ev Event) string {
	var b strings.Builder
	_ = htmlTemplate.Execute(&b, map[string]any{ //nolint:errcheck // template is static and fields are strings
		"Title":   ev.Title(),
		"Rows":    rows(ev),
		"Inside":  ev.Occupancy.Inside,
		"Outside": ev.Occupancy.Outside,
	})
	return b.String()
}
