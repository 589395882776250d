package device

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// ExportTimeLayout is the timestamp format used in CSV exports.
const ExportTimeLayout = "02/01/2006 15:04:05"

// ExportFilename is the suggested download name for the CSV export.
const ExportFilename = "dispositivos.csv"

// exportHeader lists the CSV columns in output order.
var exportHeader = []string{
	"Nombre",
	"Marca",
	"Número de Serie",
	"Responsable",
	"Motivo",
	"Fecha",
	"Estado",
	"Tipo de Movimiento",
}

// WriteCSV writes devices as comma-separated rows with a header line.
// Rows are written in the order given; callers pass SortHistory output for
// the chronological export. Timestamps are rendered in loc (UTC when nil).
func WriteCSV(w io.Writer, devices []Device, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for i := range devices {
		d := &devices[i]
		record := []string{
			d.Name,
			d.Brand,
			d.SerialNumber,
			d.Responsible,
			d.Reason,
			d.Timestamp.In(loc).Format(ExportTimeLayout),
			d.Status.Label(),
			d.MovementType.Label(),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row for device %s: %w", d.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}
