package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gatehouse/internal/audit"
	"github.com/nerrad567/gatehouse/internal/auth"
	"github.com/nerrad567/gatehouse/internal/device"
	"github.com/nerrad567/gatehouse/internal/discovery"
	"github.com/nerrad567/gatehouse/internal/infrastructure/config"
	"github.com/nerrad567/gatehouse/internal/infrastructure/database"
	"github.com/nerrad567/gatehouse/internal/infrastructure/logging"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	envFile    string
}

// newRootCmd builds the command tree. With no subcommand the root runs serve.
func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "gatehouse",
		Short:         "Track devices entering and leaving a facility",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return loadDotEnv(flags.envFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), resolveConfigPath(flags.configPath))
		},
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "",
		"config file (default $"+configPathEnv+" or "+defaultConfigPath+")")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before configuration")

	root.AddCommand(
		newServeCmd(flags),
		newMigrateCmd(flags),
		newDevicesCmd(flags),
		newExportCmd(flags),
		newHashPasswordCmd(),
		newDiscoverCmd(flags),
	)
	return root
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), resolveConfigPath(flags.configPath))
		},
	}
}

func newMigrateCmd(flags *globalFlags) *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQLite migrations, or roll back the latest with --down",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(resolveConfigPath(flags.configPath))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			db, err := database.Open(ctx, database.Config{
				Path:        cfg.Database.Path,
				WALMode:     cfg.Database.WALMode,
				BusyTimeout: cfg.Database.BusyTimeout,
			})
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			out := cmd.OutOrStdout()
			if down {
				rolledBack, err := db.MigrateDown(ctx)
				if err != nil {
					return fmt.Errorf("rolling back: %w", err)
				}
				if rolledBack == "" {
					fmt.Fprintln(out, "no migrations applied")
					return nil
				}
				fmt.Fprintf(out, "rolled back %s\n", rolledBack)
				return nil
			}

			applied, err := db.Migrate(ctx)
			if err != nil {
				return err
			}
			status, err := db.GetMigrationStatus(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "applied %d migration(s), current version %s\n", applied, status.Current())
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back the most recent migration")
	return cmd
}

func newDevicesCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Inspect registered devices",
	}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "Print devices newest first with occupancy totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := device.ParseStatusFilter(status)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), resolveConfigPath(flags.configPath), logging.Discard())
			if err != nil {
				return err
			}
			defer a.Close()

			history, err := a.registry.History(cmd.Context())
			if err != nil {
				return err
			}
			return printDevices(cmd.OutOrStdout(), history, filter, a.cfg.Location())
		},
	}
	list.Flags().StringVarP(&status, "status", "s", string(device.FilterAll), "todos, pendiente, validado or entregado")
	cmd.AddCommand(list)
	return cmd
}

// printDevices writes a tab-aligned table of the filtered devices followed by
// occupancy totals for the whole set.
func printDevices(w io.Writer, devices []device.Device, filter device.StatusFilter, loc *time.Location) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNOMBRE\tSERIE\tRESPONSABLE\tMOVIMIENTO\tESTADO\tFECHA")
	for _, d := range device.FilterByStatus(devices, filter) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			d.ID, d.Name, d.SerialNumber, d.Responsible,
			d.MovementType.Label(), d.Status.Label(),
			d.Timestamp.In(loc).Format(device.ExportTimeLayout),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	occ := device.ComputeStats(devices)
	_, err := fmt.Fprintf(w, "\nDentro: %d  Fuera: %d  Total: %d\n", occ.Inside, occ.Outside, occ.Total)
	return err
}

func newExportCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export device history",
	}

	var output string
	csvCmd := &cobra.Command{
		Use:   "csv",
		Short: "Write the history as CSV (" + device.ExportFilename + ")",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, resolveConfigPath(flags.configPath), logging.Discard())
			if err != nil {
				return err
			}
			defer a.Close()

			history, err := a.registry.History(ctx)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			if err := device.WriteCSV(w, history, a.cfg.Location()); err != nil {
				return err
			}

			if err := a.audit.Create(ctx, &audit.AuditLog{
				Action:     audit.ActionExport,
				EntityType: audit.EntityHistory,
				Source:     audit.SourceCLI,
				Details:    map[string]any{"rows": len(history), "output": output},
			}); err != nil {
				a.log.Warn("audit write failed", "error", err)
			}

			if output != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d device(s) to %s\n", len(history), output)
			}
			return nil
		},
	}
	csvCmd.Flags().StringVarP(&output, "output", "o", device.ExportFilename, "output file, or - for stdout")
	cmd.AddCommand(csvCmd)
	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print an Argon2id hash for security.auth.operators",
		Long: "Print an Argon2id hash for security.auth.operators.\n" +
			"The password is read from the first line of stdin when not given as an argument.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("reading password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newDiscoverCmd(flags *globalFlags) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find other Gatehouse instances on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(resolveConfigPath(flags.configPath))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			peers, err := discovery.Browse(cmd.Context(), cfg.Discovery.Service, cfg.Discovery.Domain, timeout)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(peers) == 0 {
				fmt.Fprintln(out, "no instances found")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INSTANCE\tSITE\tVERSION\tURL")
			for _, p := range peers {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Instance, p.SiteID, p.Version, p.URL())
			}
			return tw.Flush()
		},
	}
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 3*time.Second, "how long to listen for answers")
	return cmd
}
