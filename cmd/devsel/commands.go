package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/devsel/internal/device"
	"github.com/nerrad567/devsel/internal/history"
	"github.com/nerrad567/devsel/internal/session"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured devices",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			c, err := a.loadCatalog()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tENABLED")
			for _, id := range c.IDs() {
				fmt.Fprintf(tw, "%s\t%t\n", id, c.Enabled(id))
			}
			return tw.Flush()
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	var (
		strict bool
		record bool
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Select a device and describe it",
		Long: `Select a device and describe it.

An unknown id is reported and leaves nothing selected. A device missing
mandatory system keys is described with blank fields. With --strict either
case exits non-zero.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c, err := a.loadCatalog()
			if err != nil {
				return err
			}

			outcome, selErr := c.Select(args[0])
			switch outcome {
			case device.OutcomeNothing:
				return fmt.Errorf("device id must not be empty")
			case device.OutcomeUnknown:
				fmt.Fprintf(a.stderr, "warning: %v\n", selErr)
				if strict {
					return selErr
				}
				return nil
			case device.OutcomeInvalid:
				fmt.Fprintf(a.stderr, "warning: %v\n", selErr)
			}

			text, _ := c.Describe()
			fmt.Fprintln(a.stdout, text)
			fmt.Fprintf(a.stdout, "    Enabled: %t\n", c.IsEnabled())

			if record {
				out, err := yaml.Marshal(map[string]any(c.Record()))
				if err != nil {
					return fmt.Errorf("encoding record: %w", err)
				}
				fmt.Fprintf(a.stdout, "\n%s", out)
			}

			if strict && selErr != nil {
				return selErr
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero for unknown or invalid devices")
	cmd.Flags().BoolVar(&record, "record", false, "print the full device record as YAML")
	return cmd
}

func newDetectCmd(a *app) *cobra.Command {
	var (
		asJSON bool
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Probe every enabled device once and report which answered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			c, err := a.loadCatalog()
			if err != nil {
				return err
			}

			var observers []device.SweepObserver
			if a.cfg.Database.Enabled {
				db, err := a.openDatabase(ctx)
				if err != nil {
					return err
				}
				defer db.Close() //nolint:errcheck // Read-mostly CLI, nothing to recover
				observers = append(observers, history.NewStore(db.DB, a.log))
			}

			detector := device.NewDetector(c, a.sessionFactory(),
				device.WithLogger(a.log),
				device.WithObservers(observers...),
			)
			result := detector.Detect(ctx)

			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return fmt.Errorf("encoding result: %w", err)
				}
			} else if err := printResult(a.stdout, result); err != nil {
				return err
			}

			if strict && result.Selection.State() != device.StateSelected {
				return fmt.Errorf("detection ended %s", result.Selection.State())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the sweep result as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero unless exactly one device answered")
	return cmd
}

// printResult renders a sweep as a probe table and a summary line.
func printResult(w io.Writer, result device.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tENABLED\tLIVE\tDURATION\tERROR")
	for _, p := range result.Probes {
		fmt.Fprintf(tw, "%s\t%t\t%t\t%s\t%s\n",
			p.ID, p.Enabled, p.Live, p.Duration.Round(time.Millisecond), p.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nselection: %s (matches: %d)\n", result.Selection, len(result.Matches))
	return nil
}

func newPortsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports present on this host",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ports, err := session.ListPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Fprintln(a.stdout, "no serial ports found")
				return nil
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tUSB\tVID:PID\tSERIAL\tPRODUCT")
			for _, p := range ports {
				ids := ""
				if p.USB {
					ids = p.VID + ":" + p.PID
				}
				fmt.Fprintf(tw, "%s\t%t\t%s\t%s\t%s\n", p.Name, p.USB, ids, p.SerialNumber, p.Product)
			}
			return tw.Flush()
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded sweeps, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.Database.Enabled {
				return errors.New("history needs database.enabled")
			}
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}

			db, err := a.openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // Read-only command

			sweeps, err := history.NewStore(db.DB, a.log).List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SWEEP\tSTARTED\tDURATION\tSELECTION\tMATCHES")
			for _, s := range sweeps {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					s.ID,
					s.StartedAt.Local().Format(time.DateTime),
					s.Duration.Round(time.Millisecond),
					s.Selection,
					strconv.Itoa(len(s.Matches)),
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultLimit, "number of sweeps to show")
	return cmd
}
