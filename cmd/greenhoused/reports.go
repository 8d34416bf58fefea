package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"greenhouse-backend/internal/db"
	"greenhouse-backend/internal/report"
	"greenhouse-backend/internal/store"
)

var (
	exportFormat string
	exportOutput string
)

var dueCmd = &cobra.Command{
	Use:   "due",
	Short: "Print machines due for repair within a week",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDashboard(cmd)
		if err != nil {
			return err
		}
		return printDue(cmd.OutOrStdout(), d)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the due-for-repair report as xlsx or pdf",
	RunE: func(cmd *cobra.Command, args []string) error {
		var build func(report.Dashboard) ([]byte, error)
		switch exportFormat {
		case "xlsx":
			build = report.BuildDueXLSX
		case "pdf":
			build = report.BuildDuePDF
		default:
			return fmt.Errorf("unknown format %q (xlsx or pdf)", exportFormat)
		}

		d, err := loadDashboard(cmd)
		if err != nil {
			return err
		}
		body, err := build(d)
		if err != nil {
			return err
		}

		out := exportOutput
		if out == "" {
			out = fmt.Sprintf("due-for-repair-%s.%s", d.GeneratedAt.Format("20060102"), exportFormat)
		}
		if err := os.WriteFile(out, body, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d due machine(s) to %s\n", len(d.Due), out)
		return nil
	},
}

func loadDashboard(cmd *cobra.Command) (report.Dashboard, error) {
	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		return report.Dashboard{}, err
	}
	machines, err := store.NewGormStore(gormDB).ListMachines(cmd.Context(), store.MachineFilter{})
	if err != nil {
		return report.Dashboard{}, err
	}
	return report.Build(machines, time.Now().UTC()), nil
}

func printDue(w io.Writer, d report.Dashboard) error {
	if len(d.Due) == 0 {
		_, err := fmt.Fprintln(w, "No machines are due for repair.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLOCATION\tNEXT REPAIR\tDAYS\tSTATUS\tPARTS")
	for _, dm := range d.Due {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			dm.Machine.Name,
			dm.Machine.Location,
			dm.Status.NextRepairDate.Format("2006-01-02"),
			dm.Status.RemainingDays,
			dm.Status.Band,
			strings.Join(dm.Machine.Parts, ", "))
	}
	return tw.Flush()
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "xlsx", "xlsx or pdf")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default due-for-repair-YYYYMMDD.<format>)")
}
