package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ferndale/shiftboard/internal/boundary"
	"github.com/ferndale/shiftboard/internal/catalog"
	"github.com/ferndale/shiftboard/internal/clock"
	"github.com/ferndale/shiftboard/internal/lifecycle"
	"github.com/ferndale/shiftboard/internal/period"
)

func newStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the live shift state",
		Long:  "Prints the current period, per-role task lists, raised triggers, and upcoming checkpoints.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.OutOrStdout(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	return cmd
}

func runStatus(out io.Writer, configPath string) error {
	cfg, conn, err := openStore(configPath)
	if err != nil {
		return err
	}
	clk := clock.New()
	eng, err := buildEngine(cfg, conn, clk)
	if err != nil {
		return err
	}

	now := clk.Now()
	fmt.Fprintf(out, "Site:          %s\n", cfg.Site)
	fmt.Fprintf(out, "Time:          %s", now.Format("2006-01-02 15:04"))
	if clk.Simulated() {
		fmt.Fprintf(out, " (simulated, offset %s)", clk.Offset())
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Business date: %s\n", lifecycle.BusinessDate(now, cfg.DayOpenMinutes()))

	fmt.Fprintf(out, "Period:        %s\n", describePeriod(eng.CurrentPeriod()))
	fmt.Fprintf(out, "Next period:   %s\n", describePeriod(eng.NextPeriod()))

	if triggers := eng.Triggers(); len(triggers) > 0 {
		fmt.Fprintf(out, "Triggers:      %v\n", triggers)
	}

	for _, role := range []catalog.Role{catalog.RoleManager, catalog.RoleChef, catalog.RoleDutyManager} {
		views := eng.TasksNow(role)
		if len(views) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s:\n", role)
		for _, v := range views {
			marker := string(v.Status)
			if v.Template.Notice {
				marker = "notice"
			}
			fmt.Fprintf(out, "  [%-9s] %s\n", marker, v.Template.Title)
		}
	}

	fmt.Fprintln(out, "\nCheckpoints:")
	sched := &boundary.Scheduler{Clock: clk}
	for _, cp := range cfg.Checkpoints {
		next, err := sched.NextFire(cp)
		if err != nil {
			fmt.Fprintf(out, "  %-12s invalid: %v\n", cp.ID, err)
			continue
		}
		fmt.Fprintf(out, "  %-12s next at %s (in %s)\n", cp.ID, next.Format("2006-01-02 15:04"), next.Sub(now).Round(time.Minute))
	}
	return nil
}

func describePeriod(p *period.Period) string {
	if p == nil {
		return "none (closed hours)"
	}
	name := p.DisplayName
	if name == "" {
		name = p.ID
	}
	return fmt.Sprintf("%s (%s–%s)", name, period.FormatMinutes(p.Start), period.FormatMinutes(p.End))
}
