package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm/clause"

	"github.com/ferndale/shiftboard/internal/models"
)

func newSimulateCmd() *cobra.Command {
	var (
		configPath string
		offset     time.Duration
		clear      bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Shift the engine clock for training sessions",
		Long: `Sets a simulated clock offset, moving the whole engine to a different
wall-clock time: period resolution, task availability, and checkpoint
resets all follow. A running server picks the change up within seconds.

Examples:
  sb simulate --offset 13h30m   # jump from 09:00 into the 22:30 close
  sb simulate --clear           # back to real time`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, configPath, offset, clear)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	cmd.Flags().DurationVar(&offset, "offset", 0, "offset from real time (e.g. 13h30m, -2h)")
	cmd.Flags().BoolVar(&clear, "clear", false, "clear the offset and return to real time")
	return cmd
}

func runSimulate(cmd *cobra.Command, configPath string, offset time.Duration, clear bool) error {
	if clear {
		offset = 0
	} else if offset == 0 {
		return fmt.Errorf("simulate: pass --offset or --clear")
	}

	_, conn, err := openStore(configPath)
	if err != nil {
		return err
	}

	state := models.ClockState{ID: 1, OffsetSeconds: int64(offset / time.Second)}
	err = conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"offset_seconds", "updated_at"}),
	}).Create(&state).Error
	if err != nil {
		return fmt.Errorf("simulate: persist offset: %w", err)
	}

	out := cmd.OutOrStdout()
	if offset == 0 {
		fmt.Fprintln(out, "Simulated clock cleared; engine follows real time")
		return nil
	}
	fmt.Fprintf(out, "Simulated clock set: offset %s, effective time %s\n",
		offset, time.Now().Add(offset).Format("2006-01-02 15:04"))
	return nil
}
