package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/ferndale/shiftboard/internal/api"
	"github.com/ferndale/shiftboard/internal/boundary"
	"github.com/ferndale/shiftboard/internal/clock"
	"github.com/ferndale/shiftboard/internal/config"
	"github.com/ferndale/shiftboard/internal/db"
	"github.com/ferndale/shiftboard/internal/models"
	"github.com/ferndale/shiftboard/internal/notify"
)

// clockSyncInterval is how often the server re-reads the persisted clock
// offset, so `sb simulate` takes effect without a restart.
const clockSyncInterval = 15 * time.Second

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Shiftboard server",
		Long:  "Runs the API, the checkpoint scheduler, and chat alert delivery until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	cfg, conn, err := openStore(configPath)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(conn); err != nil {
		return err
	}

	clk := clock.New()
	eng, err := buildEngine(cfg, conn, clk)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Shiftboard serving site %q\n", cfg.Site)
	if clk.Simulated() {
		fmt.Fprintf(out, "Simulated clock active: now %s\n", clk.Now().Format(time.RFC3339))
	}

	// Checkpoint scheduler: fires day-open and late-close resets.
	sched := &boundary.Scheduler{
		DB:          conn,
		Clock:       clk,
		Engine:      eng,
		Checkpoints: cfg.Checkpoints,
		Out:         out,
	}
	go func() {
		if err := sched.Run(ctx); err != nil {
			log.Printf("boundary: %v", err)
		}
	}()

	// Chat alerts for rejections, triggers, and resets.
	if n := buildNotifier(cfg, out); n != nil {
		events, cancel := eng.Subscribe()
		defer cancel()
		defer n.Close()
		go notify.Dispatch(ctx, events, n)
	}

	go syncClock(ctx, conn, clk)

	return api.Start(ctx, api.StartOpts{
		Engine: eng,
		Port:   cfg.API.Port,
		Out:    out,
	})
}

// buildNotifier assembles the configured chat notifiers, or nil when none
// are configured.
func buildNotifier(cfg *config.Config, out io.Writer) notify.Notifier {
	var targets notify.Fanout
	if cfg.Notify.Slack.BotToken != "" {
		s, err := notify.NewSlack(notify.SlackOpts{
			BotToken: cfg.Notify.Slack.BotToken,
			Channel:  cfg.Notify.Slack.Channel,
		})
		if err != nil {
			fmt.Fprintf(out, "slack disabled: %v\n", err)
		} else {
			targets = append(targets, s)
		}
	}
	if cfg.Notify.Discord.BotToken != "" {
		d, err := notify.NewDiscord(notify.DiscordOpts{
			BotToken:  cfg.Notify.Discord.BotToken,
			ChannelID: cfg.Notify.Discord.ChannelID,
		})
		if err != nil {
			fmt.Fprintf(out, "discord disabled: %v\n", err)
		} else {
			targets = append(targets, d)
		}
	}
	if len(targets) == 0 {
		return nil
	}
	return targets
}

// syncClock re-applies the persisted simulated offset periodically.
func syncClock(ctx context.Context, conn *gorm.DB, clk *clock.Clock) {
	ticker := time.NewTicker(clockSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var state models.ClockState
			if err := conn.First(&state, 1).Error; err != nil {
				continue
			}
			offset := time.Duration(state.OffsetSeconds) * time.Second
			if clk.Offset() != offset {
				clk.SetOffset(offset)
			}
		}
	}
}
