package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ferndale/shiftboard/internal/config"
)

func newTriggerCmd() *cobra.Command {
	var (
		configPath string
		raisedBy   string
	)

	cmd := &cobra.Command{
		Use:   "trigger <name>",
		Short: "Raise an operational trigger on the running server",
		Long: `Raises a trigger against the running server, e.g. when the last
customer has left and the closing tasks should open up:

  sb trigger last-customer-left-dinner --by mgr-anna`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runTrigger(cmd.OutOrStdout(), cfg, args[0], raisedBy)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	cmd.Flags().StringVar(&raisedBy, "by", "", "user id raising the trigger")
	return cmd
}

func runTrigger(out io.Writer, cfg *config.Config, name, raisedBy string) error {
	body, err := json.Marshal(map[string]string{"name": name, "raised_by": raisedBy})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://localhost:%d/api/triggers", cfg.API.Port)
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("trigger: is the server running? %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("trigger: server returned %d: %s", resp.StatusCode, msg)
	}
	fmt.Fprintf(out, "Raised %s\n", name)
	return nil
}
