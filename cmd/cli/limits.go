package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var resetPrefix string

var resetLimitsCmd = &cobra.Command{
	Use:   "reset-limits",
	Short: "Clear window counters, optionally scoped to a client key prefix.",
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := json.Marshal(map[string]string{
			"client_key_prefix": resetPrefix,
		})
		if err != nil {
			return err
		}

		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := client.Post(serverURL+"/api/v1/admin/limits/reset",
			"application/json", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("reset request failed: %w", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("reset failed with status %d: %s", resp.StatusCode, body)
		}

		var result struct {
			Removed int `json:"removed"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return fmt.Errorf("unexpected reset response: %w", err)
		}

		fmt.Printf("removed %d counter(s)\n", result.Removed)
		return nil
	},
}

func init() {
	resetLimitsCmd.Flags().StringVar(&resetPrefix, "prefix", "",
		"client key prefix to reset; empty clears all counters")
}
