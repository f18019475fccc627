package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func newSessionCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Create, inspect, extend, and end sessions on a running ragcored server",
	}
	cmd.PersistentFlags().StringVar(&server, "server", "http://localhost:8080", "ragcored server base URL")

	cmd.AddCommand(newSessionCreateCmd(&server))
	cmd.AddCommand(newSessionGetCmd(&server))
	cmd.AddCommand(newSessionExtendCmd(&server))
	cmd.AddCommand(newSessionEndCmd(&server))
	return cmd
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

func newSessionCreateCmd(server *string) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a new session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionRequest(cmd, http.MethodPost, *server+"/sessions", nil)
		},
	}
}

func newSessionGetCmd(server *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get SESSION_ID",
		Short: "Print a session's current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionRequest(cmd, http.MethodGet, *server+"/sessions/"+args[0], nil)
		},
	}
}

func newSessionExtendCmd(server *string) *cobra.Command {
	return &cobra.Command{
		Use:   "extend SESSION_ID",
		Short: "Reset a session's inactivity timeout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionRequest(cmd, http.MethodPost, *server+"/sessions/"+args[0]+"/extend", nil)
		},
	}
}

func newSessionEndCmd(server *string) *cobra.Command {
	return &cobra.Command{
		Use:   "end SESSION_ID",
		Short: "Destroy a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionRequest(cmd, http.MethodDelete, *server+"/sessions/"+args[0], nil)
		},
	}
}

func sessionRequest(cmd *cobra.Command, method, url string, body []byte) error {
	req, err := http.NewRequestWithContext(cmd.Context(), method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("session: build request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("session: %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("session: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("session: %s %s: %s: %s", method, url, resp.Status, string(raw))
	}
	if len(raw) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), resp.Status)
		return nil
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), string(raw))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
	return nil
}
