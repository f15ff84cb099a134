package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"melody-planner/internal/document"
)

func exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the current workspace document as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.shutdown()
			if err := a.load(cmd.Context()); err != nil {
				return err
			}

			data, err := document.Encode(a.store.Snapshot())
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			a.logger.Info("exported workspace", "file", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Replace the workspace with a JSON document and sync it",
		Long: `Replace the workspace with a JSON document.

The document is validated first. It is written to the local cache and, when a
user is configured, pushed to the remote store before the command exits.

Examples:
  melody import backup.json
  melody export | melody import -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			ws, err := document.Decode(data)
			if err != nil {
				return err
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			if err := a.load(cmd.Context()); err != nil {
				a.shutdown()
				return err
			}
			a.store.Replace(ws)
			// shutdown flushes the pending remote write.
			if err := a.shutdown(); err != nil {
				return err
			}
			if st := a.sync.Status(); st.LastError != "" {
				return fmt.Errorf("imported locally, remote write failed: %s", st.LastError)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d root projects\n", len(ws.Projects))
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a workspace document without importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			if _, err := document.Decode(data); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}


func resetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the configured user's remote workspace document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset deletes the remote workspace, pass --yes to confirm")
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.shutdown()
			if !a.cfg.SignedIn() {
				return fmt.Errorf("no user_id configured")
			}
			if err := a.remote.Delete(cmd.Context(), a.cfg.UserID); err != nil {
				return err
			}
			a.logger.Info("remote workspace deleted", "user", a.cfg.UserID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	return cmd
}
