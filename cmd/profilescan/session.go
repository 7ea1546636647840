package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/use-agent/profilescan/session"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the persisted browser session",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the browser profile directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := session.NewStore(cfg.Session.Dir)
			if err != nil {
				return withExit(exitUsage, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), store.Dir())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the browser profile so the next scan signs in again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := session.NewStore(cfg.Session.Dir)
			if err != nil {
				return withExit(exitUsage, err)
			}
			if err := store.Clear(); err != nil {
				return withExit(exitUsage, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "session cleared:", store.Dir())
			return nil
		},
	})

	return cmd
}
