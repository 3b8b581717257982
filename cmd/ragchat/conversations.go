package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var conversationsLimit int

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "Manage stored conversations",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		if cfg.UserID == "" {
			return errors.New("a user id is required (--user or config)")
		}
		convs, err := newClient(cfg).Conversations(cmd.Context(), cfg.UserID, conversationsLimit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "THREAD\tUPDATED\tTITLE")
		for _, c := range convs {
			fmt.Fprintf(w, "%s\t%s\t%s\n", c.ThreadID, c.UpdatedAt, c.Title)
		}
		return w.Flush()
	},
}

var conversationsRenameCmd = &cobra.Command{
	Use:   "rename <thread-id> <title>",
	Short: "Rename a stored conversation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		if cfg.UserID == "" {
			return errors.New("a user id is required (--user or config)")
		}
		return newClient(cfg).SetConversationTitle(cmd.Context(), args[0], args[1], cfg.UserID)
	},
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <thread-id>",
	Short: "Delete a stored conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		if cfg.UserID == "" {
			return errors.New("a user id is required (--user or config)")
		}
		return newClient(cfg).DeleteConversation(cmd.Context(), args[0], cfg.UserID)
	},
}

func init() {
	conversationsListCmd.Flags().IntVar(&conversationsLimit, "limit", 100, "Maximum conversations to list")
	conversationsCmd.AddCommand(conversationsListCmd, conversationsRenameCmd, conversationsDeleteCmd)
	rootCmd.AddCommand(conversationsCmd)
}
