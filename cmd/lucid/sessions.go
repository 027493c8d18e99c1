package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/lucid/internal/session"
)

// #region command
func newSessionsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage stored sessions",
	}

	var jsonOut bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List active sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: withStorage(c, func(cmd *cobra.Command, rt *runtime, _ []string) error {
			ids, err := rt.sessions.ListActive(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([]session.Summary, 0, len(ids))
			for _, id := range ids {
				s, err := rt.sessions.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				rows = append(rows, session.Summarize(s))
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			printSessionTable(cmd.OutOrStdout(), rows)
			return nil
		}),
	}
	list.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a session's messages",
		Args:  cobra.ExactArgs(1),
		RunE: withStorage(c, func(cmd *cobra.Command, rt *runtime, args []string) error {
			s, err := rt.sessions.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range s.Messages {
				speaker := "lucid"
				if m.IsUser {
					speaker = "you"
				}
				fmt.Fprintf(out, "[%s] %-5s  %s\n", m.Timestamp.Local().Format(time.TimeOnly), speaker, m.Text)
			}
			return nil
		}),
	}

	export := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a session as JSON to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: withStorage(c, func(cmd *cobra.Command, rt *runtime, args []string) error {
			s, err := rt.sessions.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			b, err := session.Export(s)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		}),
	}

	clearCmd := &cobra.Command{
		Use:   "clear <id>",
		Short: "Forget a session's messages but keep the session",
		Args:  cobra.ExactArgs(1),
		RunE: withStorage(c, func(cmd *cobra.Command, rt *runtime, args []string) error {
			return rt.sessions.Clear(cmd.Context(), args[0])
		}),
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: withStorage(c, func(cmd *cobra.Command, rt *runtime, args []string) error {
			return rt.sessions.Delete(cmd.Context(), args[0])
		}),
	}

	expire := &cobra.Command{
		Use:   "expire",
		Short: "Delete sessions idle past the timeout",
		Args:  cobra.NoArgs,
		RunE: withStorage(c, func(cmd *cobra.Command, rt *runtime, _ []string) error {
			n, err := rt.sessions.ExpireIdle(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d sessions\n", n)
			return nil
		}),
	}

	cmd.AddCommand(list, show, export, clearCmd, deleteCmd, expire)
	return cmd
}

// #endregion command

// #region output
func printSessionTable(out io.Writer, rows []session.Summary) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "no active sessions")
		return
	}
	fmt.Fprintf(out, "%-36s  %5s  %5s  %5s  %s\n", "Session", "Msgs", "User", "Lucid", "Last activity")
	fmt.Fprintf(out, "%-36s+-%5s+-%5s+-%5s+-%s\n",
		"------------------------------------", "-----", "-----", "-----", "-------------------")
	for _, r := range rows {
		fmt.Fprintf(out, "%-36s  %5d  %5d  %5d  %s\n",
			r.ID, r.TotalMessages, r.UserMessages, r.AgentMessages, r.LastActivity.Local().Format(time.DateTime))
	}
}

func printJSON(out io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}

// #endregion output

// #region helpers
// withStorage opens the database for an inspection command and closes it after.
func withStorage(c *cli, run func(cmd *cobra.Command, rt *runtime, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := c.newStorage()
		if err != nil {
			return err
		}
		defer rt.Close()
		return run(cmd, rt, args)
	}
}

// #endregion helpers
