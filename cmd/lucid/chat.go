package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/lucid/internal/codec"
)

// #region styles
// chatStyles renders plain text unless stdout is a terminal.
type chatStyles struct {
	prompt   lipgloss.Style
	response lipgloss.Style
	meta     lipgloss.Style
	notice   lipgloss.Style
}

func newChatStyles(out io.Writer) chatStyles {
	f, ok := out.(*os.File)
	if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		plain := lipgloss.NewStyle()
		return chatStyles{prompt: plain, response: plain, meta: plain, notice: plain}
	}
	return chatStyles{
		prompt:   lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true),
		response: lipgloss.NewStyle().Foreground(lipgloss.Color("#E8E8E8")).PaddingLeft(2),
		meta:     lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C")).Italic(true).PaddingLeft(2),
		notice:   lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")),
	}
}

// #endregion styles

// #region command
type reflectFn = codec.ReflectorFunc

func newChatCmd(c *cli) *cobra.Command {
	var (
		sessionID string
		remote    string
		verbose   bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive reflection session",
		Long: "Reads one message per line and answers each with a framing statement and a single question.\n" +
			"Type /new for a fresh session, /clear to forget this one, quit to leave.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var (
				reflect reflectFn
				clearFn func(context.Context, string) error
			)
			if remote != "" {
				client, err := codec.Dial(remote)
				if err != nil {
					return err
				}
				defer client.Close()
				reflect = client.Reflect
			} else {
				rt, err := c.newRuntime(ctx)
				if err != nil {
					return err
				}
				defer rt.Close()
				reflect = rt.reflectFunc()
				clearFn = rt.sessions.Clear
			}
			return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), reflect, clearFn, sessionID, verbose)
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "continue an existing session")
	cmd.Flags().StringVar(&remote, "remote", "", "address of a running `lucid serve`")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print strategy and confidence after each response")
	return cmd
}

// runChat is the read-reflect-print loop. clearFn may be nil for remote sessions.
func runChat(ctx context.Context, in io.Reader, out io.Writer, reflect reflectFn,
	clearFn func(context.Context, string) error, sessionID string, verbose bool) error {
	st := newChatStyles(out)
	fmt.Fprintln(out, st.notice.Render("Lucid is listening. Type quit to leave."))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, st.prompt.Render("you › "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "/new":
			sessionID = ""
			fmt.Fprintln(out, st.notice.Render("Started a new session."))
			continue
		case "/clear":
			if clearFn == nil || sessionID == "" {
				fmt.Fprintln(out, st.notice.Render("Nothing to clear."))
				continue
			}
			if err := clearFn(ctx, sessionID); err != nil {
				return err
			}
			fmt.Fprintln(out, st.notice.Render("Session history cleared."))
			continue
		}

		reply, err := reflect(ctx, sessionID, line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		sessionID = reply.SessionID
		fmt.Fprintln(out, st.response.Render(reply.Response))
		if verbose {
			fmt.Fprintln(out, st.meta.Render(describe(reply)))
		}
	}
}

func describe(reply codec.Reply) string {
	m := reply.Metadata
	parts := []string{fmt.Sprintf("session=%s", reply.SessionID)}
	for _, key := range []string{"strategy", "risk", "confidence", "attempts"} {
		if v, ok := m[key]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", key, v))
		}
	}
	if d, ok := m["degraded"]; ok {
		parts = append(parts, fmt.Sprintf("degraded=%v", d))
	}
	return strings.Join(parts, " ")
}

// #endregion command
