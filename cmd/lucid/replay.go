package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/lucid/internal/logging"
	"github.com/danielpatrickdp/lucid/internal/replay"
	"github.com/danielpatrickdp/lucid/internal/validator"
)

// errDrift makes the process exit non-zero when a replayed turn diverges.
var errDrift = errors.New("replay diverged from recorded outcomes")

// #region command
func newReplayCmd(c *cli) *cobra.Command {
	var (
		fixturePath string
		exportPath  string
		limit       int
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-validate recorded turns and report drift",
		Long: "Runs the safety screen, the validator and the output audit over recorded model candidates\n" +
			"without calling any model. Turns come from the database turn log or from --fixture.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if fixturePath != "" {
				f, err := replay.LoadFixture(fixturePath)
				if err != nil {
					return err
				}
				return printComparison(out, replay.Replay(f.ToInteractions(), f.Config.ToReplayConfig()))
			}

			rt, err := c.newStorage()
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := logging.EnsureSchema(rt.db); err != nil {
				return err
			}
			turns, err := logging.RecentTurns(rt.db, limit)
			if err != nil {
				return err
			}
			if len(turns) == 0 {
				fmt.Fprintln(out, "no turns found in turn_log")
				return nil
			}
			interactions := replay.FromTurnLog(turns)
			if exportPath != "" {
				if err := replay.WriteFixture(exportPath, "exported from "+c.cfg.DatabasePath, interactions); err != nil {
					return err
				}
				fmt.Fprintf(out, "wrote %d turns to %s\n", len(interactions), exportPath)
				return nil
			}

			config := replay.DefaultReplayConfig()
			config.ValidatorConfig = validator.Config{
				MinConfidence:      c.cfg.Validator.MinConfidence,
				AlignmentThreshold: c.cfg.Validator.AlignmentThreshold,
				MaxResponseChars:   c.cfg.Validator.MaxResponseChars,
			}
			config.EvalConfig.MaxResponseChars = c.cfg.Validator.MaxResponseChars
			return printComparison(out, replay.Replay(interactions, config))
		},
	}
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "replay a JSON fixture instead of the database")
	cmd.Flags().StringVar(&exportPath, "export", "", "write the logged turns to a fixture file and exit")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "number of most recent logged turns")
	return cmd
}

// #endregion command

// #region output
// printComparison prints one row per turn and returns errDrift on any
// strategy divergence or audit failure.
func printComparison(out io.Writer, results []replay.ReplayResult) error {
	fmt.Fprintf(out, "%-38s| %-12s| %-12s| %-6s| %s\n", "Turn", "Recorded", "Replayed", "Match", "Audit")
	fmt.Fprintf(out, "%-38s+%-13s+%-13s+%-7s+%s\n",
		"--------------------------------------", "-------------", "-------------", "-------", "------")

	for _, r := range results {
		match := "DIFF"
		if r.Match() {
			match = "OK"
		}
		audit := "ok"
		if !r.EvalResult.Passed {
			audit = r.EvalResult.Reason
		}
		fmt.Fprintf(out, "%-38s| %-12s| %-12s| %-6s| %s\n", r.TurnID, r.Expected, r.Strategy, match, audit)
	}

	s := replay.Summarize(results)
	fmt.Fprintf(out, "\nSummary: %d total, %d match, %d diverge, %d audit failures\n",
		s.TotalTurns, s.Matches, s.Diverged, s.AuditFailed)
	if s.Diverged > 0 || s.AuditFailed > 0 {
		return errDrift
	}
	return nil
}

// #endregion output
