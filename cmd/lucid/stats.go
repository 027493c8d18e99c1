package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/lucid/internal/eval"
	"github.com/danielpatrickdp/lucid/internal/logging"
	"github.com/danielpatrickdp/lucid/internal/safety"
	"github.com/danielpatrickdp/lucid/internal/validator"
)

// #region stats
func newStatsCmd(c *cli) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show decay-weighted outcomes per response strategy",
		Args:  cobra.NoArgs,
		RunE: withStorage(c, func(cmd *cobra.Command, rt *runtime, _ []string) error {
			stats, err := rt.memory.Summary()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, stats)
			}
			if len(stats) == 0 {
				fmt.Fprintln(out, "no turns recorded")
				return nil
			}
			fmt.Fprintf(out, "%-14s  %7s  %10s  %8s  %8s  %8s\n",
				"Strategy", "Samples", "Confidence", "Accepted", "Degraded", "Attempts")
			fmt.Fprintf(out, "%-14s+-%7s+-%10s+-%8s+-%8s+-%8s\n",
				"--------------", "-------", "----------", "--------", "--------", "--------")
			for _, s := range stats {
				marker := ""
				if !s.Reliable {
					marker = " (few samples)"
				}
				fmt.Fprintf(out, "%-14s  %7d  %10.2f  %7.0f%%  %7.0f%%  %8.2f%s\n",
					s.Strategy, s.Samples, s.Confidence, 100*s.AcceptanceRate, 100*s.DegradedRate, s.MeanAttempts, marker)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")
	return cmd
}

// #endregion stats

// #region audit
// errAuditFailed makes the process exit non-zero when any text fails.
var errAuditFailed = errors.New("audit failed")

func newAuditCmd(c *cli) *cobra.Command {
	var recent int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check the fixed texts and recent responses against the output contract",
		Long: "Every response must be one framing statement and one question, within the length bound\n" +
			"and free of directive, reassuring or stock-therapy phrasing.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h := eval.NewEvalHarness(eval.EvalConfig{
				MaxResponseChars: c.cfg.Validator.MaxResponseChars,
				RequireStatement: true,
			})
			texts := append(safety.Responses(), validator.Fallback().String())
			if recent > 0 {
				rt, err := c.newStorage()
				if err != nil {
					return err
				}
				defer rt.Close()
				if err := logging.EnsureSchema(rt.db); err != nil {
					return err
				}
				turns, err := logging.RecentTurns(rt.db, recent)
				if err != nil {
					return err
				}
				for _, t := range turns {
					texts = append(texts, t.Response)
				}
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, text := range texts {
				r := h.Run(text)
				if r.Passed {
					continue
				}
				failed++
				fmt.Fprintf(out, "FAIL %q\n     %s\n", text, r.Reason)
			}
			fmt.Fprintf(out, "\nSummary: %d checked, %d failed\n", len(texts), failed)
			if failed > 0 {
				return errAuditFailed
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&recent, "recent", "n", 0, "also audit the N most recent logged responses")
	return cmd
}

// #endregion audit
