package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/antoniostano/jarvis/internal/replay"
)

func newReplayCmd() *cobra.Command {
	var (
		opts   replay.Options
		texts  string
		asJSON bool
		quiet  bool
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay scripted turns against a running server and report latency",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(texts) != "" {
				opts.Texts = strings.Split(texts, "|")
			}
			if !quiet && !asJSON {
				opts.Log = cmd.ErrOrStderr()
			}
			report, err := replay.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			_, err = fmt.Fprintf(out, "turns=%d failures=%d p50=%s p95=%s\n",
				len(report.Turns), report.Failures,
				report.P50.Round(time.Millisecond), report.P95.Round(time.Millisecond))
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.BaseURL, "base-url", "http://127.0.0.1:8000", "server base URL")
	f.StringVar(&opts.ClientID, "client-id", "", "session id to use (random when empty)")
	f.IntVar(&opts.Turns, "turns", 4, "number of turns to replay")
	f.StringVar(&texts, "texts", "", "utterances separated by '|'")
	f.StringSliceVar(&opts.WAVPaths, "wav", nil, "PCM16 WAV files to send as binary frames instead of text")
	f.DurationVar(&opts.TurnTimeout, "turn-timeout", 15*time.Second, "maximum wait for each response")
	f.DurationVar(&opts.InterTurnDelay, "inter-turn", 200*time.Millisecond, "pause between turns")
	f.BoolVar(&asJSON, "json", false, "print the full report as JSON")
	f.BoolVar(&quiet, "quiet", false, "suppress per-turn progress")
	return cmd
}
