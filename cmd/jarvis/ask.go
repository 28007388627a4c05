package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/antoniostano/jarvis/internal/app"
	"github.com/antoniostano/jarvis/internal/config"
)

type askOutput struct {
	Response    string `json:"response"`
	CommandType string `json:"command_type"`
	Handler     string `json:"handler"`
	AudioBytes  int    `json:"audio_bytes"`
}

func newAskCmd() *cobra.Command {
	var (
		asJSON    bool
		audioPath string
	)
	cmd := &cobra.Command{
		Use:   "ask [text]",
		Short: "Run one command through the assistant without starting the server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logger := newLogger(cfg, io.Discard)
			built, err := app.Build(cmd.Context(), cfg, app.Options{Logger: logger, Version: version})
			if err != nil {
				return err
			}
			defer func() { _ = built.Cleanup() }()

			ans := built.Orchestrator.Execute(cmd.Context(), strings.Join(args, " "))
			if audioPath != "" && len(ans.Audio) > 0 {
				if err := os.WriteFile(audioPath, ans.Audio, 0o644); err != nil {
					return fmt.Errorf("write audio: %w", err)
				}
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(askOutput{
					Response:    ans.Text,
					CommandType: string(ans.Kind),
					Handler:     ans.Handler,
					AudioBytes:  len(ans.Audio),
				})
			}
			_, err = fmt.Fprintf(out, "%s\n[%s/%s]\n", ans.Text, ans.Kind, ans.Handler)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the answer as JSON")
	cmd.Flags().StringVar(&audioPath, "audio-out", "", "write synthesized speech (mp3) to this path")
	return cmd
}
