package recognition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// WhisperCPPConfig configures the local whisper.cpp CLI engine.
type WhisperCPPConfig struct {
	CLI       string
	ModelPath string
	Threads   int
	BeamSize  int
	BestOf    int
}

// WhisperCPP shells out to whisper.cpp for each utterance.
type WhisperCPP struct {
	cliPath   string
	modelPath string
	threads   int
	beamSize  int
	bestOf    int
}

// NewWhisperCPP resolves the CLI binary and model; it fails when either is
// missing so the caller can leave the engine out of the chain.
func NewWhisperCPP(cfg WhisperCPPConfig) (*WhisperCPP, error) {
	cli := strings.TrimSpace(cfg.CLI)
	if cli == "" {
		cli = "whisper-cli"
	}
	cliPath, err := exec.LookPath(cli)
	if err != nil {
		return nil, fmt.Errorf("whisper.cpp CLI not found (%s): %w", cli, err)
	}

	modelPath := strings.TrimSpace(cfg.ModelPath)
	if modelPath == "" {
		return nil, errors.New("LOCAL_WHISPER_MODEL_PATH is required")
	}
	if !filepath.IsAbs(modelPath) {
		if wd, err := os.Getwd(); err == nil {
			modelPath = filepath.Join(wd, modelPath)
		}
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("whisper.cpp model not found: %s", modelPath)
	}

	threads := cfg.Threads
	if threads < 0 {
		return nil, errors.New("LOCAL_WHISPER_THREADS must be >= 0")
	}
	if threads == 0 {
		threads = min(max(runtime.NumCPU(), 2), 8)
	}

	return &WhisperCPP{
		cliPath:   cliPath,
		modelPath: modelPath,
		threads:   threads,
		beamSize:  max(cfg.BeamSize, 1),
		bestOf:    max(cfg.BestOf, 1),
	}, nil
}

func (w *WhisperCPP) Name() string { return "whispercpp" }

func (w *WhisperCPP) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	if len(wav) == 0 {
		return "", nil
	}
	tmpDir, err := os.MkdirTemp("", "jarvis-whisper-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)

	wavPath := filepath.Join(tmpDir, "audio.wav")
	if err := os.WriteFile(wavPath, wav, 0o600); err != nil {
		return "", err
	}
	outPrefix := filepath.Join(tmpDir, "out")

	if strings.TrimSpace(language) == "" {
		language = "auto"
	}
	args := []string{
		"-m", w.modelPath,
		"-f", wavPath,
		"-l", language,
		"-otxt",
		"-of", outPrefix,
		"-nt",
		"-t", strconv.Itoa(w.threads),
		"-bs", strconv.Itoa(w.beamSize),
		"-bo", strconv.Itoa(w.bestOf),
	}

	cmd := exec.CommandContext(ctx, w.cliPath, args...)
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 4<<10 {
			detail = strings.TrimSpace(detail[len(detail)-(4<<10):])
		}
		if detail == "" {
			detail = err.Error()
		}
		return "", fmt.Errorf("whisper.cpp failed: %s", detail)
	}

	b, err := os.ReadFile(outPrefix + ".txt")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
