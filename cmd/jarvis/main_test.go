package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniostano/jarvis/internal/config"
	"github.com/antoniostano/jarvis/internal/httpapi"
	"github.com/antoniostano/jarvis/internal/pipeline"
	"github.com/antoniostano/jarvis/internal/session"
)

func offlineEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "ELEVENLABS_API_KEY", "OPENWEATHERMAP_API_KEY", "DATABASE_URL", "WHISPER_SERVER_URL"} {
		t.Setenv(key, "")
	}
	t.Setenv("RECOGNITION_ENGINES", "openai")
	t.Setenv("APP_METRICS_NAMESPACE", fmt.Sprintf("test_cli_%d", time.Now().UnixNano()))
}

func executeCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", stdout)
}

func TestAskCommandJSON(t *testing.T) {
	offlineEnv(t)

	stdout, _, err := executeCLI(t, "ask", "--json", "привет", "джарвис")
	require.NoError(t, err)

	var out askOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "predefined", out.CommandType)
	assert.Equal(t, "greeting", out.Handler)
	assert.NotEmpty(t, out.Response)
	assert.Zero(t, out.AudioBytes)
}

func TestAskRequiresText(t *testing.T) {
	_, _, err := executeCLI(t, "ask")
	assert.Error(t, err)
}

func TestEnvFileMustExistWhenGiven(t *testing.T) {
	_, _, err := executeCLI(t, "--env-file", t.TempDir()+"/missing.env", "version")
	assert.Error(t, err)
}

func TestReplayCommand(t *testing.T) {
	orch := pipeline.NewOrchestrator(pipeline.Config{}, pipeline.Deps{})
	srv := httpapi.New(config.Config{SampleRate: 16000, MaxAudioDuration: time.Second}, session.NewRegistry(time.Minute, nil), httpapi.Deps{Orchestrator: orch})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	stdout, _, err := executeCLI(t, "replay", "--base-url", ts.URL, "--turns", "2", "--texts", "какое время|привет джарвис", "--inter-turn", "0s", "--json")
	require.NoError(t, err)

	var report struct {
		Turns    []map[string]any `json:"turns"`
		Failures int              `json:"failures"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Len(t, report.Turns, 2)
	assert.Zero(t, report.Failures)
}
