package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haasonsaas/kiro/internal/catalog"
	"github.com/haasonsaas/kiro/internal/config"
	"github.com/haasonsaas/kiro/internal/tape"
	"github.com/haasonsaas/kiro/pkg/models"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := buildRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"chat", "models", "status", "usage", "doctor"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Run("explicit path wins", func(t *testing.T) {
		t.Setenv("KIRO_CONFIG", "/env/config.yaml")
		if got := resolveConfigPath("/explicit/kiro.yaml"); got != "/explicit/kiro.yaml" {
			t.Errorf("resolveConfigPath = %q, want the explicit path", got)
		}
	})
	t.Run("env overrides default", func(t *testing.T) {
		t.Setenv("KIRO_CONFIG", "/env/config.yaml")
		if got := resolveConfigPath(defaultConfigPath()); got != "/env/config.yaml" {
			t.Errorf("resolveConfigPath = %q, want the env path", got)
		}
	})
	t.Run("falls back to default", func(t *testing.T) {
		t.Setenv("KIRO_CONFIG", "")
		if got := resolveConfigPath(""); got != defaultConfigPath() {
			t.Errorf("resolveConfigPath = %q, want %q", got, defaultConfigPath())
		}
	})
}

func TestRunModels(t *testing.T) {
	out, _, err := execute(t, "models")
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	for _, want := range []string{"MODEL", "claude-sonnet-4-5-20250929", "claude-3-5-haiku-20241022", "200k"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunModelsJSON(t *testing.T) {
	out, _, err := execute(t, "models", "--json")
	if err != nil {
		t.Fatalf("models --json: %v", err)
	}
	var list []catalog.Model
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(list) < 4 {
		t.Errorf("len(list) = %d, want at least the builtins", len(list))
	}
}

func replayTapeFile(t *testing.T, text string) string {
	t.Helper()
	msg := &models.AssistantMessage{
		Parts:      []models.ContentPart{{Type: models.PartText, Text: text}},
		StopReason: models.StopEndTurn,
		Usage:      models.Usage{InputTokens: 12, OutputTokens: 3, ContextPercent: 1.5},
	}
	tp := tape.NewTape()
	tp.Model = "claude-sonnet-4-5-20250929"
	tp.AddTurn(tape.Turn{
		Events: []models.Event{
			{Type: models.EventStart},
			{Type: models.EventTextStart},
			{Type: models.EventTextDelta, Delta: text},
			{Type: models.EventTextEnd, Text: text},
			{Type: models.EventDone, Message: msg, Reason: models.StopEndTurn},
		},
		Text:       text,
		StopReason: string(models.StopEndTurn),
	})
	path := filepath.Join(t.TempDir(), "session.tape.json")
	if err := tp.Save(path); err != nil {
		t.Fatalf("save tape: %v", err)
	}
	return path
}

func TestChatReplayOneShot(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KIRO_CONFIG", "")
	tapePath := replayTapeFile(t, "Hello from tape!")

	out, _, err := execute(t, "chat", "--replay", tapePath, "hello")
	if err != nil {
		t.Fatalf("chat --replay: %v", err)
	}
	if !strings.Contains(out, "Replaying tape") {
		t.Errorf("output missing replay banner:\n%s", out)
	}
	if !strings.Contains(out, "Hello from tape!") {
		t.Errorf("output missing replayed text:\n%s", out)
	}
}

func TestChatReplayRecords(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KIRO_CONFIG", "")
	tapePath := replayTapeFile(t, "Recorded answer.")
	recPath := filepath.Join(t.TempDir(), "rerecorded.tape.json")

	if _, _, err := execute(t, "chat", "--replay", tapePath, "--record", recPath, "hi"); err != nil {
		t.Fatalf("chat: %v", err)
	}

	saved, err := tape.Load(recPath)
	if err != nil {
		t.Fatalf("load recorded tape: %v", err)
	}
	if saved.TotalTurns() != 1 {
		t.Fatalf("TotalTurns = %d, want 1", saved.TotalTurns())
	}
	if got := saved.Turns[0].Text; got != "Recorded answer." {
		t.Errorf("recorded text = %q, want %q", got, "Recorded answer.")
	}
}

func TestChatUnknownModel(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KIRO_CONFIG", "")

	_, _, err := execute(t, "chat", "--model", "gpt-9000", "hello")
	if err == nil || !strings.Contains(err.Error(), "unknown model") {
		t.Errorf("err = %v, want unknown model error", err)
	}
}

func TestStatusReportsMissingCredentials(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KIRO_CONFIG", "")

	out, _, err := execute(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Credentials:   unavailable") {
		t.Errorf("output missing credential state:\n%s", out)
	}
	if !strings.Contains(out, config.DefaultEndpoint) {
		t.Errorf("output missing endpoint:\n%s", out)
	}
}

func TestStatusJSON(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KIRO_CONFIG", "")

	out, _, err := execute(t, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var report statusReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if report.Endpoint != config.DefaultEndpoint {
		t.Errorf("Endpoint = %q, want %q", report.Endpoint, config.DefaultEndpoint)
	}
	if report.DefaultModel != config.DefaultModel {
		t.Errorf("DefaultModel = %q, want %q", report.DefaultModel, config.DefaultModel)
	}
}

func TestUsageEmptyLedger(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KIRO_CONFIG", "")

	out, _, err := execute(t, "usage")
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if !strings.Contains(out, "across 0 turns") {
		t.Errorf("output missing empty totals:\n%s", out)
	}
}

func TestDoctorSchema(t *testing.T) {
	out, _, err := execute(t, "doctor", "--schema")
	if err != nil {
		t.Fatalf("doctor --schema: %v", err)
	}
	for _, want := range []string{`"service"`, `"auth"`, `"limits"`} {
		if !strings.Contains(out, want) {
			t.Errorf("schema output missing %s", want)
		}
	}
}

func TestDoctorMissingConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KIRO_CONFIG", "")

	if _, _, err := execute(t, "doctor"); err == nil {
		t.Error("expected error when no config file exists")
	}
}
