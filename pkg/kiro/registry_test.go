package kiro

import (
	"strings"
	"testing"
)

func TestOpen(t *testing.T) {
	p, err := Open("kiro", Options{
		Endpoint:    "https://codewhisperer.example.com/generateAssistantResponse",
		Credentials: staticCredentials("token"),
	})
	if err != nil {
		t.Fatalf("Open(kiro): %v", err)
	}
	if p == nil {
		t.Fatal("Open(kiro) returned a nil provider")
	}
}

func TestOpen_UnknownProvider(t *testing.T) {
	_, err := Open("nonesuch", Options{})
	if err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Fatalf("error = %v, want unknown provider", err)
	}
}

func TestProviders_IncludesBuiltin(t *testing.T) {
	for _, name := range Providers() {
		if name == "kiro" {
			return
		}
	}
	t.Errorf("Providers() = %v, want to include kiro", Providers())
}
