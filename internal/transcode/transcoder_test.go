package transcode

import (
	"context"
	"testing"

	"github.com/tonetutor-labs/tonetutor-core/internal/config"
)

func TestNewExecTranscoderRejectsEmptyCommand(t *testing.T) {
	if _, err := NewExecTranscoder(config.TranscodeConfig{Command: ""}); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestExecTranscoderFailureCleansUp(t *testing.T) {
	// "false" exits non-zero without touching the output file.
	tr, err := NewExecTranscoder(config.TranscodeConfig{Command: "false", TimeoutMS: 5000})
	if err != nil {
		t.Fatalf("new transcoder: %v", err)
	}
	if _, err := tr.ToWav16kMono(context.Background(), []byte("audio"), "audio/webm"); err == nil {
		t.Fatal("expected failure from non-zero exit")
	}
}

func TestExtForContentType(t *testing.T) {
	cases := map[string]string{
		"audio/ogg;codecs=opus":  ".ogg",
		"audio/wav":              ".wav",
		"audio/webm;codecs=opus": ".webm",
		"audio/mp4":              ".m4a",
		"":                       ".webm",
	}
	for ct, want := range cases {
		if got := extForContentType(ct); got != want {
			t.Errorf("extForContentType(%q) = %q, want %q", ct, got, want)
		}
	}
}

func TestNoopTranscoderPassesThrough(t *testing.T) {
	out, err := NewNoopTranscoder().ToWav16kMono(context.Background(), []byte("raw"), "audio/webm")
	if err != nil {
		t.Fatalf("noop: %v", err)
	}
	if string(out) != "raw" {
		t.Fatalf("noop altered data: %q", out)
	}
}
