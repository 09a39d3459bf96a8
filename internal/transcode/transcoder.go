package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-shellwords"
	"github.com/tonetutor-labs/tonetutor-core/internal/config"
)

// Transcoder re-encodes recorded audio to 16 kHz mono 16-bit PCM WAV,
// the engine's required upload format.
type Transcoder interface {
	ToWav16kMono(ctx context.Context, data []byte, contentType string) ([]byte, error)
}

type execTranscoder struct {
	cmd     []string
	timeout time.Duration
}

// NewExecTranscoder wraps an external converter command (ffmpeg). The
// command runs once per request against uniquely named temp files that are
// removed on both success and failure paths.
func NewExecTranscoder(cfg config.TranscodeConfig) (Transcoder, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse transcode command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("transcode command is empty")
	}
	return &execTranscoder{
		cmd:     args,
		timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
	}, nil
}

func (t *execTranscoder) ToWav16kMono(ctx context.Context, data []byte, contentType string) ([]byte, error) {
	id := uuid.NewString()
	inFile := filepath.Join(os.TempDir(), "tonetutor-in-"+id+extForContentType(contentType))
	outFile := filepath.Join(os.TempDir(), "tonetutor-out-"+id+".wav")
	defer os.Remove(inFile)
	defer os.Remove(outFile)

	if err := os.WriteFile(inFile, data, 0o600); err != nil {
		return nil, fmt.Errorf("write transcode input: %w", err)
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	base := t.cmd[0]
	args := append([]string{}, t.cmd[1:]...)
	args = append(args,
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", inFile,
		"-ar", "16000", "-ac", "1", "-c:a", "pcm_s16le",
		outFile,
	)

	command := exec.CommandContext(ctx, base, args...)
	var stderr bytes.Buffer
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return nil, fmt.Errorf("transcode command failed: %w: %s", err, stderr.String())
	}

	out, err := os.ReadFile(outFile)
	if err != nil {
		return nil, fmt.Errorf("read transcode output: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("transcode produced empty output")
	}
	return out, nil
}

func extForContentType(contentType string) string {
	switch {
	case strings.Contains(contentType, "ogg"):
		return ".ogg"
	case strings.Contains(contentType, "wav"):
		return ".wav"
	case strings.Contains(contentType, "mp4"), strings.Contains(contentType, "m4a"):
		return ".m4a"
	default:
		return ".webm"
	}
}

type noopTranscoder struct{}

// NewNoopTranscoder passes audio through unchanged, for deployments
// without an external converter installed.
func NewNoopTranscoder() Transcoder {
	return noopTranscoder{}
}

func (noopTranscoder) ToWav16kMono(_ context.Context, data []byte, _ string) ([]byte, error) {
	return data, nil
}
