package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeSource struct {
	mu       sync.Mutex
	ch       chan Chunk
	startErr error
	stopErr  error
	starts   int
}

func (f *fakeSource) Start(context.Context) (<-chan Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.ch = make(chan Chunk, 16)
	return f.ch, nil
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ch != nil {
		close(f.ch)
		f.ch = nil
	}
	return f.stopErr
}

func (f *fakeSource) push(c Chunk) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ch <- c
}

func TestCaptureAssemblesChunks(t *testing.T) {
	src := &fakeSource{}
	c := NewCapture(src)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	src.push(Chunk{Data: []byte("abc")}) // no declared type yet
	src.push(Chunk{Data: []byte("def"), MimeType: "audio/webm;codecs=opus"})
	src.push(Chunk{Data: []byte("ghi"), MimeType: "audio/ogg"})

	rec, err := c.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if string(rec.Bytes) != "abcdefghi" {
		t.Fatalf("assembled bytes = %q", rec.Bytes)
	}
	// Mime comes from the first chunk that declared one.
	if rec.MimeType != "audio/webm;codecs=opus" {
		t.Fatalf("mime = %q", rec.MimeType)
	}
	if c.Active() {
		t.Fatal("capture still active after stop")
	}
}

func TestCaptureDoubleStart(t *testing.T) {
	src := &fakeSource{}
	c := NewCapture(src)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	src.push(Chunk{Data: []byte("first"), MimeType: "audio/webm"})

	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("second start: got %v, want ErrAlreadyRecording", err)
	}
	if src.starts != 1 {
		t.Fatalf("device acquired %d times, want 1", src.starts)
	}

	// First recording is undisturbed.
	rec, err := c.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if string(rec.Bytes) != "first" {
		t.Fatalf("recording disturbed: %q", rec.Bytes)
	}
}

func TestCaptureStopErrorReleasesState(t *testing.T) {
	src := &fakeSource{stopErr: ErrDeviceUnavailable}
	c := NewCapture(src)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	src.push(Chunk{Data: []byte("partial"), MimeType: "audio/webm"})

	if _, err := c.Stop(); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("got %v, want ErrDeviceUnavailable", err)
	}
	if c.Active() {
		t.Fatal("capture left active after failed stop")
	}

	// The instance is reusable after a failed stop.
	src.mu.Lock()
	src.stopErr = nil
	src.mu.Unlock()
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	src.push(Chunk{Data: []byte("ok"), MimeType: "audio/webm"})
	rec, err := c.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if string(rec.Bytes) != "ok" {
		t.Fatalf("stale chunks leaked into new recording: %q", rec.Bytes)
	}
}

func TestCaptureStopWithoutStart(t *testing.T) {
	c := NewCapture(&fakeSource{})
	if _, err := c.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("got %v, want ErrNotRecording", err)
	}
}

func TestCaptureStartFailureReleasesState(t *testing.T) {
	src := &fakeSource{startErr: ErrPermissionDenied}
	c := NewCapture(src)
	err := c.Start(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("got %v, want ErrPermissionDenied", err)
	}
	if c.Active() {
		t.Fatal("capture left active after failed start")
	}

	// A later start succeeds once the device is available.
	src.mu.Lock()
	src.startErr = nil
	src.mu.Unlock()
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	src.push(Chunk{Data: []byte("ok"), MimeType: "audio/webm"})
	if _, err := c.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
