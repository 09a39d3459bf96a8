package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrAlreadyRecording  = errors.New("capture already recording")
	ErrNotRecording      = errors.New("no capture in progress")
	ErrPermissionDenied  = errors.New("microphone permission denied")
	ErrDeviceUnavailable = errors.New("no audio input device available")
)

// Recording is a finished capture: the raw encoded bytes plus the mime type
// the platform encoder reported. It is handed to normalization exactly once.
type Recording struct {
	Bytes    []byte
	MimeType string
}

// Chunk is one encoded fragment delivered by an input source.
type Chunk struct {
	Data     []byte
	MimeType string
}

// Source abstracts the platform input device. Start acquires the device and
// returns a channel of encoded chunks. The source must close the channel
// once Stop has been called, even when Stop returns an error; Capture.Stop
// waits on that close to collect trailing chunks. Sources report
// ErrPermissionDenied or ErrDeviceUnavailable from Start when acquisition
// fails.
type Source interface {
	Start(ctx context.Context) (<-chan Chunk, error)
	Stop() error
}

// Capture buffers encoded chunks from a Source between explicit Start and
// Stop calls. At most one recording may be active per Capture; the active
// flag lives on the instance, not in package state.
type Capture struct {
	source Source

	mu        sync.Mutex
	active    bool
	chunks    [][]byte
	mimeType  string
	collected chan struct{}
}

func NewCapture(source Source) *Capture {
	return &Capture{source: source}
}

// Start acquires the input device and begins buffering chunks. Calling Start
// while a recording is active fails with ErrAlreadyRecording and leaves the
// existing recording undisturbed.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	c.active = true
	c.chunks = nil
	c.mimeType = ""
	c.collected = make(chan struct{})
	done := c.collected
	c.mu.Unlock()

	chunks, err := c.source.Start(ctx)
	if err != nil {
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
		close(done)
		return fmt.Errorf("start capture: %w", err)
	}

	go func() {
		defer close(done)
		for chunk := range chunks {
			if len(chunk.Data) == 0 {
				continue
			}
			c.mu.Lock()
			c.chunks = append(c.chunks, chunk.Data)
			if c.mimeType == "" && chunk.MimeType != "" {
				c.mimeType = chunk.MimeType
			}
			c.mu.Unlock()
		}
	}()
	return nil
}

// Stop finalizes the stream, releases the input device and assembles the
// buffered chunks into a single Recording. The mime type is the one reported
// by the first chunk that declared one; no fixed type is forced.
func (c *Capture) Stop() (Recording, error) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return Recording{}, ErrNotRecording
	}
	done := c.collected
	c.mu.Unlock()

	stopErr := c.source.Stop()
	// Wait for the source to flush remaining chunks and close its channel.
	<-done

	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false

	if stopErr != nil {
		c.chunks = nil
		return Recording{}, fmt.Errorf("stop capture: %w", stopErr)
	}

	var total int
	for _, part := range c.chunks {
		total += len(part)
	}
	data := make([]byte, 0, total)
	for _, part := range c.chunks {
		data = append(data, part...)
	}
	rec := Recording{Bytes: data, MimeType: c.mimeType}
	c.chunks = nil
	return rec, nil
}

// Active reports whether a recording is in progress.
func (c *Capture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}
