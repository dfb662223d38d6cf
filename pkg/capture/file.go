package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

const opaqueChunkSize = 4096

// FileDevice replays a local audio file as if it were captured live. It is
// single use: once the file is exhausted Done is closed.
type FileDevice struct {
	path string
	pace time.Duration

	mu         sync.Mutex
	state      State
	started    bool
	format     Format
	sampleRate int
	handler    ChunkHandler
	cancel     context.CancelFunc
	done       chan struct{}
}

type FileOption func(*FileDevice)

// WithPace overrides the delay between chunks. Zero emits as fast as possible.
func WithPace(d time.Duration) FileOption {
	return func(f *FileDevice) {
		f.pace = d
	}
}

func NewFileDevice(path string, opts ...FileOption) *FileDevice {
	d := &FileDevice{
		path:       path,
		pace:       ChunkInterval,
		state:      StateInactive,
		format:     FormatWebM,
		sampleRate: DefaultSampleRate,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *FileDevice) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return nil
	}

	raw, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	data, chunkSize := raw, opaqueChunkSize
	pcm, sampleRate, err := DecodeWAV(raw)
	switch {
	case err == nil:
		data = pcm
		d.format = FormatPCM16
		d.sampleRate = sampleRate
		chunkSize = sampleRate * 2 / int(time.Second/ChunkInterval)
	case errors.Is(err, ErrNotWAV):
		d.format = FormatWebM
	default:
		return err
	}
	if chunkSize < 2 {
		chunkSize = 2
	}

	runCtx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.started = true
	d.state = StateRecording
	go d.run(runCtx, data, chunkSize)
	return nil
}

func (d *FileDevice) run(ctx context.Context, data []byte, chunkSize int) {
	defer close(d.done)

	var tick <-chan time.Time
	if d.pace > 0 {
		t := time.NewTicker(d.pace)
		defer t.Stop()
		tick = t.C
	}

	for off := 0; off < len(data); {
		if tick != nil {
			select {
			case <-ctx.Done():
				return
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return
		}

		d.mu.Lock()
		state, h := d.state, d.handler
		d.mu.Unlock()

		switch state {
		case StateInactive:
			return
		case StatePaused:
			if tick == nil {
				time.Sleep(time.Millisecond)
			}
			continue
		}

		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if h != nil {
			chunk := make([]byte, end-off)
			copy(chunk, data[off:end])
			h(chunk)
		}
		off = end
	}
}

// Done is closed once every chunk of the file has been emitted or the
// device was stopped.
func (d *FileDevice) Done() <-chan struct{} {
	return d.done
}

func (d *FileDevice) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateRecording {
		d.state = StatePaused
	}
}

func (d *FileDevice) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StatePaused {
		d.state = StateRecording
	}
}

func (d *FileDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = StateInactive
	if d.cancel != nil {
		d.cancel()
	}
	return nil
}

func (d *FileDevice) Reset() {
	_ = d.Stop()
}

func (d *FileDevice) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *FileDevice) Format() Format {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.format
}

func (d *FileDevice) SampleRate() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sampleRate
}

func (d *FileDevice) OnChunk(h ChunkHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = h
}
