package capture

import (
	"context"
	"sync"
)

// StreamDevice is fed by a remote client, typically a browser pushing
// MediaRecorder blobs over a websocket.
type StreamDevice struct {
	mu         sync.Mutex
	state      State
	attached   bool
	format     Format
	sampleRate int
	handler    ChunkHandler
}

func NewStreamDevice() *StreamDevice {
	return &StreamDevice{
		state:      StateInactive,
		format:     FormatWebM,
		sampleRate: DefaultSampleRate,
	}
}

// Attach marks the client input stream as available.
func (d *StreamDevice) Attach(format Format, sampleRate int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if format == "" {
		format = FormatWebM
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	d.attached = true
	d.format = format
	d.sampleRate = sampleRate
}

// Detach drops the client stream. A running capture is stopped.
func (d *StreamDevice) Detach() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attached = false
	d.state = StateInactive
}

func (d *StreamDevice) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.attached {
		return ErrDeviceUnavailable
	}
	d.state = StateRecording
	return nil
}

func (d *StreamDevice) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateRecording {
		d.state = StatePaused
	}
}

func (d *StreamDevice) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StatePaused {
		d.state = StateRecording
	}
}

func (d *StreamDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = StateInactive
	return nil
}

func (d *StreamDevice) Reset() {
	_ = d.Stop()
}

func (d *StreamDevice) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *StreamDevice) Format() Format {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.format
}

func (d *StreamDevice) SampleRate() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sampleRate
}

func (d *StreamDevice) OnChunk(h ChunkHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = h
}

// Write forwards a client chunk. Chunks arriving while not recording are
// dropped and reported as not accepted.
func (d *StreamDevice) Write(chunk []byte) bool {
	if len(chunk) == 0 {
		return false
	}
	d.mu.Lock()
	if d.state != StateRecording || d.handler == nil {
		d.mu.Unlock()
		return false
	}
	h := d.handler
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	d.mu.Unlock()

	h(buf)
	return true
}
