package capture

import (
	"context"
	"errors"
	"time"
)

// ErrDeviceUnavailable is returned by Start when no input stream can be acquired.
var ErrDeviceUnavailable = errors.New("audio capture device unavailable")

// ChunkInterval is the granularity at which devices emit audio.
const ChunkInterval = 100 * time.Millisecond

type State string

const (
	StateInactive  State = "inactive"
	StateRecording State = "recording"
	StatePaused    State = "paused"
)

type Format string

const (
	// FormatWebM is an opaque container as produced by browser recorders.
	FormatWebM Format = "webm"
	// FormatPCM16 is little endian linear16 mono.
	FormatPCM16 Format = "pcm16"
)

const DefaultSampleRate = 16000

// ChunkHandler receives every audio fragment a device emits while recording.
type ChunkHandler func(chunk []byte)

// Device wraps an audio input. Pause and Resume are no-ops outside the
// recording and paused states respectively.
type Device interface {
	Start(ctx context.Context) error
	Pause()
	Resume()
	Stop() error
	Reset()
	State() State
	Format() Format
	SampleRate() int
	OnChunk(h ChunkHandler)
}

// FileName returns the upload file name for audio captured in the given format.
func FileName(f Format) string {
	if f == FormatPCM16 {
		return "audio.wav"
	}
	return "audio.webm"
}

// ContentType returns the MIME type of audio captured in the given format.
func ContentType(f Format) string {
	if f == FormatPCM16 {
		return "audio/wav"
	}
	return "audio/webm"
}
