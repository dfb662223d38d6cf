package visualizer

import (
	"encoding/binary"
	"sync"
	"time"
)

// Source yields time-domain samples in [-1, 1] for the analyser.
type Source interface {
	// Samples returns up to n of the most recent samples and false when
	// there is no signal to show.
	Samples(n int) ([]float64, bool)
}

// PCM16ToFloat converts little endian linear16 audio to [-1, 1] samples.
func PCM16ToFloat(pcm []byte) []float64 {
	out := make([]float64, len(pcm)/2)
	for i := range out {
		out[i] = float64(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768
	}
	return out
}

// LiveSource keeps the tail of a capture stream.
type LiveSource struct {
	mu      sync.Mutex
	samples []float64
	// pending holds the first byte of a sample split across chunks.
	pending []byte
}

func NewLiveSource() *LiveSource {
	return &LiveSource{samples: make([]float64, 0, FFTSize)}
}

// Push appends a PCM16 chunk. Chunks need not be sample aligned.
func (s *LiveSource) Push(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) > 0 {
		pcm = append(s.pending, pcm...)
		s.pending = nil
	}
	if len(pcm)%2 == 1 {
		s.pending = []byte{pcm[len(pcm)-1]}
		pcm = pcm[:len(pcm)-1]
	}
	in := PCM16ToFloat(pcm)
	if len(in) == 0 {
		return
	}
	s.samples = append(s.samples, in...)
	if len(s.samples) > FFTSize {
		s.samples = append(s.samples[:0], s.samples[len(s.samples)-FFTSize:]...)
	}
}

func (s *LiveSource) Samples(n int) ([]float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.samples) == 0 {
		return nil, false
	}
	if n > len(s.samples) {
		n = len(s.samples)
	}
	out := make([]float64, n)
	copy(out, s.samples[len(s.samples)-n:])
	return out, true
}

// BufferSource plays back a finished recording at real time.
type BufferSource struct {
	samples    []float64
	sampleRate int
	clock      func() time.Time

	mu      sync.Mutex
	started time.Time
	playing bool
}

func NewBufferSource(pcm []byte, sampleRate int, clock func() time.Time) *BufferSource {
	if clock == nil {
		clock = time.Now
	}
	return &BufferSource{
		samples:    PCM16ToFloat(pcm),
		sampleRate: sampleRate,
		clock:      clock,
	}
}

// Play starts playback from the beginning.
func (s *BufferSource) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = s.clock()
	s.playing = true
}

func (s *BufferSource) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
}

func (s *BufferSource) Samples(n int) ([]float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing || s.sampleRate <= 0 {
		return nil, false
	}
	pos := int(s.clock().Sub(s.started).Seconds() * float64(s.sampleRate))
	if pos <= 0 || pos > len(s.samples) {
		return nil, false
	}
	start := pos - n
	if start < 0 {
		start = 0
	}
	out := make([]float64, pos-start)
	copy(out, s.samples[start:pos])
	return out, true
}
