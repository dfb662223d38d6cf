package visualizer

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// FrameInterval approximates the display refresh cadence.
const FrameInterval = time.Second / 60

// Visualizer samples one source at a time and emits a Frame per tick.
type Visualizer struct {
	interval time.Duration

	mu     sync.Mutex
	rnd    *rand.Rand
	cancel context.CancelFunc
	source Source
}

type Option func(*Visualizer)

func WithInterval(d time.Duration) Option {
	return func(v *Visualizer) {
		v.interval = d
	}
}

func WithRand(rnd *rand.Rand) Option {
	return func(v *Visualizer) {
		v.rnd = rnd
	}
}

func New(opts ...Option) *Visualizer {
	v := &Visualizer{
		interval: FrameInterval,
		rnd:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Start samples source until the context ends or Start/Stop is called
// again. The previous source and its analyser are released first.
func (v *Visualizer) Start(ctx context.Context, source Source, emit func(Frame)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		v.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.source = source
	go v.run(runCtx, source, NewAnalyser(), emit)
}

// Stop ends sampling. It does not wait for an in-flight tick.
func (v *Visualizer) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.source = nil
}

// Active reports whether the sampling loop runs, with or without a source.
func (v *Visualizer) Active() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cancel != nil
}

func (v *Visualizer) run(ctx context.Context, source Source, analyser *Analyser, emit func(Frame)) {
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame := v.Sample(analyser, source)
			if ctx.Err() != nil {
				return
			}
			emit(frame)
		}
	}
}

// Sample computes a single frame from source.
func (v *Visualizer) Sample(analyser *Analyser, source Source) Frame {
	if source != nil {
		if samples, ok := source.Samples(FFTSize); ok {
			return Reduce(analyser.ByteFrequencyData(samples))
		}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return Filler(v.rnd)
}
