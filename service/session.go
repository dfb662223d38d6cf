package service

import (
	"bytes"
	"captains-log/entities"
	"captains-log/pkg/capture"
	"captains-log/pkg/visualizer"
	"captains-log/pkg/voicecommand"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrSessionActive  = errors.New("recording session already active")
	ErrNothingToPlay  = errors.New("no finished recording to play")
	ErrSessionClosed  = errors.New("recording session closed")
	ErrSessionUnknown = errors.New("recording session not found")
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseRecording  Phase = "recording"
	PhasePaused     Phase = "paused"
	PhaseProcessing Phase = "processing"
	PhaseComplete   Phase = "complete"
)

type EventType string

const (
	EventPhase    EventType = "phase"
	EventElapsed  EventType = "elapsed"
	EventFrame    EventType = "frame"
	EventCommand  EventType = "command"
	EventNavigate EventType = "navigate"
	EventError    EventType = "error"
	EventComplete EventType = "complete"
)

// BridgePath is where BackToBridge sends the client.
const BridgePath = "/"

type Event struct {
	Type     EventType            `json:"type"`
	Phase    Phase                `json:"phase,omitempty"`
	Elapsed  int                  `json:"elapsed"`
	Frame    *visualizer.Frame    `json:"frame,omitempty"`
	Command  voicecommand.Command `json:"command,omitempty"`
	Location string               `json:"location,omitempty"`
	Error    string               `json:"error,omitempty"`
	StarLog  *entities.StarLog    `json:"starLog,omitempty"`
}

type Snapshot struct {
	ID         string            `json:"id"`
	Phase      Phase             `json:"phase"`
	Elapsed    int               `json:"elapsed"`
	Chunks     int               `json:"chunks"`
	Bytes      int               `json:"bytes"`
	Format     capture.Format    `json:"format"`
	Transcript string            `json:"transcript"`
	LastError  string            `json:"lastError,omitempty"`
	StarLog    *entities.StarLog `json:"starLog,omitempty"`
}

type SessionOptions struct {
	Clock         func() time.Time
	TickInterval  time.Duration
	FrameInterval time.Duration
}

// Session is one recording lifecycle over a capture device. Every phase
// transition goes through mu.
type Session struct {
	id         string
	device     capture.Device
	pipeline   AnnotationPipeline
	visualizer *visualizer.Visualizer
	commands   *voicecommand.Interpreter
	clock      func() time.Time
	tick       time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup

	mu          sync.Mutex
	phase       Phase
	epoch       uint64
	accumulated time.Duration
	resumedAt   time.Time
	lastElapsed int
	chunks      [][]byte
	chunkBytes  int
	assembled   []byte
	rec         Recording
	lastErr     error
	result      *entities.StarLog
	live        *visualizer.LiveSource
	stopTicker  context.CancelFunc
	closed      bool

	lmu       sync.Mutex
	listeners map[int]func(Event)
	nextID    int
}

func NewSession(ctx context.Context, id string, device capture.Device, pipeline AnnotationPipeline, opts SessionOptions) *Session {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	vizOpts := []visualizer.Option{}
	if opts.FrameInterval > 0 {
		vizOpts = append(vizOpts, visualizer.WithInterval(opts.FrameInterval))
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:         id,
		device:     device,
		pipeline:   pipeline,
		visualizer: visualizer.New(vizOpts...),
		clock:      opts.Clock,
		tick:       opts.TickInterval,
		ctx:        runCtx,
		cancel:     cancel,
		phase:      PhaseIdle,
		listeners:  map[int]func(Event){},
	}
	s.commands = voicecommand.NewInterpreter(s.dispatch)
	device.OnChunk(s.onChunk)
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Device() capture.Device {
	return s.device
}

// Subscribe registers fn for every session event and returns its removal.
func (s *Session) Subscribe(fn func(Event)) func() {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Session) emit(events ...Event) {
	s.lmu.Lock()
	fns := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()
	for _, e := range events {
		for _, fn := range fns {
			fn(e)
		}
	}
}

func (s *Session) emitFrame(f visualizer.Frame) {
	s.emit(Event{Type: EventFrame, Frame: &f})
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:         s.id,
		Phase:      s.phase,
		Elapsed:    s.elapsedLocked(),
		Chunks:     len(s.chunks),
		Bytes:      s.chunkBytes,
		Format:     s.device.Format(),
		Transcript: s.commands.Transcript(),
		StarLog:    s.result,
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	return snap
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Elapsed is the number of whole seconds spent recording.
func (s *Session) Elapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedLocked()
}

func (s *Session) elapsedLocked() int {
	d := s.accumulated
	if s.phase == PhaseRecording {
		d += s.clock().Sub(s.resumedAt)
	}
	return int(d / time.Second)
}

func (s *Session) phaseEventLocked() Event {
	return Event{Type: EventPhase, Phase: s.phase, Elapsed: s.elapsedLocked()}
}

// Start begins a new recording from Idle or Complete.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.phase != PhaseIdle && s.phase != PhaseComplete {
		s.mu.Unlock()
		return ErrSessionActive
	}
	s.epoch++
	s.clearLocked()
	s.commands.Reset()

	if err := s.device.Start(s.ctx); err != nil {
		s.lastErr = err
		s.phase = PhaseIdle
		s.mu.Unlock()
		zerolog.Ctx(ctx).Error().Err(err).Str("session_id", s.id).Msg("failed to start capture")
		s.emit(Event{Type: EventError, Error: err.Error()})
		return err
	}

	s.phase = PhaseRecording
	s.resumedAt = s.clock()
	s.live = visualizer.NewLiveSource()
	tickCtx, cancel := context.WithCancel(s.ctx)
	s.stopTicker = cancel
	epoch := s.epoch
	s.bg.Add(1)
	go s.runTicker(tickCtx, epoch)
	s.visualizer.Start(s.ctx, s.live, s.emitFrame)
	ev := s.phaseEventLocked()
	s.mu.Unlock()

	zerolog.Ctx(ctx).Info().Str("session_id", s.id).Uint64("epoch", epoch).Msg("recording started")
	s.emit(ev)
	return nil
}

func (s *Session) Pause(ctx context.Context) {
	s.mu.Lock()
	if s.phase != PhaseRecording {
		s.mu.Unlock()
		return
	}
	s.accumulated += s.clock().Sub(s.resumedAt)
	s.phase = PhasePaused
	s.device.Pause()
	ev := s.phaseEventLocked()
	s.mu.Unlock()

	zerolog.Ctx(ctx).Debug().Str("session_id", s.id).Msg("recording paused")
	s.emit(ev)
}

func (s *Session) Resume(ctx context.Context) {
	s.mu.Lock()
	if s.phase != PhasePaused {
		s.mu.Unlock()
		return
	}
	s.resumedAt = s.clock()
	s.phase = PhaseRecording
	s.device.Resume()
	ev := s.phaseEventLocked()
	s.mu.Unlock()

	zerolog.Ctx(ctx).Debug().Str("session_id", s.id).Msg("recording resumed")
	s.emit(ev)
}

func (s *Session) TogglePause(ctx context.Context) {
	switch s.Phase() {
	case PhaseRecording:
		s.Pause(ctx)
	case PhasePaused:
		s.Resume(ctx)
	}
}

// Stop finalizes the capture and runs the annotation pipeline. A stop that
// finds the session outside Recording or Paused, including a concurrent
// one, is dropped and returns nil, nil. An empty capture returns to Idle.
func (s *Session) Stop(ctx context.Context) (*entities.StarLog, error) {
	logger := zerolog.Ctx(ctx).With().Str("session_id", s.id).Logger()

	s.mu.Lock()
	if s.phase != PhaseRecording && s.phase != PhasePaused {
		s.mu.Unlock()
		return nil, nil
	}
	now := s.clock()
	if s.phase == PhaseRecording {
		s.accumulated += now.Sub(s.resumedAt)
	}
	if err := s.device.Stop(); err != nil {
		logger.Warn().Err(err).Msg("failed to stop capture device")
	}
	s.haltLocked()

	if s.chunkBytes == 0 {
		s.phase = PhaseIdle
		s.accumulated = 0
		ev := s.phaseEventLocked()
		s.mu.Unlock()
		logger.Info().Msg("no audio captured, recording discarded")
		s.emit(ev)
		return nil, nil
	}

	s.phase = PhaseProcessing
	s.assembled = bytes.Join(s.chunks, nil)
	s.rec = Recording{
		Audio:      s.assembled,
		Format:     s.device.Format(),
		SampleRate: s.device.SampleRate(),
		Duration:   int(s.accumulated / time.Second),
		RecordedAt: now,
	}
	epoch := s.epoch
	rec := s.rec
	ev := s.phaseEventLocked()
	s.mu.Unlock()

	logger.Info().Int("duration", rec.Duration).Int("bytes", len(rec.Audio)).Msg("recording stopped")
	s.emit(ev)

	runCtx := logger.WithContext(s.ctx)
	log, err := s.pipeline.Run(runCtx, rec, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.epoch == epoch && s.phase == PhaseProcessing
	})

	s.mu.Lock()
	if s.epoch != epoch || s.phase != PhaseProcessing {
		s.mu.Unlock()
		logger.Info().Uint64("epoch", epoch).Msg("discarding result of abandoned recording")
		return nil, ErrStaleRun
	}
	if err != nil {
		s.lastErr = err
		s.mu.Unlock()
		s.emit(Event{Type: EventError, Phase: PhaseProcessing, Error: err.Error()})
		return nil, err
	}
	s.phase = PhaseComplete
	s.result = log
	s.device.Reset()
	ev = s.phaseEventLocked()
	s.mu.Unlock()

	logger.Info().Str("starlog_id", log.ID).Msg("recording saved")
	s.emit(ev, Event{Type: EventComplete, Phase: PhaseComplete, Elapsed: ev.Elapsed, StarLog: log})
	return log, nil
}

// StopAsync runs Stop in the background. The outcome is delivered as a
// complete or error event, and Close waits for it.
func (s *Session) StopAsync(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.bg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.bg.Done()
		_, _ = s.Stop(ctx)
	}()
	return nil
}

// Reset abandons whatever the session holds and returns it to Idle. An
// in-flight annotation is left to finish and its result is dropped.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	if s.phase == PhaseIdle {
		s.mu.Unlock()
		return
	}
	s.epoch++
	s.device.Reset()
	s.haltLocked()
	s.clearLocked()
	s.phase = PhaseIdle
	s.commands.Reset()
	ev := s.phaseEventLocked()
	s.mu.Unlock()

	zerolog.Ctx(ctx).Info().Str("session_id", s.id).Msg("recording session reset")
	s.emit(ev)
}

// BackToBridge abandons the session and tells the client to leave.
func (s *Session) BackToBridge(ctx context.Context) {
	s.Reset(ctx)
	s.emit(Event{Type: EventNavigate, Location: BridgePath})
}

// Play switches the visualizer to the finished recording.
func (s *Session) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if (s.phase != PhaseProcessing && s.phase != PhaseComplete) || len(s.assembled) == 0 {
		return ErrNothingToPlay
	}
	var pcm []byte
	if s.rec.Format == capture.FormatPCM16 {
		pcm = s.assembled
	}
	source := visualizer.NewBufferSource(pcm, s.rec.SampleRate, s.clock)
	source.Play()
	s.visualizer.Start(s.ctx, source, s.emitFrame)
	zerolog.Ctx(ctx).Debug().Str("session_id", s.id).Msg("playing recording")
	return nil
}

// Transcript feeds the speech recognizer's accumulated text.
func (s *Session) Transcript(text string) (voicecommand.Command, bool) {
	return s.commands.Update(text)
}

// Key feeds a keyboard shortcut.
func (s *Session) Key(key string, ctrl bool) (voicecommand.Command, bool) {
	return s.commands.Key(key, ctrl)
}

func (s *Session) dispatch(c voicecommand.Command) {
	ctx := s.ctx
	zerolog.Ctx(ctx).Info().Str("session_id", s.id).Str("command", string(c)).Msg("voice command")
	s.emit(Event{Type: EventCommand, Command: c})

	switch c {
	case voicecommand.BackToBridge:
		s.BackToBridge(ctx)
	case voicecommand.Pause:
		s.Pause(ctx)
	case voicecommand.Resume:
		s.Resume(ctx)
	case voicecommand.Stop:
		if err := s.StopAsync(ctx); err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Str("session_id", s.id).Msg("stop ignored")
		}
	case voicecommand.Delete:
		s.Reset(ctx)
	case voicecommand.Play:
		if err := s.Play(ctx); err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Str("session_id", s.id).Msg("play ignored")
		}
	}
}

func (s *Session) onChunk(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseRecording || len(chunk) == 0 {
		return
	}
	s.chunks = append(s.chunks, chunk)
	s.chunkBytes += len(chunk)
	if s.live != nil && s.device.Format() == capture.FormatPCM16 {
		s.live.Push(chunk)
	}
}

func (s *Session) runTicker(ctx context.Context, epoch uint64) {
	defer s.bg.Done()
	t := time.NewTicker(s.tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		s.mu.Lock()
		if s.epoch != epoch {
			s.mu.Unlock()
			return
		}
		elapsed := s.elapsedLocked()
		changed := s.phase == PhaseRecording && elapsed != s.lastElapsed
		s.lastElapsed = elapsed
		s.mu.Unlock()
		if changed {
			s.emit(Event{Type: EventElapsed, Phase: PhaseRecording, Elapsed: elapsed})
		}
	}
}

// haltLocked stops the ticker and the visualizer.
func (s *Session) haltLocked() {
	if s.stopTicker != nil {
		s.stopTicker()
		s.stopTicker = nil
	}
	s.visualizer.Stop()
	s.live = nil
}

func (s *Session) clearLocked() {
	s.accumulated = 0
	s.lastElapsed = 0
	s.chunks = nil
	s.chunkBytes = 0
	s.assembled = nil
	s.rec = Recording{}
	s.lastErr = nil
	s.result = nil
}

// Close abandons the session and waits for its background work.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.epoch++
	s.device.Reset()
	s.haltLocked()
	s.mu.Unlock()
	s.cancel()
	s.bg.Wait()
}
