package service

import (
	"captains-log/pkg/capture"
	"captains-log/pkg/voicecommand"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionFixture struct {
	session   *Session
	device    *capture.StreamDevice
	clock     *fakeClock
	annotator *fakeAnnotator
	starlogs  StarLogService

	mu     sync.Mutex
	events []Event
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		device:    capture.NewStreamDevice(),
		clock:     newFakeClock(),
		annotator: newFakeAnnotator(),
		starlogs:  NewStarLogService(newTestRepo(t), nil, nil),
	}
	pipeline := NewAnnotationPipeline(f.annotator, f.starlogs, nil, AnnotationConfig{UserId: "01"})
	f.session = NewSession(context.Background(), "test", f.device, pipeline, SessionOptions{
		Clock:         f.clock.Now,
		TickInterval:  time.Hour,
		FrameInterval: time.Hour,
	})
	f.session.Subscribe(func(e Event) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, e)
	})
	f.device.Attach(capture.FormatPCM16, 16000)
	t.Cleanup(f.session.Close)
	return f
}

func (f *sessionFixture) eventsOf(typ EventType) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Event
	for _, e := range f.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (f *sessionFixture) count(t *testing.T) int64 {
	t.Helper()
	summary, err := f.starlogs.List(context.Background())
	require.NoError(t, err)
	return summary.TotalEntries
}

func TestSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)

	require.NoError(t, f.session.Start(ctx))
	assert.Equal(t, PhaseRecording, f.session.Phase())
	assert.Equal(t, 0, f.session.Elapsed())

	for i := 0; i < 50; i++ {
		require.True(t, f.device.Write(make([]byte, 3200)))
		f.clock.Advance(100 * time.Millisecond)
	}
	assert.Equal(t, 5, f.session.Elapsed())

	log, err := f.session.Stop(ctx)
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.Equal(t, PhaseComplete, f.session.Phase())
	assert.Equal(t, []Stage{StageTranscribe, StageTitle, StageSentiment, StageKeywords}, f.annotator.Calls())

	saved, err := f.starlogs.Get(ctx, log.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, saved.Duration)
	assert.Equal(t, "hello world", saved.Content)
	assert.Equal(t, "Greeting", saved.Title)
	assert.Equal(t, "positive", saved.Sentiment)
	assert.Equal(t, []string{"hello", "world"}, saved.Keywords)
	assert.Equal(t, "01", saved.UserId)

	require.Len(t, f.eventsOf(EventComplete), 1)
	assert.Equal(t, log.ID, f.eventsOf(EventComplete)[0].StarLog.ID)
	assert.Equal(t, log.ID, f.session.Snapshot().StarLog.ID)
}

func TestSessionElapsedFreezesWhilePaused(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	require.NoError(t, f.session.Start(ctx))

	f.clock.Advance(3 * time.Second)
	assert.Equal(t, 3, f.session.Elapsed())

	f.session.Pause(ctx)
	f.session.Pause(ctx)
	assert.Equal(t, PhasePaused, f.session.Phase())
	f.clock.Advance(10 * time.Second)
	assert.Equal(t, 3, f.session.Elapsed())
	assert.False(t, f.device.Write([]byte{1, 2}), "chunks are dropped while paused")

	f.session.Resume(ctx)
	f.session.Resume(ctx)
	assert.Equal(t, PhaseRecording, f.session.Phase())
	f.clock.Advance(2500 * time.Millisecond)
	assert.Equal(t, 5, f.session.Elapsed())

	f.session.TogglePause(ctx)
	assert.Equal(t, PhasePaused, f.session.Phase())
	f.session.TogglePause(ctx)
	assert.Equal(t, PhaseRecording, f.session.Phase())
}

func TestSessionEmptyCapture(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	require.NoError(t, f.session.Start(ctx))
	f.clock.Advance(2 * time.Second)

	log, err := f.session.Stop(ctx)
	assert.NoError(t, err)
	assert.Nil(t, log)
	assert.Equal(t, PhaseIdle, f.session.Phase())
	assert.Empty(t, f.annotator.Calls())
	assert.Zero(t, f.count(t))
}

func TestSessionDeviceUnavailable(t *testing.T) {
	f := newSessionFixture(t)
	f.device.Detach()

	err := f.session.Start(context.Background())
	assert.ErrorIs(t, err, capture.ErrDeviceUnavailable)
	assert.Equal(t, PhaseIdle, f.session.Phase())
	assert.Len(t, f.eventsOf(EventError), 1)
}

func TestSessionStartWhileActive(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	require.NoError(t, f.session.Start(ctx))
	assert.ErrorIs(t, f.session.Start(ctx), ErrSessionActive)
}

func TestSessionConcurrentStop(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	f.annotator.gate = make(chan struct{})
	f.annotator.started = make(chan struct{}, 1)

	require.NoError(t, f.session.Start(ctx))
	require.True(t, f.device.Write(make([]byte, 320)))

	type result struct {
		id  string
		err error
	}
	first := make(chan result, 1)
	go func() {
		log, err := f.session.Stop(ctx)
		r := result{err: err}
		if log != nil {
			r.id = log.ID
		}
		first <- r
	}()
	<-f.annotator.started

	log, err := f.session.Stop(ctx)
	assert.NoError(t, err)
	assert.Nil(t, log)

	close(f.annotator.gate)
	r := <-first
	require.NoError(t, r.err)
	assert.NotEmpty(t, r.id)

	assert.Equal(t, 1, countStage(f.annotator.Calls(), StageTranscribe))
	assert.EqualValues(t, 1, f.count(t))
}

func TestSessionTitleFailureStaysProcessing(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	f.annotator.fail[StageTitle] = errors.New("rate limited")

	require.NoError(t, f.session.Start(ctx))
	require.True(t, f.device.Write(make([]byte, 320)))

	_, err := f.session.Stop(ctx)
	assert.ErrorIs(t, err, ErrAnnotationStage)
	assert.Equal(t, []Stage{StageTranscribe, StageTitle}, f.annotator.Calls())
	assert.Zero(t, f.count(t))

	snap := f.session.Snapshot()
	assert.Equal(t, PhaseProcessing, snap.Phase)
	assert.NotEmpty(t, snap.LastError)
	assert.Len(t, f.eventsOf(EventError), 1)

	f.session.Reset(ctx)
	snap = f.session.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Empty(t, snap.LastError)
	assert.Zero(t, snap.Bytes)
}

func TestSessionResetDiscardsInFlightAnnotation(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	f.annotator.gate = make(chan struct{})
	f.annotator.started = make(chan struct{}, 1)

	require.NoError(t, f.session.Start(ctx))
	require.True(t, f.device.Write(make([]byte, 320)))

	done := make(chan error, 1)
	go func() {
		_, err := f.session.Stop(ctx)
		done <- err
	}()
	<-f.annotator.started

	f.session.Reset(ctx)
	assert.Equal(t, PhaseIdle, f.session.Phase())
	close(f.annotator.gate)

	assert.ErrorIs(t, <-done, ErrStaleRun)
	assert.Equal(t, PhaseIdle, f.session.Phase())
	assert.Zero(t, f.count(t))
	assert.Empty(t, f.eventsOf(EventComplete))
}

func TestSessionVoiceStop(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	require.NoError(t, f.session.Start(ctx))
	require.True(t, f.device.Write(make([]byte, 320)))

	cmd, ok := f.session.Transcript("please stop recording now")
	require.True(t, ok)
	assert.Equal(t, voicecommand.Stop, cmd)
	assert.Empty(t, f.session.Snapshot().Transcript)

	assert.Eventually(t, func() bool {
		return f.session.Phase() == PhaseComplete
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, countStage(f.annotator.Calls(), StageTranscribe))
	assert.Len(t, f.eventsOf(EventCommand), 1)
	assert.EqualValues(t, 1, f.count(t))
}

func TestSessionStopAfterClose(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	require.NoError(t, f.session.Start(ctx))
	require.True(t, f.device.Write(make([]byte, 320)))

	f.session.Close()
	assert.ErrorIs(t, f.session.StopAsync(ctx), ErrSessionClosed)

	_, ok := f.session.Transcript("stop recording")
	require.True(t, ok)
	assert.Never(t, func() bool {
		return len(f.annotator.Calls()) > 0
	}, 50*time.Millisecond, 5*time.Millisecond)
	assert.Zero(t, f.count(t))
}

func TestSessionVoiceAndKeyboardPause(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	require.NoError(t, f.session.Start(ctx))

	_, ok := f.session.Transcript("captain, pause recording")
	require.True(t, ok)
	assert.Equal(t, PhasePaused, f.session.Phase())

	_, ok = f.session.Key("r", false)
	assert.False(t, ok)
	assert.Equal(t, PhasePaused, f.session.Phase())

	cmd, ok := f.session.Key("r", true)
	require.True(t, ok)
	assert.Equal(t, voicecommand.Resume, cmd)
	assert.Equal(t, PhaseRecording, f.session.Phase())
}

func TestSessionBackToBridge(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	require.NoError(t, f.session.Start(ctx))
	require.True(t, f.device.Write(make([]byte, 320)))

	_, ok := f.session.Transcript("back to bridge")
	require.True(t, ok)
	assert.Equal(t, PhaseIdle, f.session.Phase())
	nav := f.eventsOf(EventNavigate)
	require.Len(t, nav, 1)
	assert.Equal(t, BridgePath, nav[0].Location)
}

func TestSessionPlay(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	assert.ErrorIs(t, f.session.Play(ctx), ErrNothingToPlay)

	require.NoError(t, f.session.Start(ctx))
	require.True(t, f.device.Write(make([]byte, 3200)))
	f.clock.Advance(time.Second)
	_, err := f.session.Stop(ctx)
	require.NoError(t, err)

	assert.NoError(t, f.session.Play(ctx))
}

func countStage(calls []Stage, stage Stage) int {
	n := 0
	for _, c := range calls {
		if c == stage {
			n++
		}
	}
	return n
}
