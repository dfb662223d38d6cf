package capture

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamDevice_StartWithoutStream(t *testing.T) {
	d := NewStreamDevice()
	err := d.Start(context.Background())
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.Equal(t, StateInactive, d.State())
}

func TestStreamDevice_PauseResumeOutsideState(t *testing.T) {
	d := NewStreamDevice()
	d.Attach(FormatWebM, 0)

	d.Pause()
	assert.Equal(t, StateInactive, d.State())
	d.Resume()
	assert.Equal(t, StateInactive, d.State())

	require.NoError(t, d.Start(context.Background()))
	d.Resume()
	assert.Equal(t, StateRecording, d.State())
	d.Pause()
	d.Pause()
	assert.Equal(t, StatePaused, d.State())
	d.Resume()
	assert.Equal(t, StateRecording, d.State())
}

func TestStreamDevice_WriteOnlyWhileRecording(t *testing.T) {
	d := NewStreamDevice()
	d.Attach(FormatPCM16, 8000)
	assert.Equal(t, 8000, d.SampleRate())

	var got [][]byte
	d.OnChunk(func(chunk []byte) { got = append(got, chunk) })

	assert.False(t, d.Write([]byte{1, 2}))
	require.NoError(t, d.Start(context.Background()))
	src := []byte{3, 4}
	assert.True(t, d.Write(src))
	src[0] = 9
	d.Pause()
	assert.False(t, d.Write([]byte{5, 6}))
	d.Resume()
	assert.False(t, d.Write(nil))
	require.NoError(t, d.Stop())
	assert.False(t, d.Write([]byte{7, 8}))

	require.Len(t, got, 1)
	assert.Equal(t, []byte{3, 4}, got[0])
}

func TestStreamDevice_DetachStopsCapture(t *testing.T) {
	d := NewStreamDevice()
	d.Attach("", 0)
	assert.Equal(t, FormatWebM, d.Format())
	require.NoError(t, d.Start(context.Background()))
	d.Detach()
	assert.Equal(t, StateInactive, d.State())
	assert.ErrorIs(t, d.Start(context.Background()), ErrDeviceUnavailable)
}

func TestWAVRoundTrip(t *testing.T) {
	pcm := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	wav := EncodeWAV(pcm, 16000)
	assert.Len(t, wav, wavHeaderSize+len(pcm))
	assert.Equal(t, "RIFF", string(wav[0:4]))

	decoded, rate, err := DecodeWAV(wav)
	require.NoError(t, err)
	assert.Equal(t, 16000, rate)
	assert.Equal(t, pcm, decoded)
}

func TestDecodeWAV_Rejects(t *testing.T) {
	_, _, err := DecodeWAV([]byte("OggS not a wav file"))
	assert.ErrorIs(t, err, ErrNotWAV)

	wav := EncodeWAV([]byte{0, 0}, 16000)
	// flip channel count to stereo
	wav[22] = 2
	_, _, err = DecodeWAV(wav)
	assert.ErrorIs(t, err, ErrNotWAV)
}

func TestFileDevice_MissingFile(t *testing.T) {
	d := NewFileDevice(filepath.Join(t.TempDir(), "missing.wav"))
	assert.ErrorIs(t, d.Start(context.Background()), ErrDeviceUnavailable)
}

func TestFileDevice_EmitsAllChunks(t *testing.T) {
	pcm := make([]byte, 16000) // half a second at 16kHz
	for i := range pcm {
		pcm[i] = byte(i)
	}
	path := filepath.Join(t.TempDir(), "memo.wav")
	require.NoError(t, os.WriteFile(path, EncodeWAV(pcm, 16000), 0o644))

	d := NewFileDevice(path, WithPace(0))
	var mu sync.Mutex
	var out []byte
	chunks := 0
	d.OnChunk(func(chunk []byte) {
		mu.Lock()
		defer mu.Unlock()
		chunks++
		out = append(out, chunk...)
	})

	require.NoError(t, d.Start(context.Background()))
	assert.Equal(t, FormatPCM16, d.Format())

	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("file device did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, chunks)
	assert.Equal(t, pcm, out)
}

func TestFileDevice_OpaqueFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memo.webm")
	require.NoError(t, os.WriteFile(path, []byte("opaque webm bytes"), 0o644))

	d := NewFileDevice(path, WithPace(0))
	require.NoError(t, d.Start(context.Background()))
	<-d.Done()
	assert.Equal(t, FormatWebM, d.Format())
	assert.Equal(t, "audio.webm", FileName(d.Format()))
	assert.Equal(t, "audio/wav", ContentType(FormatPCM16))
}
