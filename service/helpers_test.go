package service

import (
	"captains-log/repository"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) repository.Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	r := repository.NewRepoFromGorm(db)
	require.NoError(t, r.AutoMigrate(context.Background()))
	return r
}

type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deletes int
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (c *memCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (c *memCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	c.deletes++
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeAnnotator struct {
	mu    sync.Mutex
	calls []Stage
	fail  map[Stage]error
	// blank makes a stage answer with whitespace only.
	blank map[Stage]bool

	// gate, when set, blocks Transcribe until closed. started receives one
	// value per blocked call.
	gate    chan struct{}
	started chan struct{}

	filename string
	audio    []byte
}

func newFakeAnnotator() *fakeAnnotator {
	return &fakeAnnotator{fail: map[Stage]error{}, blank: map[Stage]bool{}}
}

func (a *fakeAnnotator) record(stage Stage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, stage)
	return a.fail[stage]
}

func (a *fakeAnnotator) answer(stage Stage, s string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.blank[stage] {
		return "  "
	}
	return s
}

func (a *fakeAnnotator) Calls() []Stage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Stage(nil), a.calls...)
}

func (a *fakeAnnotator) Transcribe(ctx context.Context, audio []byte, filename, contentType string) (string, error) {
	a.mu.Lock()
	a.filename, a.audio = filename, audio
	gate, started := a.gate, a.started
	a.mu.Unlock()
	if err := a.record(StageTranscribe); err != nil {
		return "", err
	}
	if gate != nil {
		if started != nil {
			started <- struct{}{}
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return a.answer(StageTranscribe, "hello world"), nil
}

func (a *fakeAnnotator) SummarizeTitle(_ context.Context, _ string) (string, error) {
	if err := a.record(StageTitle); err != nil {
		return "", err
	}
	return a.answer(StageTitle, "Greeting"), nil
}

func (a *fakeAnnotator) Sentiment(_ context.Context, _ string) (string, error) {
	if err := a.record(StageSentiment); err != nil {
		return "", err
	}
	return "Positive", nil
}

func (a *fakeAnnotator) Keywords(_ context.Context, _ string) ([]string, error) {
	if err := a.record(StageKeywords); err != nil {
		return nil, err
	}
	return []string{" hello", "world ", ""}, nil
}
