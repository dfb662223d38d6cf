package service

import (
	"captains-log/entities"
	"captains-log/repository"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day0(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func newStarLog(title string, ts time.Time) *entities.StarLog {
	return &entities.StarLog{
		Title:     title,
		Content:   "hello world",
		Timestamp: ts,
		Duration:  5,
		Sentiment: "positive",
		Keywords:  []string{"hello", "world"},
		UserId:    "01",
	}
}

func TestStreak(t *testing.T) {
	tests := []struct {
		name string
		in   []time.Time
		want int
	}{
		{name: "empty", want: 0},
		{name: "single", in: []time.Time{day0(2024, 5, 3, 9)}, want: 1},
		{
			name: "consecutive days",
			in:   []time.Time{day0(2024, 5, 3, 9), day0(2024, 5, 2, 23), day0(2024, 5, 1, 1)},
			want: 3,
		},
		{
			name: "same day entries count once",
			in:   []time.Time{day0(2024, 5, 3, 20), day0(2024, 5, 3, 8), day0(2024, 5, 2, 8)},
			want: 2,
		},
		{
			name: "gap ends streak",
			in:   []time.Time{day0(2024, 5, 3, 9), day0(2024, 5, 1, 9), day0(2024, 4, 30, 9)},
			want: 1,
		},
		{
			name: "month boundary",
			in:   []time.Time{day0(2024, 3, 1, 0), day0(2024, 2, 29, 12)},
			want: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Streak(tt.in))
		})
	}
}

func TestMonthRanges(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	start, end := ThisMonth(now)
	assert.Equal(t, day0(2024, 1, 1, 0), start)
	assert.Equal(t, day0(2024, 2, 1, 0), end)

	start, end = LastMonth(now)
	assert.Equal(t, day0(2023, 12, 1, 0), start)
	assert.Equal(t, day0(2024, 1, 1, 0), end)
}

func TestStarLogRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := NewStarLogService(newTestRepo(t), newMemCache(), nil)

	in := newStarLog("Greeting", time.Date(2024, 5, 3, 9, 30, 0, 0, time.UTC))
	id, err := svc.Create(ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, in.Content, got.Content)
	assert.Equal(t, in.Title, got.Title)
	assert.Equal(t, in.Sentiment, got.Sentiment)
	assert.Equal(t, in.Keywords, got.Keywords)
	assert.True(t, in.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, in.Duration, got.Duration)
	assert.Equal(t, in.UserId, got.UserId)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStarLogCreateRejectsIncomplete(t *testing.T) {
	svc := NewStarLogService(newTestRepo(t), nil, nil)
	_, err := svc.Create(context.Background(), newStarLog(" ", time.Now()))
	assert.ErrorIs(t, err, ErrInvalidStarLog)
}

func TestStarLogListAndCache(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	now := day0(2024, 5, 3, 18)
	svc := NewStarLogService(newTestRepo(t), cache, fixedClock(now))

	for _, ts := range []time.Time{day0(2024, 4, 30, 10), day0(2024, 5, 2, 10), day0(2024, 5, 3, 10)} {
		_, err := svc.Create(ctx, newStarLog("entry", ts))
		require.NoError(t, err)
	}

	summary, err := svc.List(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, summary.TotalEntries)
	assert.EqualValues(t, 2, summary.LogsThisMonth)
	assert.Equal(t, 2, summary.Streak)
	require.Len(t, summary.RecentRecordings, 3)
	assert.True(t, summary.RecentRecordings[0].Timestamp.Equal(day0(2024, 5, 3, 10)))
	assert.True(t, cache.has(SummaryCacheKey))

	_, err = svc.Create(ctx, newStarLog("another", day0(2024, 5, 3, 11)))
	require.NoError(t, err)
	assert.False(t, cache.has(SummaryCacheKey))

	summary, err = svc.List(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, summary.TotalEntries)
}

func TestStarLogDeletes(t *testing.T) {
	ctx := context.Background()
	now := day0(2024, 5, 15, 12)
	svc := NewStarLogService(newTestRepo(t), newMemCache(), fixedClock(now))

	var ids []string
	for _, ts := range []time.Time{day0(2024, 3, 10, 0), day0(2024, 4, 1, 0), day0(2024, 4, 30, 23), day0(2024, 5, 1, 0), day0(2024, 5, 14, 0)} {
		id, err := svc.Create(ctx, newStarLog("entry", ts))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	n, err := svc.DeleteThisMonth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = svc.DeleteLastMonth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = svc.DeleteLastMonth(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, svc.Delete(ctx, ids[0]))
	assert.ErrorIs(t, svc.Delete(ctx, ids[0]), repository.ErrNotFound)

	_, err = svc.Create(ctx, newStarLog("entry", now))
	require.NoError(t, err)
	n, err = svc.DeleteAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
