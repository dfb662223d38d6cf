package service

import (
	"captains-log/dto"
	"captains-log/entities"
	"captains-log/pkg/cache"
	"captains-log/repository"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	SummaryCacheKey = "starlogs:summary"
	summaryCacheTTL = 10 * time.Minute
)

var ErrInvalidStarLog = errors.New("invalid star log")

// StarLogService is the persistence gateway for star log entries.
type StarLogService interface {
	Create(ctx context.Context, log *entities.StarLog) (string, error)
	List(ctx context.Context) (*dto.StarLogSummary, error)
	Get(ctx context.Context, id string) (*entities.StarLog, error)
	Delete(ctx context.Context, id string) error
	DeleteRange(ctx context.Context, start, end time.Time) (int64, error)
	DeleteThisMonth(ctx context.Context) (int64, error)
	DeleteLastMonth(ctx context.Context) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type starLogService struct {
	repo  repository.Repository
	cache cache.Cache
	clock func() time.Time
}

func NewStarLogService(repo repository.Repository, c cache.Cache, clock func() time.Time) StarLogService {
	if c == nil {
		c = cache.Nop()
	}
	if clock == nil {
		clock = time.Now
	}
	return &starLogService{
		repo:  repo,
		cache: c,
		clock: clock,
	}
}

func (s *starLogService) Create(ctx context.Context, log *entities.StarLog) (string, error) {
	if log == nil || strings.TrimSpace(log.Title) == "" || log.Timestamp.IsZero() {
		return "", ErrInvalidStarLog
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	log.Timestamp = log.Timestamp.UTC()
	if err := s.repo.CreateStarLog(ctx, log); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to create star log")
		return "", err
	}
	s.invalidate(ctx)
	zerolog.Ctx(ctx).Info().Str("starlog_id", log.ID).Msg("star log created")
	return log.ID, nil
}

func (s *starLogService) List(ctx context.Context) (*dto.StarLogSummary, error) {
	var cached dto.StarLogSummary
	hit, err := s.cache.Get(ctx, SummaryCacheKey, &cached)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to read star log summary cache")
	}
	if hit {
		if cached.RecentRecordings == nil {
			cached.RecentRecordings = []*entities.StarLog{}
		}
		return &cached, nil
	}

	logs, err := s.repo.ListStarLogs(ctx)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountStarLogs(ctx)
	if err != nil {
		return nil, err
	}
	start, end := ThisMonth(s.clock())
	thisMonth, err := s.repo.CountStarLogsBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}
	timestamps, err := s.repo.ListStarLogTimestamps(ctx)
	if err != nil {
		return nil, err
	}

	summary := &dto.StarLogSummary{
		TotalEntries:     total,
		RecentRecordings: logs,
		LogsThisMonth:    thisMonth,
		Streak:           Streak(timestamps),
	}
	if summary.RecentRecordings == nil {
		summary.RecentRecordings = []*entities.StarLog{}
	}
	if err := s.cache.Set(ctx, SummaryCacheKey, summary, summaryCacheTTL); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to write star log summary cache")
	}
	return summary, nil
}

func (s *starLogService) Get(ctx context.Context, id string) (*entities.StarLog, error) {
	return s.repo.FindStarLogById(ctx, id)
}

func (s *starLogService) Delete(ctx context.Context, id string) error {
	n, err := s.repo.DeleteStarLog(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	s.invalidate(ctx)
	return nil
}

// DeleteRange removes entries with start <= timestamp < end.
func (s *starLogService) DeleteRange(ctx context.Context, start, end time.Time) (int64, error) {
	n, err := s.repo.DeleteStarLogsBetween(ctx, start.UTC(), end.UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.invalidate(ctx)
	}
	zerolog.Ctx(ctx).Info().Int64("deleted", n).Time("start", start).Time("end", end).Msg("star logs deleted")
	return n, nil
}

func (s *starLogService) DeleteThisMonth(ctx context.Context) (int64, error) {
	start, end := ThisMonth(s.clock())
	return s.DeleteRange(ctx, start, end)
}

func (s *starLogService) DeleteLastMonth(ctx context.Context) (int64, error) {
	start, end := LastMonth(s.clock())
	return s.DeleteRange(ctx, start, end)
}

func (s *starLogService) DeleteAll(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteAllStarLogs(ctx)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx)
	return n, nil
}

func (s *starLogService) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, SummaryCacheKey); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to invalidate star log summary cache")
	}
}

// ThisMonth returns the UTC calendar month containing now as [start, end).
func ThisMonth(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// LastMonth returns the UTC calendar month before the one containing now.
func LastMonth(now time.Time) (time.Time, time.Time) {
	start, _ := ThisMonth(now)
	return start.AddDate(0, -1, 0), start
}

// Streak counts consecutive UTC days with at least one entry, walking back
// from the newest. timestamps must be sorted newest first.
func Streak(timestamps []time.Time) int {
	if len(timestamps) == 0 {
		return 0
	}
	streak := 1
	previous := day(timestamps[0])
	for _, ts := range timestamps[1:] {
		current := day(ts)
		if current.Equal(previous) {
			continue
		}
		if !previous.AddDate(0, 0, -1).Equal(current) {
			break
		}
		streak++
		previous = current
	}
	return streak
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
