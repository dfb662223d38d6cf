package service

import (
	"bytes"
	"captains-log/constant"
	"captains-log/entities"
	"captains-log/pkg/capture"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
)

var (
	ErrAnnotationStage = errors.New("annotation failed")
	ErrPersistence     = errors.New("failed to save star log")
	// ErrStaleRun is returned when the owning session was reset or restarted
	// before the result could be saved.
	ErrStaleRun = errors.New("recording session is no longer current")
	// ErrEmptyResponse marks a stage whose model answer was blank.
	ErrEmptyResponse = errors.New("empty response")
)

type Stage string

const (
	StageTranscribe Stage = "transcribe"
	StageTitle      Stage = "title"
	StageSentiment  Stage = "sentiment"
	StageKeywords   Stage = "keywords"
)

// StageError reports which annotation call failed. It matches ErrAnnotationStage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s stage: %v", ErrAnnotationStage, e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{ErrAnnotationStage, e.Err}
}

// Annotator is the AI service behind the pipeline.
type Annotator interface {
	Transcribe(ctx context.Context, audio []byte, filename, contentType string) (string, error)
	SummarizeTitle(ctx context.Context, text string) (string, error)
	Sentiment(ctx context.Context, text string) (string, error)
	Keywords(ctx context.Context, text string) ([]string, error)
}

// ObjectStorage is the subset of *minio.Client used to archive recordings.
type ObjectStorage interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Recording is the assembled output of a stopped session.
type Recording struct {
	Audio      []byte
	Format     capture.Format
	SampleRate int
	Duration   int
	RecordedAt time.Time
}

type AnnotationConfig struct {
	Timeout time.Duration
	UserId  string
	Bucket  string
}

// AnnotationPipeline turns a recording into a saved star log.
type AnnotationPipeline interface {
	// Run annotates rec and saves the result when current still reports true.
	Run(ctx context.Context, rec Recording, current func() bool) (*entities.StarLog, error)
}

type annotationPipeline struct {
	annotator Annotator
	starlogs  StarLogService
	storage   ObjectStorage
	cfg       AnnotationConfig
}

func NewAnnotationPipeline(annotator Annotator, starlogs StarLogService, storage ObjectStorage, cfg AnnotationConfig) AnnotationPipeline {
	return &annotationPipeline{
		annotator: annotator,
		starlogs:  starlogs,
		storage:   storage,
		cfg:       cfg,
	}
}

func (p *annotationPipeline) Run(ctx context.Context, rec Recording, current func() bool) (*entities.StarLog, error) {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}
	logger := zerolog.Ctx(ctx)

	audio, filename, contentType := rec.Audio, capture.FileName(rec.Format), capture.ContentType(rec.Format)
	if rec.Format == capture.FormatPCM16 {
		audio = capture.EncodeWAV(rec.Audio, rec.SampleRate)
	}

	id := uuid.NewString()
	audioObject := p.archive(ctx, id, filename, contentType, audio)

	logger.Info().Str("starlog_id", id).Int("bytes", len(audio)).Msg("transcribing recording")
	content, err := p.annotator.Transcribe(ctx, audio, filename, contentType)
	if err != nil {
		return nil, p.stageFailed(ctx, StageTranscribe, err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, p.stageFailed(ctx, StageTranscribe, ErrEmptyResponse)
	}
	title, err := p.annotator.SummarizeTitle(ctx, content)
	if err != nil {
		return nil, p.stageFailed(ctx, StageTitle, err)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, p.stageFailed(ctx, StageTitle, ErrEmptyResponse)
	}
	sentiment, err := p.annotator.Sentiment(ctx, content)
	if err != nil {
		return nil, p.stageFailed(ctx, StageSentiment, err)
	}
	keywords, err := p.annotator.Keywords(ctx, content)
	if err != nil {
		return nil, p.stageFailed(ctx, StageKeywords, err)
	}

	log := &entities.StarLog{
		ID:          id,
		Title:       title,
		Content:     content,
		Timestamp:   rec.RecordedAt.UTC().Truncate(time.Millisecond),
		Duration:    rec.Duration,
		Sentiment:   strings.ToLower(strings.TrimSpace(sentiment)),
		Keywords:    NormalizeKeywords(keywords),
		UserId:      p.cfg.UserId,
		AudioObject: audioObject,
	}

	if current != nil && !current() {
		logger.Info().Str("starlog_id", id).Msg("session moved on, discarding annotation")
		return nil, ErrStaleRun
	}
	if _, err := p.starlogs.Create(ctx, log); err != nil {
		logger.Error().Err(err).Str("starlog_id", id).Msg("failed to save star log")
		return nil, errors.Join(ErrPersistence, err)
	}
	return log, nil
}

// archive uploads the audio and returns its object name. Failures are logged
// and leave the entry without an archived copy.
func (p *annotationPipeline) archive(ctx context.Context, id, filename, contentType string, audio []byte) string {
	if p.storage == nil || p.cfg.Bucket == "" {
		return ""
	}
	objectName := path.Join("recordings", id, filename)
	_, err := p.storage.PutObject(ctx, p.cfg.Bucket, objectName, bytes.NewReader(audio), int64(len(audio)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("object", objectName).Msg("failed to archive recording")
		return ""
	}
	return objectName
}

func (p *annotationPipeline) stageFailed(ctx context.Context, stage Stage, err error) error {
	zerolog.Ctx(ctx).Error().Err(err).Str("stage", string(stage)).Msg("annotation stage failed")
	return &StageError{Stage: stage, Err: err}
}

// NormalizeKeywords trims, drops empty entries and keeps the first five.
func NormalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out = append(out, k)
		if len(out) == constant.MaxKeywords {
			break
		}
	}
	return out
}
