package service

import (
	"bytes"
	"captains-log/constant"
	"captains-log/dto"
	"captains-log/entities"
	"captains-log/repository"
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
)

var ErrNonRetryable = errors.New("non-retryable error")

const (
	exportEntityType  = "starlogs"
	DefaultLinkExpiry = 15 * time.Minute
)

// ExportStorage is the subset of *minio.Client used by exports.
type ExportStorage interface {
	ObjectStorage
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// MessagePublisher hands export requests to the job queue.
type MessagePublisher interface {
	Publish(ctx context.Context, message any) error
}

type ExportService interface {
	Request(ctx context.Context, userId string) (*entities.Job, error)
	Process(ctx context.Context, message dto.ExportMessage) error
	Status(ctx context.Context, id uuid.UUID) (*dto.ExportJobResponse, error)
}

type exportService struct {
	repo      repository.Repository
	starlogs  StarLogService
	storage   ExportStorage
	publisher MessagePublisher
	bucket    string
}

func NewExportService(repo repository.Repository, starlogs StarLogService, storage ExportStorage, publisher MessagePublisher, bucket string) ExportService {
	return &exportService{
		repo:      repo,
		starlogs:  starlogs,
		storage:   storage,
		publisher: publisher,
		bucket:    bucket,
	}
}

func (s *exportService) Request(ctx context.Context, userId string) (*entities.Job, error) {
	job := &entities.Job{
		ID:         uuid.New(),
		EntityId:   userId,
		EntityType: exportEntityType,
		Status:     constant.JobStatusPending,
		JobType:    constant.JobTypeExport,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to create export job")
		return nil, err
	}

	if err := s.publisher.Publish(ctx, dto.ExportMessage{JobId: job.ID, UserId: userId}); err != nil {
		if updateErr := s.repo.UpdateStatusJob(ctx, constant.JobStatusFailed, job.ID); updateErr != nil {
			zerolog.Ctx(ctx).Error().Err(updateErr).Msg("failed to update job status")
		}
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Str("job_id", job.ID.String()).Msg("export job queued")
	return job, nil
}

func (s *exportService) Process(ctx context.Context, message dto.ExportMessage) (err error) {
	zerolog.Ctx(ctx).Info().Str("job_id", message.JobId.String()).Msg("processing job")
	job, err := s.repo.FindJobById(ctx, message.JobId)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to find job by id")
		if errors.Is(err, repository.ErrNotFound) {
			return errors.Join(ErrNonRetryable, err)
		}
		return err
	}

	if job.Status != constant.JobStatusPending {
		zerolog.Ctx(ctx).Info().Str("job_id", message.JobId.String()).Msg("job is not pending")
		return nil
	}

	if err := s.repo.UpdateStatusJob(ctx, constant.JobStatusProcessing, message.JobId); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to update job status")
		return err
	}

	defer func() {
		if err != nil {
			if errors.Is(err, ErrNonRetryable) {
				if updateErr := s.repo.UpdateStatusJob(ctx, constant.JobStatusFailed, message.JobId); updateErr != nil {
					zerolog.Ctx(ctx).Error().Err(updateErr).Msg("failed to update job status")
				}
				err = nil
			} else {
				if updateErr := s.repo.UpdateStatusJob(ctx, constant.JobStatusPending, message.JobId); updateErr != nil {
					zerolog.Ctx(ctx).Error().Err(updateErr).Msg("failed to update job status")
				}
			}
		}
	}()

	summary, err := s.starlogs.List(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to list star logs")
		return err
	}

	body, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to render export")
		return errors.Join(ErrNonRetryable, err)
	}

	objectName := path.Join("exports", job.ID.String(), constant.ExportFileName)
	zerolog.Ctx(ctx).Info().Str("object", objectName).Int("bytes", len(body)).Msg("upload export file")
	_, err = s.storage.PutObject(ctx, s.bucket, objectName, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to upload export file")
		return err
	}

	if err = s.repo.UpdateJobObjectName(ctx, job.ID, objectName); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to update job object name")
		return err
	}

	if err = s.repo.UpdateStatusJob(ctx, constant.JobStatusCompleted, message.JobId); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to update job status")
		return err
	}

	zerolog.Ctx(ctx).Info().Str("job_id", message.JobId.String()).Msg("job completed")
	return nil
}

func (s *exportService) Status(ctx context.Context, id uuid.UUID) (*dto.ExportJobResponse, error) {
	job, err := s.repo.FindJobById(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := &dto.ExportJobResponse{
		JobId:  job.ID,
		Status: string(job.Status),
	}
	if job.Status != constant.JobStatusCompleted || job.ObjectName == nil {
		return resp, nil
	}

	reqParams := url.Values{}
	reqParams.Set("response-content-disposition", `attachment; filename="`+constant.ExportFileName+`"`)
	link, err := s.storage.PresignedGetObject(ctx, s.bucket, *job.ObjectName, DefaultLinkExpiry, reqParams)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to presign export download")
		return nil, err
	}
	resp.DownloadUrl = link.String()
	return resp, nil
}
