package repository

import (
	"captains-log/constant"
	"captains-log/entities"
	"context"
	"database/sql"
	"errors"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"time"
)

var ErrNotFound = errors.New("record not found")

type Repository interface {
	Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error
	GetDB() *gorm.DB
	AutoMigrate(ctx context.Context) error

	CreateStarLog(ctx context.Context, log *entities.StarLog) error
	FindStarLogById(ctx context.Context, id string) (*entities.StarLog, error)
	ListStarLogs(ctx context.Context) ([]*entities.StarLog, error)
	ListStarLogTimestamps(ctx context.Context) ([]time.Time, error)
	CountStarLogs(ctx context.Context) (int64, error)
	CountStarLogsBetween(ctx context.Context, start, end time.Time) (int64, error)
	DeleteStarLog(ctx context.Context, id string) (int64, error)
	DeleteStarLogsBetween(ctx context.Context, start, end time.Time) (int64, error)
	DeleteAllStarLogs(ctx context.Context) (int64, error)

	CreateJob(ctx context.Context, job *entities.Job) error
	FindJobById(ctx context.Context, id uuid.UUID) (*entities.Job, error)
	UpdateStatusJob(ctx context.Context, status constant.JobStatus, id uuid.UUID) error
	UpdateJobObjectName(ctx context.Context, id uuid.UUID, objectName string) error

	CreateDonation(ctx context.Context, donation *entities.Donation) error
}

type repo struct {
	db *gorm.DB
}

type txKey struct{}

// NewRepo wraps a postgres connection.
func NewRepo(db *sql.DB, debug bool) (Repository, error) {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(level),
		},
	)
	if err != nil {
		return nil, err
	}
	return NewRepoFromGorm(gormDB), nil
}

func NewRepoFromGorm(db *gorm.DB) Repository {
	return &repo{
		db: db,
	}
}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

func (r *repo) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

func (r *repo) Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return callback(context.WithValue(ctx, txKey{}, tx))
	}, opts...)
}

func (r *repo) AutoMigrate(ctx context.Context) error {
	return r.conn(ctx).AutoMigrate(&entities.StarLog{}, &entities.Job{}, &entities.Donation{})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Join(ErrNotFound, err)
	}
	return err
}

func (r *repo) CreateStarLog(ctx context.Context, log *entities.StarLog) error {
	return r.conn(ctx).Create(log).Error
}

func (r *repo) FindStarLogById(ctx context.Context, id string) (*entities.StarLog, error) {
	log := &entities.StarLog{}
	err := r.conn(ctx).First(log, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return log, nil
}

func (r *repo) ListStarLogs(ctx context.Context) ([]*entities.StarLog, error) {
	var logs []*entities.StarLog
	err := r.conn(ctx).Order("timestamp DESC").Order("created_at DESC").Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *repo) ListStarLogTimestamps(ctx context.Context) ([]time.Time, error) {
	var timestamps []time.Time
	err := r.conn(ctx).Model(&entities.StarLog{}).Order("timestamp DESC").Pluck("timestamp", &timestamps).Error
	if err != nil {
		return nil, err
	}
	return timestamps, nil
}

func (r *repo) CountStarLogs(ctx context.Context) (int64, error) {
	var count int64
	err := r.conn(ctx).Model(&entities.StarLog{}).Count(&count).Error
	return count, err
}

func (r *repo) CountStarLogsBetween(ctx context.Context, start, end time.Time) (int64, error) {
	var count int64
	err := r.conn(ctx).Model(&entities.StarLog{}).
		Where("timestamp >= ? AND timestamp < ?", start, end).
		Count(&count).Error
	return count, err
}

func (r *repo) DeleteStarLog(ctx context.Context, id string) (int64, error) {
	result := r.conn(ctx).Where("id = ?", id).Delete(&entities.StarLog{})
	return result.RowsAffected, result.Error
}

func (r *repo) DeleteStarLogsBetween(ctx context.Context, start, end time.Time) (int64, error) {
	result := r.conn(ctx).Where("timestamp >= ? AND timestamp < ?", start, end).Delete(&entities.StarLog{})
	return result.RowsAffected, result.Error
}

func (r *repo) DeleteAllStarLogs(ctx context.Context) (int64, error) {
	result := r.conn(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&entities.StarLog{})
	return result.RowsAffected, result.Error
}

func (r *repo) CreateJob(ctx context.Context, job *entities.Job) error {
	return r.conn(ctx).Create(job).Error
}

func (r *repo) FindJobById(ctx context.Context, id uuid.UUID) (*entities.Job, error) {
	job := &entities.Job{}
	err := r.conn(ctx).First(job, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}

	return job, nil
}

func (r *repo) UpdateStatusJob(ctx context.Context, status constant.JobStatus, id uuid.UUID) error {
	result := r.conn(ctx).Model(&entities.Job{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) UpdateJobObjectName(ctx context.Context, id uuid.UUID, objectName string) error {
	return r.conn(ctx).Model(&entities.Job{}).Where("id = ?", id).Update("object_name", objectName).Error
}

// CreateDonation ignores replays of an already recorded checkout.
func (r *repo) CreateDonation(ctx context.Context, donation *entities.Donation) error {
	return r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "checkout_id"}},
		DoNothing: true,
	}).Create(donation).Error
}
