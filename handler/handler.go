package handler

import (
	"captains-log/dto"
	"captains-log/service"
	"context"
	"encoding/json"
	"errors"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type ServiceDependencies struct {
	ExportService service.ExportService
}

// ExportJobHandler consumes one export request from the queue.
func ExportJobHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var message dto.ExportMessage
	if err := json.Unmarshal(msg.Body, &message); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal export message")
		return backoff.Permanent(err)
	}

	zerolog.Ctx(ctx).Info().
		Str("job_id", message.JobId.String()).
		Str("user_id", message.UserId).
		Msg("received export message")

	err := deps.ExportService.Process(ctx, message)
	if errors.Is(err, service.ErrNonRetryable) {
		return backoff.Permanent(err)
	}
	return err
}
