package service

import (
	"context"

	"github.com/phrazzld/scheduled-mail-api/internal/domain"
	"github.com/phrazzld/scheduled-mail-api/internal/platform/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// RunDueScan implements MailTaskService.
//
// Tasks are claimed one at a time with a conditional update, so concurrent
// scans and immediate sends never dispatch the same task twice. A task that
// cannot be claimed is skipped. Once ctx is done no further tasks are
// claimed; tasks already claimed still finish dispatching.
func (s *mailTaskServiceImpl) RunDueScan(ctx context.Context) (int, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "mail_task.scan")
	defer span.End()

	log := s.log(ctx)

	due, err := s.store.FindDue(ctx, s.now())
	if err != nil {
		telemetry.ScanRuns.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "find due tasks")
		return 0, NewServiceError("scan", "failed to find due tasks", err)
	}

	processed := 0
	for i, task := range due {
		if ctx.Err() != nil {
			log.Warn("scan interrupted", "processed", processed, "remaining", len(due)-i)
			break
		}

		claimed, err := s.store.Claim(ctx, task.ID)
		if err != nil {
			log.Warn("failed to claim due task", "task_id", task.ID, "error", err)
			continue
		}
		if !claimed {
			log.Debug("due task claimed elsewhere", "task_id", task.ID)
			continue
		}

		task.Status = domain.TaskStatusProcessing
		s.Dispatch(ctx, task)
		processed++
	}

	telemetry.ScanRuns.WithLabelValues("ok").Inc()
	telemetry.ScanClaimed.Add(float64(processed))
	span.SetAttributes(
		attribute.Int("scan.due", len(due)),
		attribute.Int("scan.processed", processed),
	)
	if processed > 0 {
		log.Info("due scan finished", "due", len(due), "processed", processed)
	}
	return processed, nil
}
