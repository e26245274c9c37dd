package workerproc

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"competitor-knowledge/internal/queue"
	"competitor-knowledge/internal/shared/metrics"
	"competitor-knowledge/internal/shared/telemetry"
)

const defaultReceiveWait = 5 * time.Second

// Consume pulls messages from recv and runs them with at most concurrency in flight.
// It returns when ctx is cancelled or the queue is closed, after in-flight steps finish.
func Consume(ctx context.Context, recv queue.Receiver, runner StepRunner, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}
	var g errgroup.Group
	g.SetLimit(concurrency)
	// In-flight steps finish even after shutdown starts.
	stepCtx := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			break
		}
		body, ok, err := recv.Receive(ctx, defaultReceiveWait)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || ctx.Err() != nil {
				break
			}
			telemetry.Error("worker.receive_failed", map[string]any{"error": err.Error()})
			continue
		}
		if !ok {
			continue
		}
		metrics.IncAnalysisJobsReceived()
		g.Go(func() error {
			process(stepCtx, runner, body)
			return nil
		})
	}
	return g.Wait()
}

// process runs one message body. Receiver-backed queues have no redelivery, so failures are logged and dropped.
func process(ctx context.Context, runner StepRunner, body string) {
	msg, meta, err := ParseMessage(body)
	if err != nil {
		metrics.IncAnalysisJobsDeletedUnrecoverable()
		telemetry.Error("worker.analysis.decode_failed", map[string]any{
			"body_len":    meta.BodyLen,
			"body_sha256": meta.BodySHA,
			"error":       err.Error(),
		})
		return
	}
	fields := map[string]any{
		"analysis_id": msg.AnalysisID,
		"step":        msg.Step,
		"request_id":  msg.RequestID,
	}
	telemetry.Info("worker.analysis.received", fields)
	if err := HandleMessage(WithParsedMessage(ctx, msg), runner, body); err != nil {
		fields["error"] = err.Error()
		if Unrecoverable(err) {
			metrics.IncAnalysisJobsDeletedUnrecoverable()
		} else {
			metrics.IncAnalysisJobsFailed()
		}
		telemetry.Error("worker.analysis.failed", fields)
		return
	}
	metrics.IncAnalysisJobsCompleted()
	telemetry.Info("worker.analysis.completed", fields)
}
