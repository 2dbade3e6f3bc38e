package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/vulnscan/scanengine/pkg/scanner"
	"github.com/vulnscan/scanengine/pkg/semaphore"
	"github.com/vulnscan/scanengine/pkg/types"
)

// updateResult is the internal outcome of one update(scan) step (§4.5.2
// point 3), distinct from ReturnCode because "retry" and "running" are
// not terminal and don't map one-to-one onto the handler's final codes.
type updateResult int

const (
	updateRunning updateResult = iota
	updateRetry
	updateFinished
	updateStopped
	updateInterrupted
	updateError
)

// progressError interprets a negative or out-of-range progress value
// (§4.5.2 point 3a/b): -1 is transient, -2 is scan-not-found, anything
// else is a malformed value the handler must treat as an error.
func progressError(progress int) (transient bool, notFound bool, malformed bool) {
	switch {
	case progress == -1:
		return true, false, false
	case progress == -2:
		return false, true, false
	case progress < 0 || progress > 100:
		return false, false, true
	default:
		return false, false, false
	}
}

// pollPhase runs the update loop of §4.5.2 until a terminal code or a
// yield condition is reached.
func (h *Handler) pollPhase(ctx context.Context, client scanner.API, task *types.Task, report *types.Report, scanID string, yieldTime time.Time) (ReturnCode, error) {
	budget := h.Config.ScannerConnectionRetry

	for {
		fresh, err := h.Store.GetTask(task.ID)
		if err == nil {
			task.Status = fresh.Status
		}
		if task.Status == types.TaskStopped || task.Status == types.TaskStopRequested {
			return CodeAlreadyStopped, nil
		}

		switch h.Gate.Acquire(updateSemaphoreWait) {
		case semaphore.TimedOut:
			// Restart the iteration; this does not count against the retry budget.
			continue
		case semaphore.AcquireError:
			_ = client.DeleteScan(ctx, scanID)
			return CodeInterrupted, fmt.Errorf("handler: semaphore signaling error for %s", scanID)
		}

		result, err := h.update(ctx, client, task, report, scanID, &budget)
		if relErr := h.Gate.Release(); relErr != nil {
			return CodeInterrupted, fmt.Errorf("handler: semaphore release error for %s: %w", scanID, relErr)
		}

		switch result {
		case updateRetry:
			continue
		case updateFinished:
			return CodeFinished, nil
		case updateStopped:
			return CodeStopped, nil
		case updateInterrupted:
			return CodeInterrupted, nil
		case updateError:
			return CodeError, err
		case updateRunning:
			if !yieldTime.IsZero() && !h.now().Before(yieldTime) {
				queueLen, lenErr := h.Store.Length()
				maxActive := h.Config.MaxActiveScanHandlers
				if lenErr == nil && maxActive > 0 && queueLen > maxActive {
					return CodeRunning, nil
				}
			}
			budget = h.Config.ScannerConnectionRetry
			h.sleep(pollSleep)
		}
	}
}

// update implements §4.5.2 point 3: fetch progress and results, ingest
// them into the report, then interpret scanner status. The progress
// sentinel check (point 3a) and the results ingestion (point 3b/c) share
// one scanner round trip here, since the transport in §4.6 returns both
// together; a transport with a cheaper progress-only call could apply the
// same sentinel check before paying for the full fetch.
func (h *Handler) update(ctx context.Context, client scanner.API, task *types.Task, report *types.Report, scanID string, budget *int) (updateResult, error) {
	progress, rows, err := client.GetScanPop(ctx, scanID)
	if err != nil {
		return h.retryOrFail(ctx, client, report, scanID, budget, "Scan stopped unexpectedly by the server")
	}

	if transient, notFound, malformed := progressError(progress); transient || notFound || malformed {
		switch {
		case transient:
			return h.retryOrFail(ctx, client, report, scanID, budget, "Erroneous scan progress value")
		case notFound:
			return updateStopped, nil
		default:
			addResult(report, "Erroneous scan progress value", "Error", h.now())
			return updateError, fmt.Errorf("handler: erroneous scan progress value %d", progress)
		}
	}

	report.Results = append(report.Results, rows...)
	report.Progress = progress
	report.UpdatedAt = h.now()
	_ = h.Store.UpdateReport(report)

	status, err := client.GetScanStatus(ctx, scanID)
	if err != nil {
		return h.retryOrFail(ctx, client, report, scanID, budget, "Scan stopped unexpectedly by the server")
	}

	return h.interpretStatus(ctx, client, task, report, scanID, status, progress, budget)
}

// retryOrFail consumes one unit of retry budget, sleeping and returning
// "retry"; once exhausted, promotes to a permanent failure with the given
// result message, which the caller chooses based on what triggered the
// retry (§8 scenario #2 requires the transient-progress caller to report
// "Erroneous scan progress value", not the generic server-stopped message).
func (h *Handler) retryOrFail(ctx context.Context, client scanner.API, report *types.Report, scanID string, budget *int, exhaustedMessage string) (updateResult, error) {
	if *budget > 0 {
		*budget--
		h.sleep(retrySleep)
		return updateRetry, nil
	}
	addResult(report, exhaustedMessage, "Error", h.now())
	return updateError, fmt.Errorf("handler: retry budget exhausted for %s", scanID)
}

// interpretStatus implements §4.5.2 point 3d.
func (h *Handler) interpretStatus(ctx context.Context, client scanner.API, task *types.Task, report *types.Report, scanID string, status types.ScannerStatus, progress int, budget *int) (updateResult, error) {
	switch status {
	case types.ScannerQueued:
		h.transitionTaskOnce(task, types.TaskQueued)
		return updateRunning, nil

	case types.ScannerInterrupted:
		addResult(report, "Task interrupted unexpectedly", "Error", h.now())
		_ = client.DeleteScan(ctx, scanID)
		return updateInterrupted, nil

	case types.ScannerStopped:
		if progress < 100 {
			if *budget > 0 {
				*budget--
				h.sleep(retrySleep)
				return updateRetry, nil
			}
			addResult(report, "Scan stopped unexpectedly by the server", "Error", h.now())
			return updateError, fmt.Errorf("handler: scan %s stopped prematurely", scanID)
		}
		return updateStopped, nil

	case types.ScannerFinished:
		if progress == 100 {
			_ = client.DeleteScan(ctx, scanID)
			h.transitionTaskOnce(task, types.TaskRunning)
			return updateFinished, nil
		}
		return updateRunning, nil

	case types.ScannerRunning:
		h.transitionTaskOnce(task, types.TaskRunning)
		return updateRunning, nil

	default:
		return updateError, fmt.Errorf("handler: unrecognized scanner status %q", status)
	}
}

// transitionTaskOnce applies the idempotent status transition §4.5.2
// describes for QUEUED/RUNNING: only mutate, and only persist, when the
// task isn't already in that state.
func (h *Handler) transitionTaskOnce(task *types.Task, status types.TaskStatus) {
	if task.Status == status {
		return
	}
	task.Status = status
	_ = h.Store.UpdateTask(task)
}
