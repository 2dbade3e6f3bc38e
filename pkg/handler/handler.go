// Package handler implements the Scan Handler (H): the per-scan process
// body a supervisor forks, covering both the start phase (launching a new
// scan, or resuming one) and the poll phase (the update loop that ingests
// scanner progress until the scan reaches a terminal state or yields).
package handler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/vulnscan/scanengine/pkg/config"
	"github.com/vulnscan/scanengine/pkg/log"
	"github.com/vulnscan/scanengine/pkg/scanner"
	"github.com/vulnscan/scanengine/pkg/semaphore"
	"github.com/vulnscan/scanengine/pkg/storage"
	"github.com/vulnscan/scanengine/pkg/types"
)

// ReturnCode is the outcome of a handler's main body (§4.5).
type ReturnCode int

const (
	CodeFinished      ReturnCode = 0
	CodeRunning       ReturnCode = 2
	CodeError         ReturnCode = -1
	CodeStopped       ReturnCode = -2
	CodeInterrupted   ReturnCode = -3
	CodeAlreadyStopped ReturnCode = -4
)

func (c ReturnCode) terminal() bool { return c != CodeRunning }

const (
	updateSemaphoreWait = 5 * time.Second
	pollSleep           = 5 * time.Second
	retrySleep          = 1 * time.Second
)

// Handler drives a single scan request through to a terminal state or a
// yield. One Handler is created per grandchild process.
type Handler struct {
	Store  storage.Store
	Config *config.Config
	Gate   *semaphore.Gate

	// Connect opens a scanner.API for a task's connection data. Injected
	// so tests can supply a fake without a live scanner.
	Connect func(ctx context.Context, data types.ConnectionData) (scanner.API, error)

	// Sleep is time.Sleep by default; tests override it to skip real
	// delays while still exercising the loop's control flow.
	Sleep func(time.Duration)

	// Now is time.Now by default; tests override it for deterministic
	// yield-time checks.
	Now func() time.Time
}

func (h *Handler) sleep(d time.Duration) {
	if h.Sleep != nil {
		h.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Run executes the handler main body of §4.5 for one scan request,
// finalizing Q-store and task/report state before returning.
func (h *Handler) Run(ctx context.Context, req *types.ScanRequest, data types.ConnectionData) (ReturnCode, error) {
	taskID := strconv.FormatInt(req.TaskKey, 10)

	task, err := h.Store.GetTask(taskID)
	if err != nil {
		return CodeError, fmt.Errorf("handler: load task %s: %w", taskID, err)
	}
	report, err := h.Store.GetReport(req.ReportID)
	if err != nil {
		return CodeError, fmt.Errorf("handler: load report %s: %w", req.ReportID, err)
	}

	if !task.Scanner.Supported() {
		task.Status = types.TaskInterrupted
		report.Status = types.TaskInterrupted
		h.saveTerminal(task, report, CodeInterrupted)
		return CodeInterrupted, nil
	}

	client, err := h.Connect(ctx, data)
	if err != nil {
		return CodeError, fmt.Errorf("handler: connect scanner: %w", err)
	}
	defer client.Close()

	scanID := req.ReportID

	var code ReturnCode
	if task.Status == types.TaskRequested {
		code, err = h.startPhase(ctx, client, task, report, scanID, req.StartFrom, req.WaitUntilActive)
	} else {
		yieldTime := h.now().Add(h.Config.ScanHandlerActiveTime)
		code, err = h.pollPhase(ctx, client, task, report, scanID, yieldTime)
	}
	if err != nil {
		log.Warn(fmt.Sprintf("handler: scan %s: %v", scanID, err))
	}

	if !code.terminal() {
		if mErr := h.Store.MoveToEnd(req.ReportID); mErr != nil {
			log.Warn(fmt.Sprintf("handler: move_to_end %s: %v", req.ReportID, mErr))
		}
		return code, err
	}

	h.saveTerminal(task, report, code)
	return code, err
}

// saveTerminal applies §4.5 point 4's final-status bookkeeping and removes
// the Q-store entry.
func (h *Handler) saveTerminal(task *types.Task, report *types.Report, code ReturnCode) {
	switch code {
	case CodeFinished:
		task.Status = types.TaskDone
		report.Status = types.TaskDone
		report.InAssets = task.InAssetsPreference
	case CodeStopped, CodeAlreadyStopped:
		task.Status = types.TaskStopped
		report.Status = types.TaskStopped
	case CodeInterrupted:
		task.Status = types.TaskInterrupted
		report.Status = types.TaskInterrupted
	default: // CodeError
		task.Status = types.TaskDone
		report.Status = types.TaskDone
	}
	report.ProcessingRequired = true
	report.UpdatedAt = h.now()

	if err := h.Store.UpdateTask(task); err != nil {
		log.Warn(fmt.Sprintf("handler: update task %s: %v", task.ID, err))
	}
	if err := h.Store.UpdateReport(report); err != nil {
		log.Warn(fmt.Sprintf("handler: update report %s: %v", report.ID, err))
	}
	if err := h.Store.Remove(report.ID); err != nil {
		log.Warn(fmt.Sprintf("handler: remove queue entry %s: %v", report.ID, err))
	}
}

// addResult appends a synthetic diagnostic row, the mechanism §7 uses for
// every error taxonomy entry that isn't a bare status transition.
func addResult(report *types.Report, message, severity string, now time.Time) {
	report.Results = append(report.Results, types.ResultRow{
		Message: message, Severity: severity, CreatedAt: now,
	})
}
