package handler

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/vulnscan/scanengine/pkg/scanner"
	"github.com/vulnscan/scanengine/pkg/types"
)

func base64Encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// resumeOutcome is the three-way result resumePreparation returns (§4.5.1
// point 1): resumeStartFresh when the remote scan was stopped and/or deleted
// and the partial report trimmed, resumeContinue when the scanner reports a
// status it does not recognise (the scan is not found there) and the local
// report is kept as is, and resumeFailed on a status or delete error.
type resumeOutcome int

const (
	resumeStartFresh resumeOutcome = 1
	resumeContinue   resumeOutcome = 0
	resumeFailed     resumeOutcome = -1
)

// resumePreparation implements §4.5.1 point 1: when a scan is being
// resumed, reconcile whatever state the remote scanner still holds before
// deciding whether to launch fresh or continue.
func (h *Handler) resumePreparation(ctx context.Context, client scanner.API, report *types.Report, scanID string) resumeOutcome {
	status, err := client.GetScanStatus(ctx, scanID)
	if err != nil {
		return resumeFailed
	}

	switch status {
	case types.ScannerQueued, types.ScannerRunning:
		if err := client.StopScan(ctx, scanID); err != nil {
			return resumeFailed
		}
		if err := client.DeleteScan(ctx, scanID); err != nil {
			return resumeFailed
		}
		h.trimPartialReport(report)
		return resumeStartFresh
	case types.ScannerFinished, types.ScannerStopped, types.ScannerInterrupted, types.ScannerError:
		if err := client.DeleteScan(ctx, scanID); err != nil {
			return resumeFailed
		}
		h.trimPartialReport(report)
		return resumeStartFresh
	default:
		// Not found on the scanner: continue with the existing local report.
		return resumeContinue
	}
}

// trimPartialReport discards any partial results left by a prior,
// now-abandoned run, so a fresh launch starts from a clean report.
func (h *Handler) trimPartialReport(report *types.Report) {
	report.Results = nil
	report.Progress = 0
}

// startPhase implements §4.5.1: optional resume preparation, launch
// assembly, and an optional wait-until-active poll.
func (h *Handler) startPhase(ctx context.Context, client scanner.API, task *types.Task, report *types.Report, scanID string, startFrom types.StartFromMode, waitUntilActive bool) (ReturnCode, error) {
	if startFrom != types.FromScratch {
		switch h.resumePreparation(ctx, client, report, scanID) {
		case resumeFailed:
			return CodeError, fmt.Errorf("handler: resume preparation failed for %s", scanID)
		}
	}

	req, err := buildLaunchRequest(scanID, task)
	if err != nil {
		addResult(report, err.Error(), "Error", h.now())
		return CodeError, err
	}

	if err := client.StartScan(ctx, req); err != nil {
		addResult(report, fmt.Sprintf("Failed to start scan: %v", err), "Error", h.now())
		return CodeError, err
	}

	task.Status = types.TaskQueued
	if err := h.Store.UpdateTask(task); err != nil {
		return CodeError, err
	}

	if !waitUntilActive {
		// §9 open question: preserved as observable behavior — the start
		// phase reports success without confirming the scan was actually
		// scheduled on the scanner.
		return CodeFinished, nil
	}

	yieldTime := h.now().Add(h.Config.ScanHandlerActiveTime)
	return h.waitUntilActive(ctx, client, task, report, scanID, yieldTime)
}

// waitUntilActive polls until the scanner reports QUEUED or RUNNING,
// bailing on an externally-requested stop (§4.5.1 point 3).
func (h *Handler) waitUntilActive(ctx context.Context, client scanner.API, task *types.Task, report *types.Report, scanID string, yieldTime time.Time) (ReturnCode, error) {
	budget := h.Config.ScannerConnectionRetry

	for {
		fresh, err := h.Store.GetTask(task.ID)
		if err == nil && (fresh.Status == types.TaskStopped || fresh.Status == types.TaskStopRequested) {
			return CodeAlreadyStopped, nil
		}

		status, err := client.GetScanStatus(ctx, scanID)
		if err != nil {
			if budget <= 0 {
				return CodeError, fmt.Errorf("handler: wait_until_active retry budget exhausted: %w", err)
			}
			budget--
			h.sleep(retrySleep)
			continue
		}

		switch status {
		case types.ScannerQueued, types.ScannerRunning:
			return h.pollPhase(ctx, client, task, report, scanID, yieldTime)
		case types.ScannerStopped:
			return CodeStopped, nil
		}

		h.sleep(pollSleep)
	}
}

// vtPreferenceValue encodes a single VT preference per its widget type
// (§4.5.1 point 2): checkbox collapses to "1"/"0", radio keeps only the
// first semicolon-separated option, file is base64-encoded, and entry
// passes through unchanged.
func vtPreferenceValue(pref types.VTPreference) string {
	switch pref.Type {
	case types.VTPrefCheckbox:
		if pref.Value == "yes" || pref.Value == "1" {
			return "1"
		}
		return "0"
	case types.VTPrefRadio:
		if idx := strings.IndexByte(pref.Value, ';'); idx >= 0 {
			return pref.Value[:idx]
		}
		return pref.Value
	case types.VTPrefFile:
		return base64Encode(pref.Value)
	default: // entry
		return pref.Value
	}
}

// scannerPrefValue translates a scanner preference's textual boolean
// convention and skips timeout.* keys (§4.5.1 point 2).
func scannerPrefValue(key, value string) (string, bool) {
	if strings.HasPrefix(key, "timeout.") {
		return "", false
	}
	switch value {
	case "yes":
		return "1", true
	case "no":
		return "0", true
	default:
		return value, true
	}
}

// buildLaunchRequest assembles the scanner launch request from a task
// (§4.5.1 point 2), failing loudly when the VT list is empty.
func buildLaunchRequest(scanID string, task *types.Task) (scanner.StartScanRequest, error) {
	if len(task.VTs.OIDs) == 0 {
		return scanner.StartScanRequest{}, fmt.Errorf("handler: cannot launch scan with an empty VT list")
	}

	prefs := make(map[string]string, len(task.ScannerPrefs))
	for k, v := range task.ScannerPrefs {
		if translated, ok := scannerPrefValue(k, v); ok {
			prefs[k] = translated
		}
	}

	vtPrefs := make(map[string]types.VTPreference, len(task.VTs.Preferences))
	for k, pref := range task.VTs.Preferences {
		vtPrefs[k] = types.VTPreference{Type: pref.Type, Value: vtPreferenceValue(pref)}
	}

	return scanner.StartScanRequest{
		ScanID:       scanID,
		Target:       task.Target,
		Credentials:  task.Credentials,
		ScannerPrefs: prefs,
		VTs:          types.VTSelection{OIDs: task.VTs.OIDs, Preferences: vtPrefs},
		ScanConfig:   task.ScanConfig,
	}, nil
}
