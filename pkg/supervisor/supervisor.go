// Package supervisor implements the Queue Supervisor (S): the tick
// procedure that walks the Q-store, probes handler liveness, and forks a
// new handler process for every entry that needs one.
package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/vulnscan/scanengine/pkg/config"
	"github.com/vulnscan/scanengine/pkg/log"
	"github.com/vulnscan/scanengine/pkg/storage"
	"github.com/vulnscan/scanengine/pkg/types"
)

// pidPipeTimeout bounds how long the supervisor waits for the intermediate
// child to report the grandchild's pid before treating the fork as failed.
const pidPipeTimeout = 5 * time.Second

// Forker starts a new handler process for a Q-store entry and returns the
// grandchild's pid. Exists as an interface so tests can substitute a fake
// without spawning real processes.
type Forker interface {
	Fork(req *types.ScanRequest) (pid int, err error)
}

// ExecForker implements Forker via the two-layer fork (§4.5): it re-execs
// the running binary as a `__handler-bootstrap` intermediate, which itself
// re-execs as `__handler-run` and reports its own pid back over a pipe
// before the intermediate exits. The grandchild ends up reparented to
// init, so its lifetime is independent of the supervisor's tick.
type ExecForker struct {
	// SelfPath is the executable to re-exec, normally os.Args[0].
	SelfPath string
}

func (f ExecForker) Fork(req *types.ScanRequest) (int, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return 0, fmt.Errorf("supervisor: create pid pipe: %w", err)
	}
	defer r.Close()

	cmd := exec.Command(f.SelfPath, "__handler-bootstrap", req.ReportID)
	cmd.ExtraFiles = []*os.File{w}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		w.Close()
		return 0, fmt.Errorf("supervisor: start intermediate child: %w", err)
	}
	w.Close()

	pid, readErr := readPIDWithTimeout(r, pidPipeTimeout)

	waitErr := cmd.Wait()
	if waitErr != nil {
		log.Warn(fmt.Sprintf("supervisor: intermediate child for %s exited with error: %v", req.ReportID, waitErr))
	}

	if readErr != nil {
		return 0, fmt.Errorf("supervisor: read grandchild pid: %w", readErr)
	}
	return pid, nil
}

func readPIDWithTimeout(r *os.File, timeout time.Duration) (int, error) {
	type result struct {
		pid int
		err error
	}
	done := make(chan result, 1)
	go func() {
		var pid int
		_, err := fmt.Fscanf(r, "%d", &pid)
		done <- result{pid: pid, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return 0, res.err
		}
		if res.pid <= 0 {
			return 0, fmt.Errorf("supervisor: intermediate child reported invalid pid %d", res.pid)
		}
		return res.pid, nil
	case <-time.After(timeout):
		return 0, fmt.Errorf("supervisor: timed out waiting for grandchild pid")
	}
}

// Supervisor runs the tick procedure described in §4.4.
type Supervisor struct {
	store  storage.QueueStore
	cfg    *config.Config
	forker Forker
}

// New builds a Supervisor over store, governed by cfg, forking handlers
// with forker.
func New(store storage.QueueStore, cfg *config.Config, forker Forker) *Supervisor {
	return &Supervisor{store: store, cfg: cfg, forker: forker}
}

// isAlive probes a pid with signal 0, the liveness check the tick
// procedure relies on.
func isAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil
}

// Tick runs one pass of the §4.4 procedure, returning the number of
// entries now counted active.
func (s *Supervisor) Tick() (active int, err error) {
	if !s.cfg.UseScanQueue {
		return 0, nil
	}

	entries, err := s.store.Iterate()
	if err != nil {
		return 0, fmt.Errorf("supervisor: iterate queue: %w", err)
	}

	maxActive := s.cfg.MaxActiveScanHandlers

	for _, req := range entries {
		if maxActive > 0 && active >= maxActive {
			break
		}

		if req.HandlerPID != 0 {
			if isAlive(req.HandlerPID) {
				active++
				continue
			}
			if err := s.store.MoveToEnd(req.ReportID); err != nil {
				log.Warn(fmt.Sprintf("supervisor: move_to_end %s after dead handler: %v", req.ReportID, err))
			}
			continue
		}

		pid, forkErr := s.forker.Fork(req)
		if forkErr != nil {
			log.Warn(fmt.Sprintf("supervisor: fork handler for %s failed: %v", req.ReportID, forkErr))
			if err := s.store.MoveToEnd(req.ReportID); err != nil {
				log.Warn(fmt.Sprintf("supervisor: move_to_end %s after fork failure: %v", req.ReportID, err))
			}
			continue
		}

		if err := s.store.SetHandlerPID(req.ReportID, pid); err != nil {
			log.Warn(fmt.Sprintf("supervisor: set_handler_pid %s: %v", req.ReportID, err))
			continue
		}
		active++
	}

	return active, nil
}
