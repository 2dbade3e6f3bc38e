/*
Package log provides structured logging for the scan dispatch subsystem
using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("supervisor")              │          │
	│  │  - WithTaskID("42")                         │          │
	│  │  - WithReportID("r-abc123")                 │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "handler",                  │          │
	│  │    "report_id": "r-abc123",                 │          │
	│  │    "time": "2024-10-13T10:30:00Z",         │          │
	│  │    "message": "__handler-run: started"      │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  2024-10-13T10:30:00Z INF __handler-run: started component=handler │ │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from every package in this module
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithTaskID: Add task ID context
  - WithReportID: Add report ID context

# Usage

Initializing the Logger:

	import "github.com/vulnscan/scanengine/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("Queue supervisor started")
	log.Debug("Checking queue length")
	log.Warn("Handler process exited unexpectedly")
	log.Error("Failed to connect to scanner")
	log.Fatal("Cannot start without a store") // Exits process

Component Loggers:

	// Create a component-specific logger for the supervisor tick loop
	supervisorLog := log.WithComponent("supervisor")
	supervisorLog.Debug().Int("active_handlers", 3).Msg("tick complete")

	// A grandchild handler process tags every log line with its
	// report and task ids for the lifetime of the process
	handlerLog := log.WithComponent("handler").With().
		Str("report_id", reportID).
		Str("task_id", taskID).Logger()
	handlerLog.Info().Msg("__handler-run: started")

# Security

Log Content:
  - Never log secrets or sensitive data
  - Credentials references (pkg/types.Credentials) are opaque ids — fine to
    log; the blobs they point to (pkg/types.Secret) are not
  - Redact tokens, passwords, API keys
  - Review logs before sharing externally

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Structured logging: https://www.thoughtworks.com/radar/techniques/structured-logging
*/
package log
