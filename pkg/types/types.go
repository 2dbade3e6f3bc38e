// Package types holds the durable record shapes shared across the scan
// dispatch subsystem: queue entries, tasks, reports and the scanner
// connection data a handler needs to reach an external scanner.
package types

import "time"

// TaskStatus is the lifecycle state of a scan task.
type TaskStatus string

const (
	TaskRequested       TaskStatus = "REQUESTED"
	TaskQueued          TaskStatus = "QUEUED"
	TaskRunning         TaskStatus = "RUNNING"
	TaskStopRequested   TaskStatus = "STOP_REQUESTED"
	TaskStopped         TaskStatus = "STOPPED"
	TaskInterrupted     TaskStatus = "INTERRUPTED"
	TaskProcessing      TaskStatus = "PROCESSING"
	TaskDone            TaskStatus = "DONE"
	TaskDeleteRequested TaskStatus = "DELETE_REQUESTED"
)

// IsTerminal reports whether a status is one of the scan's terminal states.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStopped, TaskInterrupted, TaskDone:
		return true
	default:
		return false
	}
}

// StartFromMode controls how the start phase treats a partially-run scan.
type StartFromMode int

const (
	FromScratch StartFromMode = iota
	ResumeRequired
	ResumeOrScratch
)

// ScannerKind enumerates the scanner backends the queue supports.
type ScannerKind string

const (
	ScannerOpenVAS   ScannerKind = "OPENVAS"
	ScannerOSPSensor ScannerKind = "OSP_SENSOR"
)

// Supported reports whether the handler knows how to drive this scanner kind.
func (k ScannerKind) Supported() bool {
	return k == ScannerOpenVAS || k == ScannerOSPSensor
}

// ScanRequest is the Q-store's durable queue entry.
type ScanRequest struct {
	ReportID   string
	ReportKey  int64
	TaskKey    int64
	OwnerKey   int64
	StartFrom  StartFromMode
	HandlerPID int
	Position   int64 // monotonic enqueue order, assigned by the store

	// WaitUntilActive, when true, has the start phase poll until the
	// scanner reports the scan QUEUED or RUNNING before returning; when
	// false, the start phase returns as soon as the scan is launched,
	// without confirming it was actually scheduled.
	WaitUntilActive bool
}

// Owner is the session identity a grandchild handler process bootstraps into.
type Owner struct {
	UUID     string
	Username string
}

// Target describes the hosts a task scans.
type Target struct {
	Hosts              []string
	ExcludeHosts       []string
	Ports              string
	AliveTest          string
	ReverseLookupOnly  bool
	ReverseLookupUnify bool
}

// Credentials bundles the optional per-protocol credential references a
// task may carry; each field is an opaque reference id into the credential
// store and is empty when the protocol isn't configured for this target.
type Credentials struct {
	SSH  string
	SMB  string
	ESXi string
	SNMP string
	Krb5 string
}

// VTSelection is the set of vulnerability-test OIDs and their preferences.
type VTSelection struct {
	OIDs        []string
	Preferences map[string]VTPreference // keyed by "oid:name"
}

// VTPreferenceType mirrors the scanner's preference widget types, which
// determine how a value is encoded on the wire (§4.5.1).
type VTPreferenceType string

const (
	VTPrefCheckbox VTPreferenceType = "checkbox"
	VTPrefRadio    VTPreferenceType = "radio"
	VTPrefFile     VTPreferenceType = "file"
	VTPrefEntry    VTPreferenceType = "entry"
)

// VTPreference is a single named preference value for a VT.
type VTPreference struct {
	Type  VTPreferenceType
	Value string
}

// ScanConfigPreferences holds scheduling-related scan config options.
type ScanConfigPreferences struct {
	MaxChecks     int
	MaxHosts      int
	HostsOrdering string
}

// Task is the durable scan configuration plus its current status.
type Task struct {
	ID                 string
	Scanner            ScannerKind
	Target             Target
	Credentials        Credentials
	ScannerPrefs       map[string]string
	VTs                VTSelection
	ScanConfig         ScanConfigPreferences
	Status             TaskStatus
	InAssetsPreference bool
}

// Report is the durable row a handler writes progress and results to.
type Report struct {
	ID                 string
	OwnerKey           int64
	TaskKey            int64
	Status             TaskStatus
	Progress           int
	Results            []ResultRow
	ProcessingRequired bool
	InAssets           bool
	UpdatedAt          time.Time
}

// ResultRow is a single synthetic or scanner-reported diagnostic line.
type ResultRow struct {
	Message   string
	Severity  string
	CreatedAt time.Time
}

// ScannerStatus is the status an external scanner reports for a running scan.
type ScannerStatus string

const (
	ScannerQueued      ScannerStatus = "QUEUED"
	ScannerRunning     ScannerStatus = "RUNNING"
	ScannerFinished    ScannerStatus = "FINISHED"
	ScannerStopped     ScannerStatus = "STOPPED"
	ScannerInterrupted ScannerStatus = "INTERRUPTED"
	ScannerError       ScannerStatus = "ERROR"
)

// ConnectionData describes how a handler connects to an external scanner.
// Created once per scan loop iteration and released on each loop exit.
type ConnectionData struct {
	Host           string // unix-socket path when it begins with '/'
	Port           int    // 0 for unix socket
	CACert         []byte
	ClientCert     []byte
	ClientKey      []byte
	UseRelayMapper bool
}

// IsUnixSocket reports whether this connection targets a local socket.
func (c ConnectionData) IsUnixSocket() bool {
	return len(c.Host) > 0 && c.Host[0] == '/'
}

// AssetObservation is a target observed during a scan (§4.2).
type AssetObservation struct {
	IP       string
	Hostname string
	MAC      string
}

// Empty reports whether all three identifying fields are unset, which makes
// the observation ineligible for any match (§3 invariant).
func (o *AssetObservation) Empty() bool {
	return o == nil || (o.IP == "" && o.Hostname == "" && o.MAC == "")
}

// MatchField is a bit position in an AssetCandidate's match mask.
type MatchField uint8

const (
	MatchMAC MatchField = 1 << iota
	MatchHostname
	MatchIP
)

// AssetCandidate is a previously-known asset identity considered during a
// merge decision.
type AssetCandidate struct {
	Key      string
	Mask     MatchField
	LastSeen time.Time
	IP       string
	Hostname string
	MAC      string
}

// MergeDecision is the outcome of the asset-key merge algorithm (§4.2).
type MergeDecision struct {
	NeedsNewKey  bool
	SelectedKey  string
	SelectedIdx  int
	MergeIndices []int
}

// Relation is a filter keyword's comparison operator (§4.1).
type Relation string

const (
	RelApprox    Relation = "APPROX"
	RelColEqual  Relation = "COL_EQUAL"
	RelColApprox Relation = "COL_APPROX"
	RelColAbove  Relation = "COL_ABOVE"
	RelColBelow  Relation = "COL_BELOW"
	RelColRegexp Relation = "COL_REGEXP"
)

// ValueType is the inferred type of a filter keyword's value.
type ValueType string

const (
	ValString  ValueType = "STRING"
	ValInteger ValueType = "INTEGER"
	ValDouble  ValueType = "DOUBLE"
)

// Secret is an encrypted credential blob referenced by a Credentials field
// (e.g. an SSH private key or SMB password), keyed by the opaque id that
// Credentials.SSH/SMB/ESXi/SNMP/Krb5 stores.
type Secret struct {
	ID   string
	Name string
	Data []byte // AES-256-GCM ciphertext, nonce-prefixed
}

// FilterKeyword is one parsed term of a filter string (§3, §4.1).
type FilterKeyword struct {
	Column      string
	Relation    Relation
	RawValue    string
	Type        ValueType
	IntValue    int64
	DoubleValue float64
	Quoted      bool
}
