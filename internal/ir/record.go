package ir

// ChangeKind classifies a journaled change.
type ChangeKind string

const (
	// ChangeValue is a committed value change.
	ChangeValue ChangeKind = "value"
	// ChangeOptions is a replacement of the option list.
	ChangeOptions ChangeKind = "options"
	// ChangeValidity is a change of per-option validity only.
	ChangeValidity ChangeKind = "validity"
)

// ChangeRecord is one committed change as written to a journal.
// Seq comes from the session's logical clock; there are no wall-clock
// timestamps.
type ChangeRecord struct {
	SessionID string     `json:"session_id"`
	Seq       int64      `json:"seq"`
	Variable  string     `json:"variable"`
	Kind      ChangeKind `json:"kind"`
	Old       Value      `json:"old"`
	New       Value      `json:"new"`
	Cause     string     `json:"cause"`
	Detail    string     `json:"detail,omitempty"`
}

// SessionRecord identifies one journaled session and the rule set it ran.
type SessionRecord struct {
	ID            string `json:"id"`
	RulesName     string `json:"rules_name"`
	RulesHash     string `json:"rules_hash"`
	StartedSeq    int64  `json:"started_seq"`
	EngineVersion string `json:"engine_version"`
	IRVersion     string `json:"ir_version"`
}
