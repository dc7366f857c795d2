package ir

// Version constants for the rule-set IR and the engine.
const (
	// IRVersion is the rule-set IR schema version.
	IRVersion = "1"

	// EngineVersion is the caseconf engine version.
	EngineVersion = "0.1.0"
)
