package ir

// Version constants for the wire schema and engine.
const (
	// WireVersion is the WireEvent schema version, recorded in snapshots.
	WireVersion = 1

	// EngineVersion is the condense engine version.
	EngineVersion = "0.1.0"
)
