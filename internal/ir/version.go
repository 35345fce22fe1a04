package ir

// Version constants for the engine and its serialized output.
const (
	// FormatVersion is the version of the canonical trace/golden format.
	FormatVersion = "1"

	// EngineVersion is the navex engine version.
	EngineVersion = "0.1.0"
)
