package types

// SessionMetadata carries the descriptive metadata archived alongside a
// session: who ran it, where, on which animal, plus per-field overrides
// for the trial column tables. It is loaded from an editable YAML file
// next to the session export and merged over lab defaults (see
// internal/metadata); alignment passes it through untouched.
type SessionMetadata struct {
	Description  string
	Experimenter string
	Institution  string
	Lab          string

	Subject SubjectMetadata

	// Columns overrides trial parameter column specs by source field
	// name. Entries here win over the built-in tables.
	Columns map[string]ColumnSpec
}

// SubjectMetadata describes the animal.
type SubjectMetadata struct {
	Description string
	Species     string
	Sex         string
}
