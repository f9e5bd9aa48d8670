package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldBatch is the standardized key for the yymmdd batch folder.
	FieldBatch = "batch"
	// FieldSourceFile is the standardized key for a source recording name.
	FieldSourceFile = "source_file"
	// FieldRunID correlates every line emitted by one invocation.
	FieldRunID = "run_id"
	// FieldEventType names the kind of event a line records.
	FieldEventType = "event_type"
	// FieldDecisionType labels decision log lines so they can be filtered.
	FieldDecisionType = "decision_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)
