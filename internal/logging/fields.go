package logging

// Standardized attribute keys shared across components. Using the constants
// keeps log queries stable when call sites move between packages.
const (
	FieldComponent = "component"
	FieldJobID     = "job_id"
	FieldStage     = "stage"
	FieldRequestID = "request_id"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
)
