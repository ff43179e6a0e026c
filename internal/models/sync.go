package models

// PushRecordError reports a single rejected record in a push batch.
// A rejected record never aborts the rest of the batch.
type PushRecordError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}
