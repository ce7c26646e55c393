// Package event defines the typed callback events the session
// orchestrator delivers to an external observer (spec §6), realized as
// JSON-serializable structs rather than the Rust CallbackEvent enum.
package event

import "github.com/mimecast/dgrab/internal/grab/graberr"

// Event is implemented by every callback event variant.
type Event interface {
	eventMarker()
}

// StreamUpdated reports the content grabber's line count after a
// successful Assign.
type StreamUpdated struct {
	LineCount uint64 `json:"lineCount"`
}

func (StreamUpdated) eventMarker() {}

// SearchUpdated reports the match count after a successful Search.
type SearchUpdated struct {
	LineCount uint64 `json:"lineCount"`
}

func (SearchUpdated) eventMarker() {}

// Progress is an intermediate tick during metadata building.
type Progress struct {
	Cur   uint64 `json:"cur"`
	Total uint64 `json:"total"`
}

func (Progress) eventMarker() {}

// OperationDone signals that the operation identified by UUID finished.
// Result carries an operation-specific payload (e.g. the serialized
// search result summary), or is empty if there is none.
type OperationDone struct {
	UUID   string  `json:"uuid"`
	Result *string `json:"result,omitempty"`
}

func (OperationDone) eventMarker() {}

// NativeError is the wire representation of a graberr.Error.
type NativeError struct {
	Severity graberr.Severity `json:"severity"`
	Kind     graberr.Kind     `json:"kind"`
	Message  *string          `json:"message,omitempty"`
}

// OperationError reports that the operation identified by UUID failed.
type OperationError struct {
	UUID  string      `json:"uuid"`
	Error NativeError `json:"error"`
}

func (OperationError) eventMarker() {}

// SessionDestroyed is emitted once, after Operation::End is processed.
type SessionDestroyed struct{}

func (SessionDestroyed) eventMarker() {}

// FromError converts a graberr.Error (or a plain error) into the wire
// NativeError shape used by OperationError.
func FromError(err error) NativeError {
	if gerr, ok := graberr.As(err); ok {
		msg := gerr.Message
		if msg == "" {
			return NativeError{Severity: gerr.Severity, Kind: gerr.Kind}
		}
		return NativeError{Severity: gerr.Severity, Kind: gerr.Kind, Message: &msg}
	}
	msg := err.Error()
	return NativeError{Severity: graberr.Err, Kind: graberr.Process, Message: &msg}
}

// Callback is the external observer's event sink.
type Callback func(Event)
