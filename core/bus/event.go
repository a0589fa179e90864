package bus

import "fmt"

// Event is the immutable unit of communication carried over the bus. Once
// constructed via NewEvent, an Event's fields must not be mutated by callers.
type Event struct {
	Type        string
	ProjectID   string
	Payload     map[string]any
	TS          int64
	RequestID   string
	Traceparent string
}

// NewEvent validates and returns an Event. Type and ProjectID must already
// be normalized non-empty values; NewEvent does not normalize them itself
// since normalization rules are shared with the store layer.
func NewEvent(eventType, projectID string, payload map[string]any) (Event, error) {
	if eventType == "" {
		return Event{}, fmt.Errorf("bus: %w: type", ErrEmptyField)
	}
	if projectID == "" {
		return Event{}, fmt.Errorf("bus: %w: projectId", ErrEmptyField)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{
		Type:      eventType,
		ProjectID: projectID,
		Payload:   payload,
	}, nil
}
