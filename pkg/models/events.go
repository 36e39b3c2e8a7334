package models

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// EventType represents the kind of user lifecycle occurrence.
type EventType string

const (
	EventUserCreated EventType = "USER_CREATED"
	EventUserDeleted EventType = "USER_DELETED"
)

// IsKnown reports whether t is one of the lifecycle types this system emits.
func (t EventType) IsKnown() bool {
	return t == EventUserCreated || t == EventUserDeleted
}

// LifecycleEvent is the wire representation of a user being created or deleted.
// It is immutable after construction.
type LifecycleEvent struct {
	EventID    string    `json:"eventId"`
	EventType  EventType `json:"eventType"`
	UserID     int64     `json:"userId"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurredAt"`
	Source     string    `json:"source"`
}

// NewUserCreated builds a USER_CREATED event for a user whose insert has committed.
func NewUserCreated(userID int64, email, source string) LifecycleEvent {
	return newLifecycleEvent(EventUserCreated, userID, email, source)
}

// NewUserDeleted builds a USER_DELETED event for a user whose delete has committed.
func NewUserDeleted(userID int64, email, source string) LifecycleEvent {
	return newLifecycleEvent(EventUserDeleted, userID, email, source)
}

func newLifecycleEvent(t EventType, userID int64, email, source string) LifecycleEvent {
	return LifecycleEvent{
		EventID:    uuid.New().String(),
		EventType:  t,
		UserID:     userID,
		Email:      email,
		OccurredAt: time.Now().UTC(),
		Source:     source,
	}
}

// Key returns the ordering key: the decimal form of UserID.
func (e LifecycleEvent) Key() string {
	return strconv.FormatInt(e.UserID, 10)
}

// Validate checks the fields required for an event that travels through the broker.
func (e LifecycleEvent) Validate() error {
	var errs []error
	if e.EventID == "" {
		errs = append(errs, errors.New("eventId is required"))
	}
	if e.EventType == "" {
		errs = append(errs, errors.New("eventType is required"))
	}
	if e.UserID <= 0 {
		errs = append(errs, errors.New("userId must be positive"))
	}
	if e.Email == "" {
		errs = append(errs, errors.New("email is required"))
	}
	return errors.Join(errs...)
}

// Encode serializes an event to its JSON wire form.
func Encode(e LifecycleEvent) ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a wire payload. Any failure is reported as a MalformedPayloadError.
// Unknown event types decode fine; deciding what to do with them is up to the caller.
func Decode(body []byte) (LifecycleEvent, error) {
	var e LifecycleEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return LifecycleEvent{}, MalformedPayloadError("decode event", err)
	}
	if e.EventType == "" || e.Email == "" {
		return LifecycleEvent{}, MalformedPayloadError("decode event", errors.New("eventType and email are required"))
	}
	if e.UserID <= 0 {
		return LifecycleEvent{}, MalformedPayloadError("decode event", errors.New("userId must be positive"))
	}
	return e, nil
}
