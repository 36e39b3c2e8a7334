package models

import (
	"errors"
	"fmt"
)

// ErrorKind tags the failure classes of the notification pipeline.
type ErrorKind int

const (
	// KindDelivery means the producer could not hand an event to the broker.
	KindDelivery ErrorKind = iota + 1
	// KindMalformedPayload means a delivered message could not be decoded.
	KindMalformedPayload
	// KindMail means the mail transport rejected or failed a send.
	KindMail
)

func (k ErrorKind) String() string {
	switch k {
	case KindDelivery:
		return "delivery"
	case KindMalformedPayload:
		return "malformed_payload"
	case KindMail:
		return "mail"
	default:
		return "unknown"
	}
}

// PipelineError is the single error type returned by the producer, consumer and dispatcher.
type PipelineError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// DeliveryError wraps a broker hand-off failure.
func DeliveryError(op string, err error) error {
	return &PipelineError{Kind: KindDelivery, Op: op, Err: err}
}

// MalformedPayloadError wraps a decode failure.
func MalformedPayloadError(op string, err error) error {
	return &PipelineError{Kind: KindMalformedPayload, Op: op, Err: err}
}

// MailError wraps a mail transport failure.
func MailError(op string, err error) error {
	return &PipelineError{Kind: KindMail, Op: op, Err: err}
}

// KindOf returns the kind of the first PipelineError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries a PipelineError of kind k.
func IsKind(err error, k ErrorKind) bool {
	kind, ok := KindOf(err)
	return ok && kind == k
}
