package subscription

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the billing-derived subscription state for one correlation key.
type Status string

const (
	StatusUnknown       Status = "unknown"
	StatusTrialing      Status = "trialing"
	StatusActive        Status = "active"
	StatusPastDue       Status = "past_due"
	StatusCancelPending Status = "cancel_pending"
	StatusCancelled     Status = "cancelled"
)

// EventType is the normalized billing event type.
type EventType string

const (
	EventCreated           EventType = "created"
	EventPaymentSucceeded  EventType = "payment_succeeded"
	EventPaymentFailed     EventType = "payment_failed"
	EventDeleted           EventType = "deleted"
	EventUserCancelRequest EventType = "user_cancel_request"
	// EventIgnored marks provider event types the engine does not act on.
	// They are acknowledged and dropped, never errored.
	EventIgnored EventType = "ignored"
)

// Action is the access actuation an event transition calls for.
type Action int

const (
	ActionNone Action = iota
	ActionGrant
	ActionRevoke
)

// Event is a verified, typed billing event. Subscribers are never held in
// process memory across requests; each event carries everything needed to
// process it together with a fresh ledger lookup.
type Event struct {
	ID             string
	Type           EventType
	CorrelationKey string
	PlanRef        string
	BillingReason  string
	Trialing       bool
	DisplayName    string
	Contact        string
	ReceivedAt     time.Time
	Raw            json.RawMessage
}

// Actionable reports whether the event type drives a transition at all.
func (e Event) Actionable() bool {
	switch e.Type {
	case EventCreated, EventPaymentSucceeded, EventPaymentFailed, EventDeleted, EventUserCancelRequest:
		return true
	default:
		return false
	}
}

// Label returns the human-readable status written to the ledger.
func (s Status) Label() string {
	switch s {
	case StatusTrialing:
		return "Trial"
	case StatusActive:
		return "Active"
	case StatusPastDue:
		return "Payment Failed"
	case StatusCancelPending:
		return "Cancel at Period End"
	case StatusCancelled:
		return "Cancelled"
	default:
		return ""
	}
}

// StatusFromLabel maps a ledger status cell back to a Status. Unrecognized
// labels (hand-edited cells included) read as Unknown.
func StatusFromLabel(label string) Status {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "trial":
		return StatusTrialing
	case "active":
		return StatusActive
	case "payment failed":
		return StatusPastDue
	case "cancel at period end":
		return StatusCancelPending
	case "cancelled":
		return StatusCancelled
	default:
		return StatusUnknown
	}
}
