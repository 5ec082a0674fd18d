package subscription

// Outcome is the result of applying one event: the new status, the access
// action it calls for, and whether the event applies at all.
type Outcome struct {
	Status Status
	Action Action
	Apply  bool
}

// Transition maps (current status, event) to an outcome. It is pure: apart
// from the current status passed in, no history is consulted, so any
// processing order of a key's events converges to the status implied by the
// last event actually processed.
//
// monitoredPlan scopes `created` events to the configured price; an empty
// monitoredPlan accepts any plan.
func Transition(current Status, ev Event, monitoredPlan string) Outcome {
	switch ev.Type {
	case EventCreated:
		if monitoredPlan != "" && ev.PlanRef != monitoredPlan {
			return Outcome{Status: current, Action: ActionNone, Apply: false}
		}
		status := StatusActive
		if ev.Trialing {
			status = StatusTrialing
		}
		return Outcome{Status: status, Action: ActionGrant, Apply: true}

	case EventPaymentSucceeded:
		// The initial invoice re-grants (idempotent with created, which may
		// arrive before or after it). Renewal invoices only refresh the
		// ledger status.
		action := ActionNone
		if ev.BillingReason == BillingReasonSubscriptionCreate {
			action = ActionGrant
		}
		return Outcome{Status: StatusActive, Action: action, Apply: true}

	case EventPaymentFailed:
		return Outcome{Status: StatusPastDue, Action: ActionRevoke, Apply: true}

	case EventDeleted:
		return Outcome{Status: StatusCancelled, Action: ActionRevoke, Apply: true}

	case EventUserCancelRequest:
		// Access persists until the provider's deleted event arrives.
		// Callers only invoke this once an active subscription was found at
		// the provider; the not-subscribed path never reaches the machine.
		return Outcome{Status: StatusCancelPending, Action: ActionNone, Apply: true}

	default:
		return Outcome{Status: current, Action: ActionNone, Apply: false}
	}
}

// BillingReasonSubscriptionCreate is the provider's billing_reason for the
// invoice that creates a subscription.
const BillingReasonSubscriptionCreate = "subscription_create"
