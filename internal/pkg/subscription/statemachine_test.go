package subscription

import "testing"

func TestTransitionTable(t *testing.T) {
	const plan = "price_main"

	tests := []struct {
		name       string
		current    Status
		event      Event
		wantStatus Status
		wantAction Action
		wantApply  bool
	}{
		{
			name:       "created grants active",
			current:    StatusUnknown,
			event:      Event{Type: EventCreated, PlanRef: plan},
			wantStatus: StatusActive,
			wantAction: ActionGrant,
			wantApply:  true,
		},
		{
			name:       "created with trial grants trialing",
			current:    StatusUnknown,
			event:      Event{Type: EventCreated, PlanRef: plan, Trialing: true},
			wantStatus: StatusTrialing,
			wantAction: ActionGrant,
			wantApply:  true,
		},
		{
			name:      "created on other plan does not apply",
			current:   StatusUnknown,
			event:     Event{Type: EventCreated, PlanRef: "price_other"},
			wantApply: false,
		},
		{
			name:       "initial invoice grants",
			current:    StatusUnknown,
			event:      Event{Type: EventPaymentSucceeded, BillingReason: BillingReasonSubscriptionCreate},
			wantStatus: StatusActive,
			wantAction: ActionGrant,
			wantApply:  true,
		},
		{
			name:       "renewal invoice refreshes without grant",
			current:    StatusActive,
			event:      Event{Type: EventPaymentSucceeded, BillingReason: "subscription_cycle"},
			wantStatus: StatusActive,
			wantAction: ActionNone,
			wantApply:  true,
		},
		{
			name:       "renewal recovers past due",
			current:    StatusPastDue,
			event:      Event{Type: EventPaymentSucceeded, BillingReason: "subscription_cycle"},
			wantStatus: StatusActive,
			wantAction: ActionNone,
			wantApply:  true,
		},
		{
			name:       "payment failure revokes",
			current:    StatusActive,
			event:      Event{Type: EventPaymentFailed},
			wantStatus: StatusPastDue,
			wantAction: ActionRevoke,
			wantApply:  true,
		},
		{
			name:       "deletion revokes",
			current:    StatusCancelPending,
			event:      Event{Type: EventDeleted},
			wantStatus: StatusCancelled,
			wantAction: ActionRevoke,
			wantApply:  true,
		},
		{
			name:       "user cancel keeps access",
			current:    StatusActive,
			event:      Event{Type: EventUserCancelRequest},
			wantStatus: StatusCancelPending,
			wantAction: ActionNone,
			wantApply:  true,
		},
		{
			name:      "ignored event does not apply",
			current:   StatusActive,
			event:     Event{Type: EventIgnored},
			wantApply: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Transition(tt.current, tt.event, plan)
			if out.Apply != tt.wantApply {
				t.Fatalf("apply = %v, want %v", out.Apply, tt.wantApply)
			}
			if !tt.wantApply {
				return
			}
			if out.Status != tt.wantStatus {
				t.Fatalf("status = %s, want %s", out.Status, tt.wantStatus)
			}
			if out.Action != tt.wantAction {
				t.Fatalf("action = %d, want %d", out.Action, tt.wantAction)
			}
		})
	}
}

func TestTransitionEmptyMonitoredPlanAcceptsAnyPlan(t *testing.T) {
	out := Transition(StatusUnknown, Event{Type: EventCreated, PlanRef: "whatever"}, "")
	if !out.Apply || out.Status != StatusActive || out.Action != ActionGrant {
		t.Fatalf("expected unrestricted grant, got %+v", out)
	}
}

// Transitions depend only on the current status and the event, so any
// processing order of the same event set lands on the status implied by the
// last event processed.
func TestTransitionConvergesRegardlessOfOrder(t *testing.T) {
	events := []Event{
		{Type: EventCreated, PlanRef: "price_main"},
		{Type: EventPaymentSucceeded, BillingReason: BillingReasonSubscriptionCreate},
		{Type: EventPaymentFailed},
		{Type: EventDeleted},
	}

	orders := [][]int{
		{0, 1, 2, 3},
		{1, 0, 2, 3},
		{2, 1, 0, 3},
		{0, 2, 1, 3},
	}

	for _, order := range orders {
		current := StatusUnknown
		for _, i := range order {
			out := Transition(current, events[i], "price_main")
			if out.Apply {
				current = out.Status
			}
		}
		if current != StatusCancelled {
			t.Fatalf("order %v ended at %s, want %s", order, current, StatusCancelled)
		}
	}
}

func TestStatusLabelRoundTrip(t *testing.T) {
	statuses := []Status{StatusTrialing, StatusActive, StatusPastDue, StatusCancelPending, StatusCancelled}
	for _, s := range statuses {
		if got := StatusFromLabel(s.Label()); got != s {
			t.Fatalf("label round trip for %s gave %s", s, got)
		}
	}
	if got := StatusFromLabel("hand edited cell"); got != StatusUnknown {
		t.Fatalf("unrecognized label should read unknown, got %s", got)
	}
}
