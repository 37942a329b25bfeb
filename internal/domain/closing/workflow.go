package closing

import (
	"strings"
	"time"
)

// Action is a workflow command applied through Transition
type Action string

const (
	ActionSubmit   Action = "submit"   // DRAFT -> IN_REVIEW
	ActionResubmit Action = "resubmit" // RETURNED -> IN_REVIEW
	ActionReturn   Action = "return"   // IN_REVIEW -> RETURNED
	ActionComplete Action = "complete" // IN_REVIEW -> COMPLETED
)

// IsValid checks if the action is known
func (a Action) IsValid() bool {
	switch a {
	case ActionSubmit, ActionResubmit, ActionReturn, ActionComplete:
		return true
	}
	return false
}

// String returns the string representation of Action
func (a Action) String() string {
	return string(a)
}

// TransitionPayload carries the action-specific inputs
type TransitionPayload struct {
	Reason           string
	FinalizationKind FinalizationKind
}

// Transition is the single entry point of the workflow. Preconditions are
// checked before anything changes, so a failed call leaves the record as it was.
// Every successful transition increments the version.
func (r *ClosingRecord) Transition(actor Actor, action Action, payload TransitionPayload) error {
	if !actor.CanView(r) {
		return invalidTransition("Closing record is not visible to the current user")
	}
	if r.Status.IsTerminal() {
		return invalidTransition("Closing is %s; no further transitions are allowed", r.Status)
	}

	switch action {
	case ActionSubmit:
		return r.submit(actor)
	case ActionResubmit:
		return r.resubmit(actor)
	case ActionReturn:
		return r.returnForCorrection(actor, payload.Reason)
	case ActionComplete:
		return r.complete(actor, payload.FinalizationKind)
	default:
		return invalidTransition("Unknown action %q", action)
	}
}

func (r *ClosingRecord) submit(actor Actor) error {
	if r.Status != ClosingStatusDraft {
		return invalidTransition("Cannot submit closing in %s status", r.Status)
	}
	if !actor.Owns(r) {
		return invalidTransition("Only the client who owns the closing can submit it")
	}
	if err := ValidateFields(r.Fields(), r.Currency); err != nil {
		return err
	}

	now := time.Now().UTC()
	userID := actor.UserID
	r.Status = ClosingStatusInReview
	r.SubmittedAt = &now
	r.SubmittedBy = &userID
	r.UpdatedAt = now
	r.IncrementVersion()

	r.AddDomainEvent(NewClosingSubmittedEvent(r, false))
	return nil
}

func (r *ClosingRecord) resubmit(actor Actor) error {
	if r.Status != ClosingStatusReturned {
		return invalidTransition("Cannot resubmit closing in %s status", r.Status)
	}
	if !actor.Owns(r) {
		return invalidTransition("Only the client who owns the closing can resubmit it")
	}
	if err := ValidateFields(r.Fields(), r.Currency); err != nil {
		return err
	}

	now := time.Now().UTC()
	userID := actor.UserID
	r.Status = ClosingStatusInReview
	r.ReturnReason = ""
	r.SubmittedAt = &now
	r.SubmittedBy = &userID
	r.UpdatedAt = now
	r.IncrementVersion()

	r.AddDomainEvent(NewClosingSubmittedEvent(r, true))
	return nil
}

func (r *ClosingRecord) returnForCorrection(actor Actor, reason string) error {
	if r.Status != ClosingStatusInReview {
		return invalidTransition("Cannot return closing in %s status", r.Status)
	}
	if !actor.Role.IsReviewer() {
		return invalidTransition("Only operators can return a closing")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return invalidTransition("A return reason is required")
	}

	now := time.Now().UTC()
	userID := actor.UserID
	r.Status = ClosingStatusReturned
	r.ReturnReason = reason
	r.ReturnedAt = &now
	r.ReturnedBy = &userID
	r.UpdatedAt = now
	r.IncrementVersion()

	r.pendingMessages = append(r.pendingMessages, newSystemMessage(r.ID, ReturnMessageText(reason), now))
	r.AddDomainEvent(NewClosingReturnedEvent(r))
	return nil
}

func (r *ClosingRecord) complete(actor Actor, kind FinalizationKind) error {
	if r.Status != ClosingStatusInReview {
		return invalidTransition("Cannot complete closing in %s status", r.Status)
	}
	if !actor.Role.IsReviewer() {
		return invalidTransition("Only operators can complete a closing")
	}
	if kind == "" {
		return invalidTransition("A finalization kind must be selected")
	}
	if !kind.IsValid() {
		return invalidTransition("Unknown finalization kind %q", kind)
	}

	now := time.Now().UTC()
	userID := actor.UserID
	r.Status = ClosingStatusCompleted
	r.FinalizationKind = &kind
	r.CompletedAt = &now
	r.CompletedBy = &userID
	r.UpdatedAt = now
	r.IncrementVersion()

	r.AddDomainEvent(NewClosingCompletedEvent(r))
	return nil
}
