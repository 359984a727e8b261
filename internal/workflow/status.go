package workflow

import "fmt"

// Status is the review state of a content item.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Statuses lists every representable status.
var Statuses = []Status{StatusDraft, StatusPending, StatusApproved, StatusRejected}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// ParseStatus converts a wire value into a Status, rejecting unknown values.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", Validationf("unknown status %q", v)
	}
	return s, nil
}

// UnmarshalText keeps decoded statuses inside the enumerated set.
func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Action is a named operation requested against a content item.
type Action string

const (
	ActionSaveDraft       Action = "saveDraft"
	ActionSubmit          Action = "submit"
	ActionWithdrawToDraft Action = "withdrawToDraft"
	ActionResubmit        Action = "resubmit"
	ActionUpdate          Action = "update"
	ActionApprove         Action = "approve"
	ActionReject          Action = "reject"
	ActionDelete          Action = "delete"
)

// Actions lists every action in table order.
var Actions = []Action{
	ActionSaveDraft,
	ActionSubmit,
	ActionWithdrawToDraft,
	ActionResubmit,
	ActionUpdate,
	ActionApprove,
	ActionReject,
	ActionDelete,
}

func (a Action) Valid() bool {
	_, ok := transitions[a]
	return ok
}

// CarriesPayload reports whether the action replaces the item's content fields.
func (a Action) CarriesPayload() bool {
	switch a {
	case ActionSaveDraft, ActionSubmit, ActionWithdrawToDraft, ActionResubmit, ActionUpdate:
		return true
	}
	return false
}

func ParseAction(v string) (Action, error) {
	a := Action(v)
	if !a.Valid() {
		return "", Validationf("unknown action %q", v)
	}
	return a, nil
}

func (a Action) String() string { return string(a) }

func (s Status) String() string { return string(s) }

// GoString keeps %#v output readable in test failures.
func (s Status) GoString() string { return fmt.Sprintf("workflow.Status(%q)", string(s)) }
