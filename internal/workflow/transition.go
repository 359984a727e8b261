package workflow

// Transition is one row of the transition table.
type Transition struct {
	Action Action
	From   []Status
	To     Status
	// Removes marks the delete row: the item is removed instead of moving to To.
	Removes bool
}

// transitions is shared by every content kind. Kind-specific behaviour is
// expressed through which actions a caller may invoke, never by editing rows.
var transitions = map[Action]Transition{
	ActionSaveDraft:       {Action: ActionSaveDraft, From: []Status{StatusDraft, StatusPending, StatusRejected}, To: StatusDraft},
	ActionSubmit:          {Action: ActionSubmit, From: []Status{StatusDraft, StatusRejected}, To: StatusPending},
	ActionWithdrawToDraft: {Action: ActionWithdrawToDraft, From: []Status{StatusPending}, To: StatusDraft},
	ActionResubmit:        {Action: ActionResubmit, From: []Status{StatusApproved}, To: StatusPending},
	ActionUpdate:          {Action: ActionUpdate, From: []Status{StatusApproved}, To: StatusApproved},
	ActionApprove:         {Action: ActionApprove, From: []Status{StatusPending}, To: StatusApproved},
	ActionReject:          {Action: ActionReject, From: []Status{StatusPending}, To: StatusRejected},
	ActionDelete:          {Action: ActionDelete, From: Statuses, Removes: true},
}

// Lookup returns the transition for (from, action). ok is false when the
// action is unknown or not valid from the given status.
func Lookup(from Status, action Action) (Transition, bool) {
	t, ok := transitions[action]
	if !ok {
		return Transition{}, false
	}
	for _, s := range t.From {
		if s == from {
			return t, true
		}
	}
	return Transition{}, false
}

// Next returns the resulting status of applying action from the given status.
// For delete the current status is returned alongside removed=true.
func Next(from Status, action Action) (to Status, removed bool, ok bool) {
	t, ok := Lookup(from, action)
	if !ok {
		return "", false, false
	}
	if t.Removes {
		return from, true, true
	}
	return t.To, false, true
}

// Available lists the actions the table allows from a status, ignoring roles.
func Available(from Status) []Action {
	out := make([]Action, 0, len(Actions))
	for _, a := range Actions {
		if _, ok := Lookup(from, a); ok {
			out = append(out, a)
		}
	}
	return out
}
