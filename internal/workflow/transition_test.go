package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupTable(t *testing.T) {
	cases := []struct {
		from   Status
		action Action
		to     Status
		ok     bool
	}{
		{StatusDraft, ActionSaveDraft, StatusDraft, true},
		{StatusPending, ActionSaveDraft, StatusDraft, true},
		{StatusRejected, ActionSaveDraft, StatusDraft, true},
		{StatusApproved, ActionSaveDraft, "", false},
		{StatusDraft, ActionSubmit, StatusPending, true},
		{StatusRejected, ActionSubmit, StatusPending, true},
		{StatusPending, ActionSubmit, "", false},
		{StatusApproved, ActionSubmit, "", false},
		{StatusPending, ActionWithdrawToDraft, StatusDraft, true},
		{StatusDraft, ActionWithdrawToDraft, "", false},
		{StatusApproved, ActionResubmit, StatusPending, true},
		{StatusRejected, ActionResubmit, "", false},
		{StatusApproved, ActionUpdate, StatusApproved, true},
		{StatusPending, ActionUpdate, "", false},
		{StatusPending, ActionApprove, StatusApproved, true},
		{StatusDraft, ActionApprove, "", false},
		{StatusApproved, ActionApprove, "", false},
		{StatusPending, ActionReject, StatusRejected, true},
		{StatusRejected, ActionReject, "", false},
	}
	for _, tc := range cases {
		to, removed, ok := Next(tc.from, tc.action)
		require.Equal(t, tc.ok, ok, "%s from %s", tc.action, tc.from)
		require.False(t, removed)
		if ok {
			require.Equal(t, tc.to, to, "%s from %s", tc.action, tc.from)
		}
	}
}

func TestDeleteValidFromEveryStatus(t *testing.T) {
	for _, s := range Statuses {
		to, removed, ok := Next(s, ActionDelete)
		require.True(t, ok)
		require.True(t, removed)
		require.Equal(t, s, to)
	}
}

func TestUnknownActionHasNoTransition(t *testing.T) {
	_, ok := Lookup(StatusDraft, Action("publish"))
	require.False(t, ok)
	require.False(t, Action("publish").Valid())
}

func TestAvailable(t *testing.T) {
	require.Equal(t, []Action{ActionSaveDraft, ActionWithdrawToDraft, ActionApprove, ActionReject, ActionDelete}, Available(StatusPending))
	require.Equal(t, []Action{ActionResubmit, ActionUpdate, ActionDelete}, Available(StatusApproved))
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("approved")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, s)

	_, err = ParseStatus("published")
	require.ErrorIs(t, err, ErrValidation)

	var decoded Status
	require.Error(t, decoded.UnmarshalText([]byte("archived")))
	require.NoError(t, decoded.UnmarshalText([]byte("draft")))
	require.Equal(t, StatusDraft, decoded)
}
