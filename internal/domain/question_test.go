package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModeratedStatus(t *testing.T) {
	testCases := []struct {
		name      string
		approved  bool
		hasAnswer bool
		expected  Status
	}{
		{name: "approve without answer", approved: true, hasAnswer: false, expected: StatusNew},
		{name: "approve with answer", approved: true, hasAnswer: true, expected: StatusAnswered},
		{name: "reject without answer", approved: false, hasAnswer: false, expected: StatusRejected},
		{name: "reject with answer", approved: false, hasAnswer: true, expected: StatusRejected},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ModeratedStatus(tc.approved, tc.hasAnswer))
		})
	}
}

func TestQuestion_AcceptsAnswer(t *testing.T) {
	answer := "yes"

	assert.True(t, (&Question{Status: StatusNew}).AcceptsAnswer())
	assert.True(t, (&Question{Status: StatusNew, Moderated: true}).AcceptsAnswer())
	assert.False(t, (&Question{Status: StatusAnswered, AnswerText: &answer}).AcceptsAnswer())
	assert.False(t, (&Question{Status: StatusRejected, Moderated: true}).AcceptsAnswer())
	assert.False(t, (*Question)(nil).AcceptsAnswer())
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "alice", DisplayName("alice", "Alice", 1))
	assert.Equal(t, "Alice", DisplayName(" ", "Alice", 1))
	assert.Equal(t, "ID:7", DisplayName("", "", 7))

	u := &User{ID: 5, Username: "bob"}
	assert.Equal(t, "@bob", u.Handle())
	assert.Equal(t, "Carol", (&User{ID: 6, FirstName: "Carol"}).Handle())
}
