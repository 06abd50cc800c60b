package state

import "testing"

func TestIsTransitionAllowed(t *testing.T) {
	testCases := []struct {
		name     string
		from     State
		to       State
		expected bool
	}{
		{name: "idle to asking", from: StateIdle, to: StateAskingQuestion, expected: true},
		{name: "idle to answering", from: StateIdle, to: StateAnsweringQuestion, expected: true},
		{name: "asking to answering", from: StateAskingQuestion, to: StateAnsweringQuestion, expected: true},
		{name: "answering another question", from: StateAnsweringQuestion, to: StateAnsweringQuestion, expected: true},
		{name: "answering to asking", from: StateAnsweringQuestion, to: StateAskingQuestion, expected: true},
		{name: "asking again", from: StateAskingQuestion, to: StateAskingQuestion, expected: true},
		{name: "unknown state to asking invalid", from: State("unknown"), to: StateAskingQuestion, expected: false},
		{name: "any state to idle", from: State("whatever"), to: StateIdle, expected: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if actual := IsTransitionAllowed(tc.from, tc.to); actual != tc.expected {
				t.Errorf("IsTransitionAllowed(%s -> %s) = %t, expected %t", tc.from, tc.to, actual, tc.expected)
			}
		})
	}
}
