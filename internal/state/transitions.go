package state

// validTransitions lists the non-reset transitions. Returning to idle is always allowed.
var validTransitions = map[State][]State{
	StateIdle: {
		StateAskingQuestion,
		StateAnsweringQuestion,
	},
	StateAskingQuestion: {
		StateAskingQuestion,
		StateAnsweringQuestion,
	},
	StateAnsweringQuestion: {
		StateAskingQuestion,
		// a reader may switch to another question before answering
		StateAnsweringQuestion,
	},
}

// IsTransitionAllowed reports whether moving from one state to another is valid.
func IsTransitionAllowed(from, to State) bool {
	if to == StateIdle {
		return true
	}

	for _, st := range validTransitions[from] {
		if st == to {
			return true
		}
	}

	return false
}
