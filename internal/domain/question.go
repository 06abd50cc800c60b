package domain

import "time"

// Status is the stored lifecycle status of a question.
type Status string

const (
	StatusNew      Status = "new"
	StatusAnswered Status = "answered"
	// StatusApproved is part of the stored vocabulary but approval recomputes
	// the status from answer presence, so it is never written.
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Question is a user question together with its answer and moderation record.
// The effective state is the pair (Status, Moderated).
type Question struct {
	ID          int64
	UserID      int64
	Text        string
	Status      Status
	CreatedAt   time.Time
	AnsweredBy  *int64
	AnswerText  *string
	Moderated   bool
	ModeratedBy *int64
	ModeratedAt *time.Time
}

// HasAnswer reports whether an answer was attached.
func (q *Question) HasAnswer() bool {
	return q != nil && q.AnswerText != nil
}

// AcceptsAnswer reports whether an answer may still be attached.
// Only questions that were never answered or rejected accept one.
func (q *Question) AcceptsAnswer() bool {
	return q != nil && q.Status == StatusNew
}

// ModeratedStatus is the status a question gets when moderated with the given verdict.
// Approval keeps "new" for unanswered questions so they reach the readers' queue.
func ModeratedStatus(approved, hasAnswer bool) Status {
	switch {
	case !approved:
		return StatusRejected
	case hasAnswer:
		return StatusAnswered
	default:
		return StatusNew
	}
}

// QueueItem is a question enriched with display names for listing.
type QueueItem struct {
	Question
	AskerName     string
	ResponderName string
}
