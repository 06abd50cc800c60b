package domain

// NotificationKind identifies which lifecycle event a notification reports.
type NotificationKind string

const (
	KindQuestionSubmitted NotificationKind = "question_submitted"
	KindQuestionApproved  NotificationKind = "question_approved"
	KindQuestionRejected  NotificationKind = "question_rejected"
)

// Notification is an outbound message produced by a lifecycle transition.
type Notification struct {
	Kind        NotificationKind
	RecipientID int64
	QuestionID  int64
	// Text carries the question text for submissions.
	Text string
	// From is the asker's handle for submissions.
	From string
}
