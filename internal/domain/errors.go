package domain

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrAlreadyModerated = errors.New("question already moderated")
	ErrAnswerNotAllowed = errors.New("question does not accept answers")
	ErrForbidden        = errors.New("action not permitted")
	ErrInvalidRole      = errors.New("invalid role")
)
