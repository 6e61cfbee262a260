package chat

import "errors"

var (
	// ErrConsumerGone is returned by a token callback whose reader has gone away.
	// Ask treats it as the end of the turn, not as a failure.
	ErrConsumerGone = errors.New("consumer gone")

	// ErrEmptyQuestion is returned when a question is blank.
	ErrEmptyQuestion = errors.New("question cannot be empty")

	// ErrConversationRequired is returned when a question names no conversation.
	ErrConversationRequired = errors.New("conversation id required")
)
