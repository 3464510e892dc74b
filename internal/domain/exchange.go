package domain

import "time"

// Exchange is the monitoring record of one answered question. It is written
// for operators and never read back by the chat pipeline.
type Exchange struct {
	// ID is unique per exchange; CorrelationID is whatever the client or the
	// handler used to tie log lines together and may repeat.
	ID              string
	CorrelationID   string
	QuestionPreview string
	UsedSearch      bool
	SourceCount     int
	AnswerLength    int
	CreatedAt       time.Time
}
