package model

import (
	"time"

	"github.com/google/uuid"
)

// Quiz represents a timed quiz assigned to a class.
type Quiz struct {
	ID              uuid.UUID `json:"id"`
	ClassID         int       `json:"class_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	DurationMinutes int       `json:"duration_minutes"`
	Strict          bool      `json:"strict"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	IsActive        bool      `json:"is_active"`
}

// Question belongs to a quiz. Point is the score awarded when a correct
// option is selected.
type Question struct {
	ID     uuid.UUID `json:"id"`
	QuizID uuid.UUID `json:"quiz_id"`
	Text   string    `json:"text"`
	Point  float64   `json:"point"`
}

// Option is one answer choice of a question.
type Option struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	Text       string    `json:"text"`
	IsCorrect  bool      `json:"is_correct"`
}

// QuestionKey is the grading view of a question: its point value and the
// set of currently-correct options. Used both at submission time and when
// replaying final answers during recalculation.
type QuestionKey struct {
	ID               uuid.UUID
	Point            float64
	CorrectOptionIDs []uuid.UUID
}

// IsCorrectOption reports whether optionID is among the correct options.
func (k QuestionKey) IsCorrectOption(optionID uuid.UUID) bool {
	for _, id := range k.CorrectOptionIDs {
		if id == optionID {
			return true
		}
	}
	return false
}

// QuizPayload is the student-facing rendition of a quiz: questions and
// options without correctness flags. Cached in Redis and shuffled per
// fetch.
type QuizPayload struct {
	QuizID          uuid.UUID         `json:"quiz_id"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	DurationMinutes int               `json:"duration_minutes"`
	Strict          bool              `json:"strict"`
	Questions       []PayloadQuestion `json:"questions"`
}

// PayloadQuestion is one question as shown to the student.
type PayloadQuestion struct {
	ID      uuid.UUID       `json:"id"`
	Text    string          `json:"text"`
	Point   float64         `json:"point"`
	Options []PayloadOption `json:"options"`
}

// PayloadOption is one answer choice as shown to the student. No
// correctness here; grading stays server-side.
type PayloadOption struct {
	ID   uuid.UUID `json:"id"`
	Text string    `json:"text"`
}

// UpdateQuizRequest is the admin payload for editing a quiz and its
// questions. Question/option entries with an ID update existing rows;
// entries without one create new rows; rows absent from the payload are
// deleted.
type UpdateQuizRequest struct {
	Title           string                  `json:"title" binding:"required,min=1,max=200"`
	Description     string                  `json:"description" binding:"max=2000"`
	DurationMinutes int                     `json:"duration_minutes" binding:"required,min=1,max=600"`
	Strict          bool                    `json:"strict"`
	Start           time.Time               `json:"start" binding:"required"`
	End             time.Time               `json:"end" binding:"required"`
	Questions       []UpdateQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}

// UpdateQuestionRequest is one question entry in an UpdateQuizRequest.
type UpdateQuestionRequest struct {
	ID      *uuid.UUID            `json:"id"`
	Text    string                `json:"text" binding:"required,min=1,max=2000"`
	Point   float64               `json:"point" binding:"min=0,max=100"`
	Options []UpdateOptionRequest `json:"options" binding:"required,min=2,dive"`
}

// UpdateOptionRequest is one option entry in an UpdateQuestionRequest.
type UpdateOptionRequest struct {
	ID        *uuid.UUID `json:"id"`
	Text      string     `json:"text" binding:"required,min=1,max=1000"`
	IsCorrect bool       `json:"is_correct"`
}
