package domain

import "time"

// TimerInactive is the sentinel stored in GameSession.Timer when no countdown
// has run for the current question.
const TimerInactive = -1

// SessionState is the lifecycle marker of a game session.
type SessionState string

const (
	StateWaiting  SessionState = "waiting"
	StateActive   SessionState = "active"
	StateArchived SessionState = "archived"
)

// QuestionType selects the correctness rule applied to a question.
type QuestionType string

const (
	SingleChoice QuestionType = "single"
	MultiChoice  QuestionType = "multi"
)

// Question is a published quiz question. CorrectAnswer and CorrectAnswers
// index into the unshuffled Answers slice; AnswersOrder maps a display
// position to an answer index.
type Question struct {
	Question       string       `json:"question"`
	Answers        []string     `json:"answers"`
	AnswersOrder   []int        `json:"answersOrder"`
	Type           QuestionType `json:"type"`
	CorrectAnswer  int          `json:"correctAnswer,omitempty"`
	CorrectAnswers []int        `json:"correctAnswers,omitempty"`
	Sound          *string      `json:"sound"`
	Video          *string      `json:"video"`
	Background     *string      `json:"background"`
	ClueImage      *string      `json:"clueImage"`
}

// GameSession is the shared live document of one game. TimerRound counts
// the countdowns started in the session; a restarted countdown on the same
// question carries a new round.
type GameSession struct {
	ID            string       `json:"id"`
	Questions     []Question   `json:"questions"`
	Current       int          `json:"current"`
	Timer         int          `json:"timer"`
	TimerActive   bool         `json:"timerActive"`
	TimerRound    int          `json:"timerRound"`
	State         SessionState `json:"state"`
	QuestionTimer int          `json:"questionTimer"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// CurrentQuestion returns the question under the cursor, if any.
func (s GameSession) CurrentQuestion() (Question, bool) {
	if s.Current < 0 || s.Current >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.Current], true
}

// SessionPatch is a merge write: only non-nil fields are applied.
type SessionPatch struct {
	Questions     []Question
	Current       *int
	Timer         *int
	TimerActive   *bool
	TimerRound    *int
	State         *SessionState
	QuestionTimer *int
}

// Kinds reports which field groups the patch touches.
func (p SessionPatch) Kinds() EventKind {
	var k EventKind
	if p.Questions != nil {
		k |= EventQuestions
	}
	if p.Current != nil {
		k |= EventCursor
	}
	if p.Timer != nil || p.TimerActive != nil || p.TimerRound != nil {
		k |= EventTimer
	}
	if p.State != nil {
		k |= EventState
	}
	if p.QuestionTimer != nil {
		k |= EventSettings
	}
	return k
}

// Apply merges the patch into s.
func (p SessionPatch) Apply(s *GameSession) {
	if p.Questions != nil {
		s.Questions = p.Questions
	}
	if p.Current != nil {
		s.Current = *p.Current
	}
	if p.Timer != nil {
		s.Timer = *p.Timer
	}
	if p.TimerActive != nil {
		s.TimerActive = *p.TimerActive
	}
	if p.TimerRound != nil {
		s.TimerRound = *p.TimerRound
	}
	if p.State != nil {
		s.State = *p.State
	}
	if p.QuestionTimer != nil {
		s.QuestionTimer = *p.QuestionTimer
	}
}

// AnswerRecord is one team's scored answer to one question.
type AnswerRecord struct {
	Team    string    `json:"team"`
	Q       int       `json:"q"`
	Answer  []int     `json:"answer"`
	Correct bool      `json:"correct"`
	Points  int       `json:"points"`
	Time    time.Time `json:"time"`
}

// Key identifies the record slot; a later write to the same key replaces the
// earlier one.
func (r AnswerRecord) Key() string {
	return AnswerKey(r.Q, r.Team)
}

// Role is the capability a caller declares for a session operation.
type Role string

const (
	RoleQuizmaster Role = "quizmaster"
	RolePlayer     Role = "player"
)

// View is the quizmaster's display context.
type View string

const (
	ViewQuestions View = "questions"
	ViewScores    View = "scores"
	ViewSettings  View = "settings"
)

// Standing is one ranked row of the scoreboard.
type Standing struct {
	Rank   int    `json:"rank"`
	Prefix string `json:"prefix"`
	Team   string `json:"team"`
	Points int    `json:"points"`
}

// Scoreboard is one displayed page of the ranked leaderboard.
type Scoreboard struct {
	SessionID string     `json:"sessionId"`
	Page      int        `json:"page"`
	PageCount int        `json:"pageCount"`
	Entries   []Standing `json:"entries"`
	Teams     int        `json:"teams"`
	MaxPoints int        `json:"maxPoints"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
