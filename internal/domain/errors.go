package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a game session has not been created.
	ErrSessionNotFound = errors.New("game session not found")
	// ErrSessionNotActive is returned when navigation or answers arrive before publish or after archive.
	ErrSessionNotActive = errors.New("game session is not active")
	// ErrQuestionSetNotFound indicates the question set could not be loaded.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrQuestionNotFound indicates a question index outside the published set.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNoQuestions is returned when a session has nothing published yet.
	ErrNoQuestions = errors.New("no questions published")
	// ErrInvalidQuestion indicates a malformed question in a published set.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrUnresolvedMedia indicates a media reference that is neither a URL nor null.
	ErrUnresolvedMedia = errors.New("media reference not resolved")
	// ErrInvalidTimer indicates a question timer outside the accepted range.
	ErrInvalidTimer = errors.New("invalid question timer")
	// ErrTeamRequired is returned when an answer is submitted without a team name.
	ErrTeamRequired = errors.New("team name required")
	// ErrInvalidSelection indicates a display index outside the question's answers.
	ErrInvalidSelection = errors.New("invalid answer selection")
	// ErrAnswerLocked is returned when a selection changes after the answer was locked.
	ErrAnswerLocked = errors.New("answer already locked")
	// ErrForbidden is returned when a caller lacks the role for a write.
	ErrForbidden = errors.New("operation not allowed for role")
	// ErrNavigationDisabled is returned when navigation happens outside the questions view.
	ErrNavigationDisabled = errors.New("navigation disabled outside questions view")
	// ErrStoreUnavailable wraps session store write failures; callers may retry.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrMediaNotFound indicates a media object missing from storage.
	ErrMediaNotFound = errors.New("media not found")
)
