package http

import (
	"errors"
	"net/http"

	"trivia-live/internal/domain"
)

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{domain.ErrQuestionSetNotFound, http.StatusNotFound, "question_set_not_found"},
	{domain.ErrMediaNotFound, http.StatusBadRequest, "invalid_media"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrSessionNotActive, http.StatusConflict, "session_not_active"},
	{domain.ErrNavigationDisabled, http.StatusConflict, "navigation_disabled"},
	{domain.ErrAnswerLocked, http.StatusConflict, "answer_locked"},
	{domain.ErrNoQuestions, http.StatusUnprocessableEntity, "no_questions"},
	{domain.ErrInvalidQuestion, http.StatusUnprocessableEntity, "invalid_question"},
	{domain.ErrUnresolvedMedia, http.StatusUnprocessableEntity, "unresolved_media"},
	{domain.ErrQuestionNotFound, http.StatusBadRequest, "question_not_found"},
	{domain.ErrInvalidTimer, http.StatusBadRequest, "invalid_timer"},
	{domain.ErrTeamRequired, http.StatusBadRequest, "team_required"},
	{domain.ErrInvalidSelection, http.StatusBadRequest, "invalid_selection"},
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable"},
}

// classify maps an error to an HTTP status and a stable code for clients.
func classify(err error) (int, string) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "internal"
}
