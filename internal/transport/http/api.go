package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"trivia-live/internal/domain"
)

// RoleHeader carries the capability a caller declares for mutating calls.
const RoleHeader = "X-Trivia-Role"

type createSessionRequest struct {
	QuestionTimer int `json:"questionTimer"`
}

type publishRequest struct {
	QuestionSet string `json:"questionSet"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Code: "bad_request", Message: err.Error()})
		return
	}
	session, err := h.service.CreateSession(r.Context(), roleFrom(r), req.QuestionTimer)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := decodeBody(r, &req); err != nil || req.QuestionSet == "" {
		writeJSON(w, http.StatusBadRequest, errorPayload{Code: "bad_request", Message: "questionSet required"})
		return
	}
	questions, err := h.service.LoadQuestionSet(r.Context(), roleFrom(r), r.PathValue("id"), req.QuestionSet)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSession(r.Context(), roleFrom(r), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Archive(r.Context(), roleFrom(r), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) scores(w http.ResponseWriter, r *http.Request) {
	standings, err := h.service.Standings(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, standings)
}

func (h *Handler) questionSets(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeJSON(w, http.StatusOK, []string{})
		return
	}
	ids, err := h.catalog.QuestionSets(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

type missingMediaResponse struct {
	QuestionSet string   `json:"questionSet"`
	Missing     []string `json:"missing"`
}

// missingMedia lists the files a question set needs that are not uploaded yet.
func (h *Handler) missingMedia(w http.ResponseWriter, r *http.Request) {
	setID := r.PathValue("id")
	missing, err := h.service.MissingMedia(r.Context(), setID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if missing == nil {
		missing = []string{}
	}
	writeJSON(w, http.StatusOK, missingMediaResponse{QuestionSet: setID, Missing: missing})
}

func (h *Handler) uploadMedia(w http.ResponseWriter, r *http.Request) {
	if roleFrom(r) != domain.RoleQuizmaster {
		h.writeError(w, domain.ErrForbidden)
		return
	}
	if h.media == nil {
		writeJSON(w, http.StatusNotImplemented, errorPayload{Code: "media_disabled", Message: "media storage not configured"})
		return
	}
	name := r.PathValue("name")
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := h.media.Upload(r.Context(), name, r.Body, r.ContentLength, contentType); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": name})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "code", code, "error", err)
	}
	writeJSON(w, status, errorPayload{Code: code, Message: err.Error()})
}

func roleFrom(r *http.Request) domain.Role {
	return domain.Role(r.Header.Get(RoleHeader))
}

// decodeBody accepts an empty body as the zero request.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
