package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/fellowship/internal/service"
	"github.com/dukerupert/fellowship/internal/toast"
)

type QuestionHandler struct {
	questions *service.QuestionService
	responder
}

func NewQuestionHandler(questions *service.QuestionService, toasts *toast.Notifier, logger *slog.Logger) *QuestionHandler {
	return &QuestionHandler{questions: questions, responder: responder{toasts: toasts, logger: logger}}
}

// List handles GET /api/questions?scope=all&status=pending. Without
// scope=all only the caller's own questions are returned.
func (h *QuestionHandler) List(w http.ResponseWriter, r *http.Request) {
	all := r.URL.Query().Get("scope") == "all"
	list, err := h.questions.List(actor(r), all, r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, err, "load questions")
		return
	}
	if list == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Ask handles POST /api/questions
func (h *QuestionHandler) Ask(w http.ResponseWriter, r *http.Request) {
	content, err := service.DecodeContent(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, r, err, "submit question")
		return
	}
	q, err := h.questions.Ask(actor(r), content)
	if err != nil {
		h.fail(w, r, err, "submit question")
		return
	}
	h.success(r, "Question submitted", "A leader will answer soon.")
	writeJSON(w, http.StatusCreated, q)
}

// Get handles GET /api/questions/{id}
func (h *QuestionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	q, err := h.questions.Get(actor(r), id)
	if err != nil {
		h.fail(w, r, err, "load question")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type answerRequest struct {
	Answer string `json:"answer"`
}

// Answer handles POST /api/questions/{id}/answer
func (h *QuestionHandler) Answer(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	q, err := h.questions.Answer(r.Context(), actor(r), id, req.Answer)
	if err != nil {
		h.fail(w, r, err, "answer question")
		return
	}
	h.success(r, "Answer sent", "")
	writeJSON(w, http.StatusOK, q)
}

// Delete handles DELETE /api/questions/{id}
func (h *QuestionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.questions.Delete(actor(r), id); err != nil {
		h.fail(w, r, err, "delete question")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
