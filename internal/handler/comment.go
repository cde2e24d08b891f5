package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/elizaveta-sm/pin-it-up/internal/apperror"
	"github.com/elizaveta-sm/pin-it-up/internal/auth"
	"github.com/elizaveta-sm/pin-it-up/internal/model"
)

// HandleListComments returns a pin's comments, newest last.
//
// HTTP: GET /api/pins/{id}/comments
func (h *PinHandler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	pin, err := h.store.Pin(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	comments := pin.Comments
	if comments == nil {
		comments = []model.Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

type addCommentRequest struct {
	Comment string `json:"comment"`
}

// HandleAddComment posts a comment and returns the updated pin.
//
// HTTP: POST /api/pins/{id}/comments (RequireAuth)
func (h *PinHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req addCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "Invalid request body."))
		return
	}

	pin, err := h.engine.AddComment(r.Context(), chi.URLParam(r, "id"), userID, req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pin)
}

// HandleDeleteComment removes a comment from a pin. Only the comment's
// author may delete it.
//
// HTTP: DELETE /api/pins/{id}/comments/{commentID} (RequireAuth)
func (h *PinHandler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	pinID := chi.URLParam(r, "id")
	commentID := chi.URLParam(r, "commentID")

	pin, err := h.store.Pin(r.Context(), pinID)
	if err != nil {
		writeError(w, err)
		return
	}

	var comment *model.Comment
	for i := range pin.Comments {
		if pin.Comments[i].ID == commentID {
			comment = &pin.Comments[i]
			break
		}
	}
	if comment == nil {
		writeError(w, apperror.NotFound("comment", commentID))
		return
	}
	if comment.PostedBy == nil || comment.PostedBy.ID != userID {
		writeError(w, apperror.Forbidden("Only the author can delete a comment."))
		return
	}

	if err := h.engine.DeleteComment(r.Context(), pinID, commentID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
