package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/elizaveta-sm/pin-it-up/internal/apperror"
	"github.com/elizaveta-sm/pin-it-up/internal/auth"
	"github.com/elizaveta-sm/pin-it-up/internal/content"
	"github.com/elizaveta-sm/pin-it-up/internal/engine"
	"github.com/elizaveta-sm/pin-it-up/internal/model"
	"github.com/elizaveta-sm/pin-it-up/internal/state"
)

// UserHandler serves profiles and the account-deletion flow.
type UserHandler struct {
	engine    *engine.Engine
	provider  auth.Provider
	store     content.Querier
	state     *state.Store
	snapshots state.SnapshotClearer // nil when snapshots are not persisted
	logger    *slog.Logger

	// deleting guards against a second delete request racing the first;
	// account deletion is a multi-step cascade with no rollback, so only
	// one may run per user at a time.
	mu       sync.Mutex
	deleting map[string]bool
}

func NewUserHandler(
	eng *engine.Engine,
	provider auth.Provider,
	store content.Querier,
	st *state.Store,
	snapshots state.SnapshotClearer,
	logger *slog.Logger,
) *UserHandler {
	return &UserHandler{
		engine:    eng,
		provider:  provider,
		store:     store,
		state:     st,
		snapshots: snapshots,
		logger:    logger,
		deleting:  make(map[string]bool),
	}
}

// profileResponse bundles a user with the pins shown on their board.
type profileResponse struct {
	User    *model.User `json:"user"`
	Created []model.Pin `json:"created"`
	Saved   []model.Pin `json:"saved"`
}

// HandleGetProfile returns a user's profile with their created and saved
// pins.
//
// HTTP: GET /api/users/{id}
func (h *UserHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.User(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	created, err := h.store.PinsByAuthor(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	savedIDs := make([]string, 0, len(user.SavedPins))
	for _, ref := range user.SavedPins {
		if ref.Ref != "" {
			savedIDs = append(savedIDs, ref.Ref)
		}
	}
	saved, err := h.store.PinsByIDs(r.Context(), savedIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	h.state.SetOtherUser(user)
	writeJSON(w, http.StatusOK, profileResponse{User: user, Created: created, Saved: saved})
}

type updateProfileRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// HandleUpdateProfile applies a partial profile edit for the signed-in
// user.
//
// HTTP: PUT /api/me (RequireAuth)
func (h *UserHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "Invalid request body."))
		return
	}

	user, err := h.engine.UpdateProfile(r.Context(), userID, engine.UpdateProfileInput{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.state.SetCurrentUser(user)
	writeJSON(w, http.StatusOK, user)
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

// HandleDeleteAccount erases the signed-in user: reauthenticate, tear
// down every created pin, then cascade away the account itself. A second
// request while one is running gets a conflict.
//
// HTTP: DELETE /api/me (RequireAuth)
func (h *UserHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if !h.beginDelete(userID) {
		writeError(w, &apperror.AppError{
			Err:     apperror.ErrConflict,
			Message: "Account deletion is already in progress.",
		})
		return
	}
	defer h.endDelete(userID)

	var req deleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "Invalid request body."))
		return
	}
	if err := h.provider.Reauthenticate(r.Context(), userID, req.Password); err != nil {
		writeError(w, err)
		return
	}

	// each created pin first; DeletePin expects the caller to have done
	// this before the account cascade runs
	pins, err := h.store.PinsByAuthor(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	for i := range pins {
		if err := h.engine.DeletePin(r.Context(), &pins[i]); err != nil {
			h.logger.Error("account deletion stopped at a pin",
				slog.String("userId", userID),
				slog.String("pinId", pins[i].ID),
				slog.String("error", err.Error()),
			)
			writeError(w, err)
			return
		}
	}

	user, err := h.store.User(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.engine.DeleteUserAccount(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}

	clearSessionCookie(w)
	h.state.ClearSession()
	state.ClearSnapshot(r.Context(), h.snapshots, h.logger)
	h.logger.Info("account deleted", slog.String("userId", userID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) beginDelete(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.deleting[userID] {
		return false
	}
	h.deleting[userID] = true
	return true
}

func (h *UserHandler) endDelete(userID string) {
	h.mu.Lock()
	delete(h.deleting, userID)
	h.mu.Unlock()
}
