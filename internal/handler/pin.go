package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/elizaveta-sm/pin-it-up/internal/apperror"
	"github.com/elizaveta-sm/pin-it-up/internal/auth"
	"github.com/elizaveta-sm/pin-it-up/internal/content"
	"github.com/elizaveta-sm/pin-it-up/internal/engine"
	"github.com/elizaveta-sm/pin-it-up/internal/model"
	"github.com/elizaveta-sm/pin-it-up/internal/search"
	"github.com/elizaveta-sm/pin-it-up/internal/state"
)

// maxImageUploadBytes caps the multipart memory for pin image uploads.
const maxImageUploadBytes = 20 << 20 // 20 MB

// PinHandler serves the pin feed and the pin mutations.
//
// Reads come from the state store, which the change feed keeps current;
// writes go through the engine and flow back into the state store via the
// same feed.
type PinHandler struct {
	engine      *engine.Engine
	store       content.Store
	state       *state.Store
	recommender *search.Recommender
	logger      *slog.Logger
}

func NewPinHandler(
	eng *engine.Engine,
	store content.Store,
	st *state.Store,
	rec *search.Recommender,
	logger *slog.Logger,
) *PinHandler {
	return &PinHandler{
		engine:      eng,
		store:       store,
		state:       st,
		recommender: rec,
		logger:      logger,
	}
}

// HandleFeed lists pins from the state cache, optionally filtered by
// category name.
//
// HTTP: GET /api/pins?category=travel
func (h *PinHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	pins := h.state.Pins()

	if category := r.URL.Query().Get("category"); category != "" {
		filtered := pins[:0]
		for _, p := range pins {
			for _, c := range p.Categories {
				if strings.EqualFold(c.Name, category) {
					filtered = append(filtered, p)
					break
				}
			}
		}
		pins = filtered
	}

	writeJSON(w, http.StatusOK, pins)
}

// HandleCategories lists the categories from the state cache.
//
// HTTP: GET /api/categories
func (h *PinHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state.Categories())
}

// HandleGet returns one pin. The state cache answers when it can; a miss
// falls through to the document store so a direct link to a brand-new pin
// still resolves.
//
// HTTP: GET /api/pins/{id}
func (h *PinHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if pin, ok := h.state.Pin(id); ok {
		writeJSON(w, http.StatusOK, pin)
		return
	}

	pin, err := h.store.Pin(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pin)
}

// HandleCreate creates a pin from a multipart form: an "image" file plus
// "title", "about" and repeated "category" fields.
//
// HTTP: POST /api/pins (RequireAuth)
func (h *PinHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := r.ParseMultipartForm(maxImageUploadBytes); err != nil {
		writeError(w, apperror.ValidationFailed("body", "Expected a multipart form."))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, apperror.ValidationFailed("image", "An image is required."))
		return
	}
	defer file.Close()

	pin, err := h.engine.CreatePin(r.Context(), engine.CreatePinInput{
		AuthorID:   userID,
		Title:      r.FormValue("title"),
		About:      r.FormValue("about"),
		Categories: r.Form["category"],
		Image:      file,
		Filename:   header.Filename,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, pin)
}

// HandleDelete tears down a pin and everything referencing it. Only the
// pin's author may delete it.
//
// HTTP: DELETE /api/pins/{id} (RequireAuth)
func (h *PinHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	pin, err := h.store.Pin(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if pin.PostedBy == nil || pin.PostedBy.ID != userID {
		writeError(w, apperror.Forbidden("Only the author can delete a pin."))
		return
	}

	if err := h.engine.DeletePin(r.Context(), pin); err != nil {
		h.logger.Error("pin deletion failed",
			slog.String("pinId", pin.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleSave adds the pin to the caller's saved list.
//
// HTTP: POST /api/pins/{id}/save (RequireAuth)
func (h *PinHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	pinID := chi.URLParam(r, "id")

	if err := h.engine.SavePin(r.Context(), pinID, userID); err != nil {
		writeError(w, err)
		return
	}
	h.respondWithPin(w, r, pinID)
}

// HandleUnsave removes the pin from the caller's saved list. Unsaving a
// pin that was never saved is a no-op.
//
// HTTP: DELETE /api/pins/{id}/save (RequireAuth)
func (h *PinHandler) HandleUnsave(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	pinID := chi.URLParam(r, "id")

	if err := h.engine.RemoveSavedPin(r.Context(), pinID, userID); err != nil {
		writeError(w, err)
		return
	}
	h.respondWithPin(w, r, pinID)
}

// HandleRelated returns pins similar to the given one, from the
// recommendation cache.
//
// HTTP: GET /api/pins/{id}/related
func (h *PinHandler) HandleRelated(w http.ResponseWriter, r *http.Request) {
	pin, err := h.store.Pin(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	related, err := h.recommender.Recommend(r.Context(), pin)
	if err != nil {
		writeError(w, err)
		return
	}
	if related == nil {
		related = []model.Pin{}
	}
	writeJSON(w, http.StatusOK, related)
}

// HandleSearch runs a keyword search and records the term in the search
// history. A blank query returns an empty result without a store call.
//
// HTTP: GET /api/search?q=coffee
func (h *PinHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("q")

	pins, err := h.recommender.Search(r.Context(), keyword)
	if err != nil {
		writeError(w, err)
		return
	}
	if pins == nil {
		pins = []model.Pin{}
	}

	h.state.AddSearchTerm(strings.TrimSpace(keyword))
	writeJSON(w, http.StatusOK, pins)
}

// HandleSearchHistory returns the most recent search terms.
//
// HTTP: GET /api/search/history
func (h *PinHandler) HandleSearchHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state.SearchHistory())
}

// respondWithPin fetches the pin fresh and returns it, so save/unsave
// responses reflect the mutation the caller just made.
func (h *PinHandler) respondWithPin(w http.ResponseWriter, r *http.Request, pinID string) {
	pin, err := h.store.Pin(r.Context(), pinID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pin)
}
