package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/elizaveta-sm/pin-it-up/internal/apperror"
	"github.com/elizaveta-sm/pin-it-up/internal/auth"
	"github.com/elizaveta-sm/pin-it-up/internal/content"
	"github.com/elizaveta-sm/pin-it-up/internal/engine"
	"github.com/elizaveta-sm/pin-it-up/internal/state"
)

const minPasswordLength = 8

// AuthHandler manages sign-up, sign-in, the Google OAuth flow and the
// session cookie.
type AuthHandler struct {
	engine     *engine.Engine
	provider   auth.Provider
	google     *auth.GoogleProvider // nil when Google sign-in is not configured
	tokens     *auth.TokenService
	store      content.Querier
	state      *state.Store
	snapshots  state.SnapshotClearer // nil when snapshots are not persisted
	sessionTTL time.Duration
	logger     *slog.Logger
}

func NewAuthHandler(
	eng *engine.Engine,
	provider auth.Provider,
	google *auth.GoogleProvider,
	tokens *auth.TokenService,
	store content.Querier,
	st *state.Store,
	snapshots state.SnapshotClearer,
	sessionTTL time.Duration,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		engine:     eng,
		provider:   provider,
		google:     google,
		tokens:     tokens,
		store:      store,
		state:      st,
		snapshots:  snapshots,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// HandleSignUp creates the user document, registers the credential and
// opens a session.
//
// HTTP: POST /auth/signup
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "Invalid request body."))
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, apperror.ValidationFailed("password", "Passwords need at least 8 characters."))
		return
	}

	user, err := h.engine.CreateUser(r.Context(), engine.CreateUserInput{
		Email:       strings.TrimSpace(req.Email),
		Username:    req.Username,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	// the user document exists even if this fails; CreateIfNotExists makes
	// a retried sign-up converge instead of conflicting with itself
	if err := h.provider.SignUp(r.Context(), user.ID, user.Email, req.Password); err != nil {
		writeError(w, err)
		return
	}

	if !h.openSession(w, user.ID) {
		return
	}
	h.state.SetCurrentUser(user)
	h.logger.Info("user signed up", slog.String("userId", user.ID))
	writeJSON(w, http.StatusCreated, user)
}

type signInRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleSignIn opens a session for an existing account. Callers may
// identify themselves by email or by username; a username is resolved to
// its email through the document store first.
//
// HTTP: POST /auth/signin
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "Invalid request body."))
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" && req.Username != "" {
		u, err := h.store.UserByUsername(r.Context(), strings.TrimSpace(req.Username))
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				// same message as a bad password: never confirm whether
				// an account exists
				writeError(w, apperror.Unauthorized("Incorrect email or password."))
				return
			}
			writeError(w, err)
			return
		}
		email = u.Email
	}

	userID, err := h.provider.SignIn(r.Context(), email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.store.User(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	if !h.openSession(w, user.ID) {
		return
	}
	h.state.SetCurrentUser(user)
	h.logger.Info("user signed in", slog.String("userId", user.ID))
	writeJSON(w, http.StatusOK, user)
}

// HandleSignOut clears the session cookie and drops the cached session
// state, including the persisted snapshot. The token stays valid until
// it expires; without the cookie the browser cannot send it.
//
// HTTP: POST /auth/signout
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	h.state.ClearSession()
	state.ClearSnapshot(r.Context(), h.snapshots, h.logger)
	writeJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

// HandleMe returns the signed-in user's profile.
//
// HTTP: GET /api/me (RequireAuth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("Not signed in."))
		return
	}

	user, err := h.store.User(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleGoogleLogin starts the OAuth code flow. The random state lands in
// a short-lived cookie and is checked again on callback.
//
// HTTP: GET /auth/google/login
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	oauthState := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    oauthState,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(oauthState), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback finishes the OAuth flow: verify the state, exchange
// the code, then find or create the user and open a session.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("oauth callback state mismatch")
		writeError(w, apperror.Unauthorized("Invalid OAuth state."))
		return
	}

	// single-use
	http.SetCookie(w, &http.Cookie{Name: "oauth_state", Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("oauth authorization denied", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "Missing OAuth code."))
		return
	}

	gu, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("oauth exchange failed", slog.String("error", err.Error()))
		writeError(w, apperror.Remote("google oauth exchange", err))
		return
	}

	user, err := h.store.UserByEmail(r.Context(), gu.Email)
	if errors.Is(err, apperror.ErrNotFound) {
		in := engine.CreateUserInput{
			Email:       gu.Email,
			DisplayName: gu.Name,
		}
		if photo := h.fetchProfilePhoto(r.Context(), gu.Picture); photo != nil {
			defer photo.Close()
			in.Photo = photo
			in.PhotoFilename = "photo.jpg"
		}
		user, err = h.engine.CreateUser(r.Context(), in)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if !h.openSession(w, user.ID) {
		return
	}
	h.state.SetCurrentUser(user)
	h.logger.Info("user signed in with google", slog.String("userId", user.ID))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// fetchProfilePhoto downloads the OAuth provider's profile picture for
// import. A missing or failed download returns nil; sign-in proceeds
// without a photo.
func (h *AuthHandler) fetchProfilePhoto(ctx context.Context, url string) io.ReadCloser {
	if url == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		h.logger.Warn("profile photo download failed", slog.String("error", err.Error()))
		return nil
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil
	}
	return res.Body
}

// openSession issues the JWT cookie. It writes its own error response on
// failure and reports whether the caller should continue.
func (h *AuthHandler) openSession(w http.ResponseWriter, userID string) bool {
	token, err := h.tokens.Generate(userID)
	if err != nil {
		h.logger.Error("token generation failed", slog.String("error", err.Error()))
		writeError(w, err)
		return false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return true
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
