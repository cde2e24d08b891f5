package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/elizaveta-sm/pin-it-up/internal/apperror"
	"github.com/elizaveta-sm/pin-it-up/internal/auth"
	"github.com/elizaveta-sm/pin-it-up/internal/content"
	"github.com/elizaveta-sm/pin-it-up/internal/engine"
	"github.com/elizaveta-sm/pin-it-up/internal/handler"
	"github.com/elizaveta-sm/pin-it-up/internal/model"
	"github.com/elizaveta-sm/pin-it-up/internal/repository"
	"github.com/elizaveta-sm/pin-it-up/internal/search"
	"github.com/elizaveta-sm/pin-it-up/internal/state"
)

// memCreds is an in-memory credential repository for handler tests.
type memCreds struct {
	mu   sync.Mutex
	byID map[string]*repository.Credential
}

func newMemCreds() *memCreds {
	return &memCreds{byID: make(map[string]*repository.Credential)}
}

func (m *memCreds) Create(_ context.Context, cred *repository.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byID {
		if c.Email == cred.Email {
			return &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: "An account with this email already exists.",
				Field:   "email",
			}
		}
	}
	cp := *cred
	m.byID[cred.UserID] = &cp
	return nil
}

func (m *memCreds) GetByEmail(_ context.Context, email string) (*repository.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byID {
		if c.Email == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("credential", email)
}

func (m *memCreds) GetByUserID(_ context.Context, userID string) (*repository.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[userID]
	if !ok {
		return nil, apperror.NotFound("credential", userID)
	}
	cp := *c
	return &cp, nil
}

func (m *memCreds) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, userID)
	return nil
}

// testEnv wires the handlers over the in-memory store the way the server
// composition root does, minus the sqlite database and the change feed.
type testEnv struct {
	store       *content.MemStore
	state       *state.Store
	engine      *engine.Engine
	provider    *auth.LocalProvider
	tokens      *auth.TokenService
	recommender *search.Recommender
	syncer      *state.Syncer
	snapshots   *memSnapshots
	router      *chi.Mux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := content.NewMemStore()
	provider := auth.NewLocalProvider(newMemCreds(), auth.NewPasswordServiceForTest(bcrypt.MinCost))

	tokens, err := auth.NewTokenService("handler-test-secret-key", time.Hour)
	if err != nil {
		t.Fatalf("creating token service: %v", err)
	}

	eng := engine.New(store, provider, logger)
	recommender := search.NewRecommender(store)
	st := state.NewStore()
	snapshots := newMemSnapshots()
	syncer := state.NewSyncer(store, st, recommender, snapshots, logger)

	authHandler := handler.NewAuthHandler(eng, provider, nil, tokens, store, st, snapshots, time.Hour, logger)
	pinHandler := handler.NewPinHandler(eng, store, st, recommender, logger)
	userHandler := handler.NewUserHandler(eng, provider, store, st, snapshots, logger)

	r := chi.NewRouter()
	r.Post("/auth/signup", authHandler.HandleSignUp)
	r.Post("/auth/signin", authHandler.HandleSignIn)
	r.Post("/auth/signout", authHandler.HandleSignOut)

	r.Get("/api/pins", pinHandler.HandleFeed)
	r.Get("/api/pins/{id}", pinHandler.HandleGet)
	r.Get("/api/pins/{id}/related", pinHandler.HandleRelated)
	r.Get("/api/pins/{id}/comments", pinHandler.HandleListComments)
	r.Get("/api/categories", pinHandler.HandleCategories)
	r.Get("/api/search", pinHandler.HandleSearch)
	r.Get("/api/search/history", pinHandler.HandleSearchHistory)
	r.Get("/api/users/{id}", userHandler.HandleGetProfile)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Get("/api/me", authHandler.HandleMe)
		r.Put("/api/me", userHandler.HandleUpdateProfile)
		r.Delete("/api/me", userHandler.HandleDeleteAccount)
		r.Post("/api/pins", pinHandler.HandleCreate)
		r.Delete("/api/pins/{id}", pinHandler.HandleDelete)
		r.Post("/api/pins/{id}/save", pinHandler.HandleSave)
		r.Delete("/api/pins/{id}/save", pinHandler.HandleUnsave)
		r.Post("/api/pins/{id}/comments", pinHandler.HandleAddComment)
		r.Delete("/api/pins/{id}/comments/{commentID}", pinHandler.HandleDeleteComment)
	})

	return &testEnv{
		store:       store,
		state:       st,
		engine:      eng,
		provider:    provider,
		tokens:      tokens,
		recommender: recommender,
		syncer:      syncer,
		snapshots:   snapshots,
		router:      r,
	}
}

// memSnapshots is an in-memory snapshot repository.
type memSnapshots struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{data: make(map[string][]byte)}
}

func (m *memSnapshots) Save(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = append([]byte(nil), data...)
	return nil
}

func (m *memSnapshots) Clear(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, name)
	return nil
}

func (m *memSnapshots) saved() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data) > 0
}

// do runs one request through the router. A non-empty session cookie
// authenticates it.
func (e *testEnv) do(t *testing.T, method, target, session string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: session})
	}

	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// signUp registers a user and returns the user plus a session token.
func (e *testEnv) signUp(t *testing.T, email, displayName string) (*model.User, string) {
	t.Helper()

	rr := e.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"email":       email,
		"password":    "correct-horse",
		"displayName": displayName,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("sign-up returned %d: %s", rr.Code, rr.Body.String())
	}

	var user model.User
	if err := json.NewDecoder(rr.Body).Decode(&user); err != nil {
		t.Fatalf("decoding sign-up response: %v", err)
	}
	return &user, sessionCookie(t, rr)
}

// sessionCookie extracts the session cookie value from a response.
func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c.Value
		}
	}
	t.Fatal("no session cookie in response")
	return ""
}

// createPin uploads a pin through the multipart endpoint.
func (e *testEnv) createPin(t *testing.T, session, title string, categories ...string) *model.Pin {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", title+".jpg")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.Copy(fw, strings.NewReader("jpeg-bytes")); err != nil {
		t.Fatal(err)
	}
	if err := mw.WriteField("title", title); err != nil {
		t.Fatal(err)
	}
	if err := mw.WriteField("about", "about "+title); err != nil {
		t.Fatal(err)
	}
	for _, c := range categories {
		if err := mw.WriteField("category", c); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/pins", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: session})

	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create pin returned %d: %s", rr.Code, rr.Body.String())
	}

	var pin model.Pin
	if err := json.NewDecoder(rr.Body).Decode(&pin); err != nil {
		t.Fatalf("decoding pin response: %v", err)
	}
	return &pin
}

// refreshState reloads the state cache from the store, standing in for
// the change feed that the full server runs.
func (e *testEnv) refreshState(t *testing.T) {
	t.Helper()
	if err := e.syncer.Prime(context.Background()); err != nil {
		t.Fatalf("priming state: %v", err)
	}
}
