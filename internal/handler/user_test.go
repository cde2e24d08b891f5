package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elizaveta-sm/pin-it-up/internal/handler"
	"github.com/elizaveta-sm/pin-it-up/internal/model"
)

type profileResponse struct {
	User    *model.User `json:"user"`
	Created []model.Pin `json:"created"`
	Saved   []model.Pin `json:"saved"`
}

func TestUserHandler_GetProfile(t *testing.T) {
	env := newTestEnv(t)
	author, authorSession := env.signUp(t, "author@example.com", "The Author")
	_, saverSession := env.signUp(t, "saver@example.com", "The Saver")

	created := env.createPin(t, authorSession, "Created By Author")
	other := env.createPin(t, saverSession, "Saved By Author")

	rr := env.do(t, http.MethodPost, "/api/pins/"+other.ID+"/save", authorSession, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/users/"+author.ID, "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var profile profileResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&profile))
	if assert.NotNil(t, profile.User) {
		assert.Equal(t, author.ID, profile.User.ID)
	}
	if assert.Len(t, profile.Created, 1) {
		assert.Equal(t, created.ID, profile.Created[0].ID)
	}
	if assert.Len(t, profile.Saved, 1) {
		assert.Equal(t, other.ID, profile.Saved[0].ID)
	}
}

func TestUserHandler_UpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	_, session := env.signUp(t, "eliza@example.com", "Elizaveta Morozova")
	taken, _ := env.signUp(t, "taken@example.com", "Already Taken")

	t.Run("renames the user", func(t *testing.T) {
		rr := env.do(t, http.MethodPut, "/api/me", session, map[string]string{
			"username":  "liza",
			"firstName": "Liza",
		})
		assert.Equal(t, http.StatusOK, rr.Code)

		var user model.User
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&user))
		assert.Equal(t, "liza", user.Username)
		assert.Equal(t, "Liza", user.FirstName)
	})

	t.Run("rejects a taken username", func(t *testing.T) {
		rr := env.do(t, http.MethodPut, "/api/me", session, map[string]string{
			"username": taken.Username,
		})
		assert.Equal(t, http.StatusConflict, rr.Code)

		var res handler.ErrorResponse
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, "username", res.Field)
	})
}

func TestUserHandler_DeleteAccount(t *testing.T) {
	t.Run("requires the password", func(t *testing.T) {
		env := newTestEnv(t)
		_, session := env.signUp(t, "eliza@example.com", "Elizaveta Morozova")

		rr := env.do(t, http.MethodDelete, "/api/me", session, map[string]string{
			"password": "not-the-password",
		})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)

		var res handler.ErrorResponse
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, "reauth_required", res.Error)

		// nothing was deleted
		rr = env.do(t, http.MethodGet, "/api/me", session, nil)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("erases the account and its pins", func(t *testing.T) {
		env := newTestEnv(t)
		leaver, session := env.signUp(t, "leaver@example.com", "The Leaver")
		pin := env.createPin(t, session, "Will Vanish")

		data, err := env.state.Snapshot()
		assert.NoError(t, err)
		assert.NoError(t, env.snapshots.Save(context.Background(), "state", data))

		rr := env.do(t, http.MethodDelete, "/api/me", session, map[string]string{
			"password": "correct-horse",
		})
		assert.Equal(t, http.StatusNoContent, rr.Code)

		rr = env.do(t, http.MethodGet, "/api/users/"+leaver.ID, "", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)

		rr = env.do(t, http.MethodGet, "/api/pins/"+pin.ID, "", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)

		// the credential is gone too, so signing in again fails
		rr = env.do(t, http.MethodPost, "/auth/signin", "", map[string]string{
			"email":    "leaver@example.com",
			"password": "correct-horse",
		})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)

		assert.Nil(t, env.state.CurrentUser())
		assert.False(t, env.snapshots.saved())
	})
}
