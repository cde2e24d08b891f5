package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elizaveta-sm/pin-it-up/internal/model"
)

func TestPinHandler_CreateAndFeed(t *testing.T) {
	env := newTestEnv(t)
	user, session := env.signUp(t, "eliza@example.com", "Elizaveta Morozova")

	pin := env.createPin(t, session, "Morning Coffee", "Coffee")
	assert.Equal(t, "Morning Coffee", pin.Title)
	if assert.NotNil(t, pin.PostedBy) {
		assert.Equal(t, user.ID, pin.PostedBy.ID)
	}

	t.Run("feed serves the cached pins", func(t *testing.T) {
		env.refreshState(t)

		rr := env.do(t, http.MethodGet, "/api/pins", "", nil)
		assert.Equal(t, http.StatusOK, rr.Code)

		var pins []model.Pin
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&pins))
		if assert.Len(t, pins, 1) {
			assert.Equal(t, pin.ID, pins[0].ID)
		}
	})

	t.Run("feed filters by category", func(t *testing.T) {
		env.refreshState(t)

		rr := env.do(t, http.MethodGet, "/api/pins?category=coffee", "", nil)
		var pins []model.Pin
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&pins))
		assert.Len(t, pins, 1)

		rr = env.do(t, http.MethodGet, "/api/pins?category=travel", "", nil)
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&pins))
		assert.Empty(t, pins)
	})

	t.Run("get falls through to the store on a cache miss", func(t *testing.T) {
		fresh := env.createPin(t, session, "Uncached")

		rr := env.do(t, http.MethodGet, "/api/pins/"+fresh.ID, "", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("categories are served from the cache", func(t *testing.T) {
		env.refreshState(t)

		rr := env.do(t, http.MethodGet, "/api/categories", "", nil)
		var cats []model.Category
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&cats))
		if assert.Len(t, cats, 1) {
			assert.Equal(t, "Coffee", cats[0].Name)
		}
	})

	t.Run("creating needs a session", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/pins", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestPinHandler_Delete(t *testing.T) {
	env := newTestEnv(t)
	_, authorSession := env.signUp(t, "author@example.com", "The Author")
	_, otherSession := env.signUp(t, "other@example.com", "Someone Else")

	pin := env.createPin(t, authorSession, "Mine")

	t.Run("only the author may delete", func(t *testing.T) {
		rr := env.do(t, http.MethodDelete, "/api/pins/"+pin.ID, otherSession, nil)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("the author deletes it for real", func(t *testing.T) {
		rr := env.do(t, http.MethodDelete, "/api/pins/"+pin.ID, authorSession, nil)
		assert.Equal(t, http.StatusNoContent, rr.Code)

		rr = env.do(t, http.MethodGet, "/api/pins/"+pin.ID, "", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestPinHandler_SaveUnsave(t *testing.T) {
	env := newTestEnv(t)
	_, authorSession := env.signUp(t, "author@example.com", "The Author")
	saver, saverSession := env.signUp(t, "saver@example.com", "The Saver")

	pin := env.createPin(t, authorSession, "Keep This")

	rr := env.do(t, http.MethodPost, "/api/pins/"+pin.ID+"/save", saverSession, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var saved model.Pin
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&saved))
	assert.True(t, saved.SavedByUser(saver.ID))

	rr = env.do(t, http.MethodDelete, "/api/pins/"+pin.ID+"/save", saverSession, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var unsaved model.Pin
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&unsaved))
	assert.False(t, unsaved.SavedByUser(saver.ID))
}

func TestPinHandler_Related(t *testing.T) {
	env := newTestEnv(t)
	_, session := env.signUp(t, "eliza@example.com", "Elizaveta Morozova")

	first := env.createPin(t, session, "Best Coffee Shops", "Coffee")
	second := env.createPin(t, session, "Coffee Brewing Guide", "Coffee")

	rr := env.do(t, http.MethodGet, "/api/pins/"+first.ID+"/related", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var related []model.Pin
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&related))
	if assert.Len(t, related, 1) {
		assert.Equal(t, second.ID, related[0].ID)
	}
}

func TestPinHandler_Search(t *testing.T) {
	env := newTestEnv(t)
	_, session := env.signUp(t, "eliza@example.com", "Elizaveta Morozova")
	pin := env.createPin(t, session, "Morning Coffee")

	rr := env.do(t, http.MethodGet, "/api/search?q=coffee", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var pins []model.Pin
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&pins))
	if assert.Len(t, pins, 1) {
		assert.Equal(t, pin.ID, pins[0].ID)
	}

	t.Run("searches land in the history", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/search/history", "", nil)

		var history []string
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&history))
		assert.Equal(t, []string{"coffee"}, history)
	})

	t.Run("a blank query returns nothing and records nothing", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/search?q=+++", "", nil)
		assert.Equal(t, http.StatusOK, rr.Code)

		var pins []model.Pin
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&pins))
		assert.Empty(t, pins)

		rr = env.do(t, http.MethodGet, "/api/search/history", "", nil)
		var history []string
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&history))
		assert.Equal(t, []string{"coffee"}, history)
	})
}

func TestPinHandler_Comments(t *testing.T) {
	env := newTestEnv(t)
	_, authorSession := env.signUp(t, "author@example.com", "The Author")
	_, fanSession := env.signUp(t, "fan@example.com", "The Fan")

	pin := env.createPin(t, authorSession, "Sunset")

	rr := env.do(t, http.MethodPost, "/api/pins/"+pin.ID+"/comments", fanSession,
		map[string]string{"comment": "stunning"})
	assert.Equal(t, http.StatusCreated, rr.Code)

	var updated model.Pin
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&updated))
	if !assert.Len(t, updated.Comments, 1) {
		return
	}
	commentID := updated.Comments[0].ID
	assert.Equal(t, "stunning", updated.Comments[0].Text)

	t.Run("list", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/pins/"+pin.ID+"/comments", "", nil)
		assert.Equal(t, http.StatusOK, rr.Code)

		var comments []model.Comment
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&comments))
		assert.Len(t, comments, 1)
	})

	t.Run("only the comment author may delete", func(t *testing.T) {
		rr := env.do(t, http.MethodDelete, "/api/pins/"+pin.ID+"/comments/"+commentID, authorSession, nil)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("the author deletes their comment", func(t *testing.T) {
		rr := env.do(t, http.MethodDelete, "/api/pins/"+pin.ID+"/comments/"+commentID, fanSession, nil)
		assert.Equal(t, http.StatusNoContent, rr.Code)

		rr = env.do(t, http.MethodGet, "/api/pins/"+pin.ID+"/comments", "", nil)
		var comments []model.Comment
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&comments))
		assert.Empty(t, comments)
	})
}
