package content

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elizaveta-sm/pin-it-up/internal/apperror"
	"github.com/elizaveta-sm/pin-it-up/internal/model"
)

// capture records the last request the fake store received.
type capture struct {
	path        string
	contentType string
	auth        string
	body        []byte
}

func newFakeStore(t *testing.T, status int, response string) (*Client, *capture) {
	t.Helper()
	cap := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cap.path = r.URL.RequestURI()
		cap.contentType = r.Header.Get("Content-Type")
		cap.auth = r.Header.Get("Authorization")
		cap.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientConfig{BaseURL: srv.URL, Dataset: "production", Token: "tkn"})
	require.NoError(t, err)
	return c, cap
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(ClientConfig{Dataset: "production"})
	assert.Error(t, err)
	_, err = NewClient(ClientConfig{BaseURL: "https://x.example.com"})
	assert.Error(t, err)
}

func TestFetchSendsQueryAndToken(t *testing.T) {
	c, cap := newFakeStore(t, http.StatusOK, `{"result":[{"_id":"pin-1","title":"Latte"}]}`)

	pin, err := c.Pin(context.Background(), "pin-1")
	require.NoError(t, err)
	assert.Equal(t, "pin-1", pin.ID)
	assert.Equal(t, "Latte", pin.Title)

	assert.Equal(t, "/v1/data/query/production", cap.path)
	assert.Equal(t, "Bearer tkn", cap.auth)
	assert.Equal(t, "application/json", cap.contentType)

	var req queryRequest
	require.NoError(t, json.Unmarshal(cap.body, &req))
	assert.Contains(t, req.Query, `_type == "pin"`)
	assert.Equal(t, "pin-1", req.Params["id"])
}

func TestFetchOneNotFound(t *testing.T) {
	c, _ := newFakeStore(t, http.StatusOK, `{"result":[]}`)

	_, err := c.User(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestPostErrorWrapsRemote(t *testing.T) {
	c, _ := newFakeStore(t, http.StatusInternalServerError, `oops`)

	_, err := c.Pins(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrRemoteFailure)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "Something went wrong. Please try again.", appErr.Message)
}

func TestSearchOmitsEmptyClauses(t *testing.T) {
	c, cap := newFakeStore(t, http.StatusOK, `{"result":[]}`)

	_, err := c.Search(context.Background(), MatchQuery{
		TitlePatterns: []string{"coffee*"},
		AboutPatterns: []string{"coffee*"},
		ExcludeID:     "pin-1",
	})
	require.NoError(t, err)

	var req queryRequest
	require.NoError(t, json.Unmarshal(cap.body, &req))
	assert.Contains(t, req.Query, "title match $titlePatterns")
	assert.Contains(t, req.Query, "about match $aboutPatterns")
	assert.NotContains(t, req.Query, "$categoryPatterns", "empty field must contribute no clause")
	assert.Contains(t, req.Query, "_id != $excludeId")
	assert.Equal(t, "pin-1", req.Params["excludeId"])
}

func TestSearchEmptyQuerySkipsNetwork(t *testing.T) {
	c, cap := newFakeStore(t, http.StatusOK, `{"result":[]}`)

	pins, err := c.Search(context.Background(), MatchQuery{})
	require.NoError(t, err)
	assert.Nil(t, pins)
	assert.Empty(t, cap.path, "no request should be sent for an empty query")
}

func TestMutatePayloads(t *testing.T) {
	tests := []struct {
		name string
		call func(c *Client) error
		want string
	}{
		{
			name: "create",
			call: func(c *Client) error {
				return c.Create(context.Background(), model.CategoryDoc{ID: "cat-1", Type: model.TypeCategory, Name: "Art"})
			},
			want: `{"mutations":[{"create":{"_id":"cat-1","_type":"category","name":"Art","imageRefs":null}}]}`,
		},
		{
			name: "delete",
			call: func(c *Client) error { return c.Delete(context.Background(), "pin-1") },
			want: `{"mutations":[{"delete":{"id":"pin-1"}}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, cap := newFakeStore(t, http.StatusOK, `{}`)
			require.NoError(t, tt.call(c))
			assert.Equal(t, "/v1/data/mutate/production?autoGenerateArrayKeys=true", cap.path)
			assert.JSONEq(t, tt.want, string(cap.body))
		})
	}
}

func TestApplySerializesPatch(t *testing.T) {
	c, cap := newFakeStore(t, http.StatusOK, `{}`)

	p := NewPatch("user-1").
		SetIfMissing("savedPins", []model.Ref{}).
		Append("savedPins", model.NewRef("pin-1")).
		UnsetRef("createdPins", "pin-2")
	require.NoError(t, c.Apply(context.Background(), p))

	var body struct {
		Mutations []struct {
			Patch map[string]json.RawMessage `json:"patch"`
		} `json:"mutations"`
	}
	require.NoError(t, json.Unmarshal(cap.body, &body))
	require.Len(t, body.Mutations, 1)
	patch := body.Mutations[0].Patch

	assert.JSONEq(t, `"user-1"`, string(patch["id"]))
	assert.JSONEq(t, `{"savedPins":[]}`, string(patch["setIfMissing"]))
	assert.JSONEq(t, `["createdPins[_ref == \"pin-2\"]"]`, string(patch["unset"]))

	var insert struct {
		After string `json:"after"`
		Items []map[string]string
	}
	require.NoError(t, json.Unmarshal(patch["insert"], &insert))
	assert.Equal(t, "savedPins[-1]", insert.After)
	require.Len(t, insert.Items, 1)
	assert.Equal(t, "pin-1", insert.Items[0]["_ref"])
}

func TestApplySplitsMultipleAppends(t *testing.T) {
	c, cap := newFakeStore(t, http.StatusOK, `{}`)

	// each append must survive as its own insert; a single patch
	// mutation only carries one
	p := NewPatch("pin-1").
		Append("savedBy", model.NewRef("user-1")).
		Append("comments", model.NewRef("comment-1"))
	require.NoError(t, c.Apply(context.Background(), p))

	var body struct {
		Mutations []struct {
			Patch struct {
				ID     string `json:"id"`
				Insert struct {
					After string `json:"after"`
					Items []map[string]string
				} `json:"insert"`
			} `json:"patch"`
		} `json:"mutations"`
	}
	require.NoError(t, json.Unmarshal(cap.body, &body))
	require.Len(t, body.Mutations, 2)

	first := body.Mutations[0].Patch
	assert.Equal(t, "pin-1", first.ID)
	assert.Equal(t, "savedBy[-1]", first.Insert.After)
	require.Len(t, first.Insert.Items, 1)
	assert.Equal(t, "user-1", first.Insert.Items[0]["_ref"])

	second := body.Mutations[1].Patch
	assert.Equal(t, "pin-1", second.ID)
	assert.Equal(t, "comments[-1]", second.Insert.After)
	require.Len(t, second.Insert.Items, 1)
	assert.Equal(t, "comment-1", second.Insert.Items[0]["_ref"])
}

func TestUploadImage(t *testing.T) {
	c, cap := newFakeStore(t, http.StatusOK, `{"document":{"_id":"image-abc","url":"https://cdn.example.com/image-abc.jpg"}}`)

	asset, err := c.UploadImage(context.Background(), strings.NewReader("jpeg-bytes"), "my photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, "image-abc", asset.ID)
	assert.Equal(t, "https://cdn.example.com/image-abc.jpg", asset.URL)

	assert.Equal(t, "/v1/assets/images/production?filename=my+photo.jpg", cap.path)
	assert.Equal(t, "application/octet-stream", cap.contentType)
	assert.Equal(t, "jpeg-bytes", string(cap.body))
}
