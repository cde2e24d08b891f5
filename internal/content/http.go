package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/elizaveta-sm/pin-it-up/internal/apperror"
	"github.com/elizaveta-sm/pin-it-up/internal/model"
)

// Client talks to the hosted document store over HTTP.
//
// Endpoints, relative to the project's API base URL:
//
//	POST /v1/data/query/{dataset}   — run a query:     {"query": ..., "params": ...}
//	POST /v1/data/mutate/{dataset}  — commit mutations: {"mutations": [...]}
//	POST /v1/assets/images/{dataset}?filename=… — upload an image binary
//	GET  /v1/data/listen/{dataset}  — websocket change feed (listen.go)
//
// No per-call timeout is configured: a destructive workflow is allowed to
// run "up to a minute", and cancellation comes from the caller's context.
type Client struct {
	baseURL string
	dataset string
	token   string
	httpc   *http.Client
}

// ClientConfig carries everything needed to reach the hosted store.
type ClientConfig struct {
	// BaseURL is the project's API origin, e.g. "https://<project>.api.example.com".
	BaseURL string
	Dataset string
	// Token authorizes reads, writes and the listen feed.
	Token string
}

// NewClient creates a store client. The zero http.Client is used so that
// connection pooling is shared and no implicit timeout is imposed.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" || cfg.Dataset == "" {
		return nil, fmt.Errorf("content: BaseURL and Dataset are required")
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		dataset: cfg.Dataset,
		token:   cfg.Token,
		httpc:   &http.Client{},
	}, nil
}

// === QUERY PLUMBING ===

type queryRequest struct {
	Query  string         `json:"query"`
	Params map[string]any `json:"params,omitempty"`
}

type queryResponse struct {
	Result json.RawMessage `json:"result"`
}

// fetch runs a query and decodes the result array into dest.
func (c *Client) fetch(ctx context.Context, query string, params map[string]any, dest any) error {
	body, err := json.Marshal(queryRequest{Query: query, Params: params})
	if err != nil {
		return fmt.Errorf("content: encoding query: %w", err)
	}

	raw, err := c.post(ctx, "/v1/data/query/"+c.dataset, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}

	var resp queryResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("content: decoding query response: %w", err)
	}
	if dest == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, dest); err != nil {
		return fmt.Errorf("content: decoding query result: %w", err)
	}
	return nil
}

// fetchOne runs a query expected to return at most one document.
// A missing document returns apperror.ErrNotFound with the given resource name.
func fetchOne[T any](ctx context.Context, c *Client, query string, params map[string]any, resource, id string) (*T, error) {
	var results []T
	if err := c.fetch(ctx, query, params, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, apperror.NotFound(resource, id)
	}
	return &results[0], nil
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("content: building request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, apperror.Remote(path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.Remote(path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperror.Remote(path, fmt.Errorf("status %d: %s", resp.StatusCode, raw))
	}
	return raw, nil
}

// === QUERIER ===

func (c *Client) Pin(ctx context.Context, id string) (*model.Pin, error) {
	return fetchOne[model.Pin](ctx, c, queryPinByID, map[string]any{"id": id}, "pin", id)
}

func (c *Client) Pins(ctx context.Context) ([]model.Pin, error) {
	var pins []model.Pin
	err := c.fetch(ctx, queryAllPins, nil, &pins)
	return pins, err
}

func (c *Client) PinsByIDs(ctx context.Context, ids []string) ([]model.Pin, error) {
	var pins []model.Pin
	err := c.fetch(ctx, queryPinsByIDs, map[string]any{"ids": ids}, &pins)
	return pins, err
}

func (c *Client) PinsByAuthor(ctx context.Context, userID string) ([]model.Pin, error) {
	var pins []model.Pin
	err := c.fetch(ctx, queryPinsByAuthor, map[string]any{"userId": userID}, &pins)
	return pins, err
}

// Search builds the disjunctive match query. Fields whose pattern slice is
// empty contribute no clause at all — the "undefined" sentinel of the query
// template, expressed by leaving the condition out.
func (c *Client) Search(ctx context.Context, q MatchQuery) ([]model.Pin, error) {
	if q.Empty() {
		return nil, nil
	}

	params := map[string]any{}
	var conds []string
	if len(q.TitlePatterns) > 0 {
		conds = append(conds, "title match $titlePatterns")
		params["titlePatterns"] = q.TitlePatterns
	}
	if len(q.AboutPatterns) > 0 {
		conds = append(conds, "about match $aboutPatterns")
		params["aboutPatterns"] = q.AboutPatterns
	}
	if len(q.CategoryPatterns) > 0 {
		conds = append(conds, "categories[]->name match $categoryPatterns")
		params["categoryPatterns"] = q.CategoryPatterns
	}

	query := `*[_type == "pin"`
	if q.ExcludeID != "" {
		query += ` && _id != $excludeId`
		params["excludeId"] = q.ExcludeID
	}
	query += ` && (` + strings.Join(conds, " || ") + `)]` + pinProjection

	var pins []model.Pin
	err := c.fetch(ctx, query, params, &pins)
	return pins, err
}

func (c *Client) User(ctx context.Context, id string) (*model.User, error) {
	return fetchOne[model.User](ctx, c, queryUserByID, map[string]any{"id": id}, "user", id)
}

func (c *Client) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return fetchOne[model.User](ctx, c, queryUserByEmail, map[string]any{"email": email}, "user", email)
}

func (c *Client) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	return fetchOne[model.User](ctx, c, queryUserByUsername, map[string]any{"username": username}, "user", username)
}

func (c *Client) Categories(ctx context.Context) ([]model.Category, error) {
	var cats []model.Category
	err := c.fetch(ctx, queryAllCategories, nil, &cats)
	return cats, err
}

func (c *Client) Category(ctx context.Context, id string) (*model.Category, error) {
	return fetchOne[model.Category](ctx, c, queryCategoryByID, map[string]any{"id": id}, "category", id)
}

func (c *Client) CategoryByName(ctx context.Context, name string) (*model.Category, error) {
	return fetchOne[model.Category](ctx, c, queryCategoryByName, map[string]any{"name": name}, "category", name)
}

func (c *Client) UsersWithSavedPin(ctx context.Context, pinID string) ([]model.User, error) {
	var users []model.User
	err := c.fetch(ctx, queryUsersWithSaved, map[string]any{"pinId": pinID}, &users)
	return users, err
}

func (c *Client) CategoriesWithImageRef(ctx context.Context, assetID string) ([]model.Category, error) {
	var cats []model.Category
	err := c.fetch(ctx, queryCategoriesWith, map[string]any{"assetId": assetID}, &cats)
	return cats, err
}

func (c *Client) PinIDsReferencingCategory(ctx context.Context, categoryID string) ([]string, error) {
	var ids []string
	err := c.fetch(ctx, queryPinsWithCat, map[string]any{"categoryId": categoryID}, &ids)
	return ids, err
}

func (c *Client) CommentIDsByAuthor(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := c.fetch(ctx, queryCommentsByUser, map[string]any{"userId": userID}, &ids)
	return ids, err
}

func (c *Client) PinIDsWithComment(ctx context.Context, commentID string) ([]string, error) {
	var ids []string
	err := c.fetch(ctx, queryPinsWithComment, map[string]any{"commentId": commentID}, &ids)
	return ids, err
}

func (c *Client) DraftIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := c.fetch(ctx, queryDraftIDs, nil, &ids)
	return ids, err
}

// === MUTATOR ===

// mutation is one entry of the mutate endpoint's payload.
type mutation map[string]any

func (c *Client) mutate(ctx context.Context, muts ...mutation) error {
	body, err := json.Marshal(map[string]any{"mutations": muts})
	if err != nil {
		return fmt.Errorf("content: encoding mutations: %w", err)
	}
	_, err = c.post(ctx, "/v1/data/mutate/"+c.dataset+"?autoGenerateArrayKeys=true", "application/json", bytes.NewReader(body))
	return err
}

func (c *Client) Create(ctx context.Context, doc any) error {
	return c.mutate(ctx, mutation{"create": doc})
}

func (c *Client) CreateIfNotExists(ctx context.Context, doc any) error {
	return c.mutate(ctx, mutation{"createIfNotExists": doc})
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.mutate(ctx, mutation{"delete": map[string]string{"id": id}})
}

// Apply serializes the patch into the store's patch mutation:
// setIfMissing / insert-after / set / unset, with the ref- and
// assetId-matching unsets written as filtered paths. A patch mutation
// holds at most one insert, so each append past the first becomes its
// own mutation in the same request.
func (c *Client) Apply(ctx context.Context, p *Patch) error {
	patch := map[string]any{"id": p.DocumentID}
	setIfMissing := map[string]any{}
	set := map[string]any{}
	var unset []string
	var inserts []map[string]any

	for _, op := range p.Ops {
		switch op.Kind {
		case OpSetIfMissing:
			setIfMissing[op.Field] = op.Value
		case OpSet:
			set[op.Field] = op.Value
		case OpAppend:
			inserts = append(inserts, map[string]any{
				"after": op.Field + "[-1]",
				"items": op.Items,
			})
		case OpUnsetField:
			unset = append(unset, op.Field)
		case OpUnsetRef:
			unset = append(unset, fmt.Sprintf(`%s[_ref == %q]`, op.Field, op.Match))
		case OpUnsetAssetRef:
			unset = append(unset, fmt.Sprintf(`%s[assetId == %q]`, op.Field, op.Match))
		default:
			return fmt.Errorf("content: unsupported patch op %d", op.Kind)
		}
	}

	if len(setIfMissing) > 0 {
		patch["setIfMissing"] = setIfMissing
	}
	if len(set) > 0 {
		patch["set"] = set
	}
	if len(unset) > 0 {
		patch["unset"] = unset
	}
	if len(inserts) > 0 {
		patch["insert"] = inserts[0]
	}

	muts := []mutation{{"patch": patch}}
	for i := 1; i < len(inserts); i++ {
		muts = append(muts, mutation{"patch": map[string]any{
			"id":     p.DocumentID,
			"insert": inserts[i],
		}})
	}
	return c.mutate(ctx, muts...)
}

// === ASSETS ===

type assetResponse struct {
	Document model.Asset `json:"document"`
}

// UploadImage streams the binary to the asset endpoint and returns the
// stored asset document (id + serving URL).
func (c *Client) UploadImage(ctx context.Context, r io.Reader, filename string) (*model.Asset, error) {
	path := "/v1/assets/images/" + c.dataset + "?filename=" + url.QueryEscape(filename)
	raw, err := c.post(ctx, path, "application/octet-stream", r)
	if err != nil {
		return nil, err
	}

	var resp assetResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("content: decoding asset response: %w", err)
	}
	return &resp.Document, nil
}
