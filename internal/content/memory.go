package content

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/elizaveta-sm/pin-it-up/internal/apperror"
	"github.com/elizaveta-sm/pin-it-up/internal/model"
)

// MemStore is a complete in-process implementation of Store.
//
// It keeps the raw documents the way the remote store would — weak
// references only — and performs the joins at query time, so the engine and
// the sync consumer behave identically against it and against the hosted
// backend. Every mutation emits change events to open subscriptions,
// which is what makes the live-sync tests realistic.
//
// A MemStore is safe for concurrent use. It is the test backend and the
// fallback backend when no hosted store is configured.
type MemStore struct {
	mu sync.RWMutex

	users      map[string]*model.UserDoc
	pins       map[string]*memPin
	categories map[string]*model.Category
	comments   map[string]*memComment
	assets     map[string]*model.Asset
	drafts     map[string]struct{}

	// pinOrder preserves creation order; Pins() serves newest first.
	pinOrder []string

	subs   map[int]*memSub
	nextID int

	now func() time.Time
}

type memPin struct {
	id, title, about string
	assetID          string
	categories       []model.Ref
	postedBy         model.Ref
	comments         []model.Ref
	savedBy          []model.Ref
	createdAt        time.Time
}

type memComment struct {
	id, text  string
	postedBy  model.Ref
	createdAt time.Time
}

type memSub struct {
	filter Filter
	ch     chan Event
}

// NewMemStore creates an empty in-memory document store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:      make(map[string]*model.UserDoc),
		pins:       make(map[string]*memPin),
		categories: make(map[string]*model.Category),
		comments:   make(map[string]*memComment),
		assets:     make(map[string]*model.Asset),
		drafts:     make(map[string]struct{}),
		subs:       make(map[int]*memSub),
		now:        time.Now,
	}
}

// === MUTATIONS ===

func (m *MemStore) Create(ctx context.Context, doc any) error {
	return m.create(ctx, doc, false)
}

func (m *MemStore) CreateIfNotExists(ctx context.Context, doc any) error {
	return m.create(ctx, doc, true)
}

func (m *MemStore) create(_ context.Context, doc any, skipExisting bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch d := doc.(type) {
	case *model.UserDoc:
		return m.createUser(*d, skipExisting)
	case model.UserDoc:
		return m.createUser(d, skipExisting)
	case *model.PinDoc:
		return m.createPin(*d, skipExisting)
	case model.PinDoc:
		return m.createPin(d, skipExisting)
	case *model.CommentDoc:
		return m.createComment(*d, skipExisting)
	case model.CommentDoc:
		return m.createComment(d, skipExisting)
	case *model.CategoryDoc:
		return m.createCategory(*d, skipExisting)
	case model.CategoryDoc:
		return m.createCategory(d, skipExisting)
	default:
		return fmt.Errorf("content: cannot create document of type %T", doc)
	}
}

func (m *MemStore) createUser(d model.UserDoc, skipExisting bool) error {
	if _, ok := m.users[d.ID]; ok {
		if skipExisting {
			return nil
		}
		return apperror.Conflict("user", d.ID)
	}
	stored := d
	if stored.SavedPins == nil {
		stored.SavedPins = []model.Ref{}
	}
	if stored.CreatedPins == nil {
		stored.CreatedPins = []model.Ref{}
	}
	m.users[d.ID] = &stored
	m.emit(TransitionAppear, model.TypeUser, d.ID)
	return nil
}

func (m *MemStore) createPin(d model.PinDoc, skipExisting bool) error {
	if _, ok := m.pins[d.ID]; ok {
		if skipExisting {
			return nil
		}
		return apperror.Conflict("pin", d.ID)
	}
	m.pins[d.ID] = &memPin{
		id:         d.ID,
		title:      d.Title,
		about:      d.About,
		assetID:    d.Image.Asset.Ref,
		categories: append([]model.Ref(nil), d.Categories...),
		postedBy:   d.PostedBy,
		comments:   append([]model.Ref(nil), d.Comments...),
		savedBy:    append([]model.Ref(nil), d.SavedBy...),
		createdAt:  m.now(),
	}
	m.pinOrder = append(m.pinOrder, d.ID)
	m.emit(TransitionAppear, model.TypePin, d.ID)
	return nil
}

func (m *MemStore) createComment(d model.CommentDoc, skipExisting bool) error {
	if _, ok := m.comments[d.ID]; ok {
		if skipExisting {
			return nil
		}
		return apperror.Conflict("comment", d.ID)
	}
	m.comments[d.ID] = &memComment{
		id:        d.ID,
		text:      d.Text,
		postedBy:  d.PostedBy,
		createdAt: m.now(),
	}
	m.emit(TransitionAppear, model.TypeComment, d.ID)
	return nil
}

func (m *MemStore) createCategory(d model.CategoryDoc, skipExisting bool) error {
	if _, ok := m.categories[d.ID]; ok {
		if skipExisting {
			return nil
		}
		return apperror.Conflict("category", d.ID)
	}
	m.categories[d.ID] = &model.Category{
		ID:        d.ID,
		Name:      d.Name,
		ImageRefs: append([]model.ImageRef(nil), d.ImageRefs...),
	}
	m.emit(TransitionAppear, model.TypeCategory, d.ID)
	return nil
}

// Delete removes the document or asset with the given id. Deleting an
// absent id is a no-op, matching the remote store.
func (m *MemStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.pins[id] != nil:
		delete(m.pins, id)
		for i, pid := range m.pinOrder {
			if pid == id {
				m.pinOrder = append(m.pinOrder[:i], m.pinOrder[i+1:]...)
				break
			}
		}
		m.emit(TransitionDisappear, model.TypePin, id)
	case m.users[id] != nil:
		delete(m.users, id)
		m.emit(TransitionDisappear, model.TypeUser, id)
	case m.categories[id] != nil:
		delete(m.categories, id)
		m.emit(TransitionDisappear, model.TypeCategory, id)
	case m.comments[id] != nil:
		delete(m.comments, id)
		m.emit(TransitionDisappear, model.TypeComment, id)
	default:
		delete(m.assets, id)
		delete(m.drafts, id)
	}
	return nil
}

// Apply commits a patch. Unknown document ids are an error; unknown fields
// for the document's type are an error too, so a typo in a patch surfaces
// in tests instead of silently doing nothing.
func (m *MemStore) Apply(_ context.Context, p *Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[p.DocumentID]; ok {
		if err := m.patchUser(u, p.Ops); err != nil {
			return err
		}
		m.emit(TransitionUpdate, model.TypeUser, p.DocumentID)
		return nil
	}
	if pin, ok := m.pins[p.DocumentID]; ok {
		if err := m.patchPin(pin, p.Ops); err != nil {
			return err
		}
		m.emit(TransitionUpdate, model.TypePin, p.DocumentID)
		return nil
	}
	if c, ok := m.categories[p.DocumentID]; ok {
		if err := m.patchCategory(c, p.Ops); err != nil {
			return err
		}
		m.emit(TransitionUpdate, model.TypeCategory, p.DocumentID)
		return nil
	}
	return apperror.NotFound("document", p.DocumentID)
}

func (m *MemStore) patchUser(u *model.UserDoc, ops []PatchOp) error {
	for _, op := range ops {
		switch op.Field {
		case "savedPins":
			if err := applyRefOp(&u.SavedPins, op); err != nil {
				return err
			}
		case "createdPins":
			if err := applyRefOp(&u.CreatedPins, op); err != nil {
				return err
			}
		case "username":
			u.Username = op.Value.(string)
		case "firstName":
			u.FirstName = op.Value.(string)
		case "lastName":
			u.LastName = op.Value.(string)
		case "email":
			u.Email = op.Value.(string)
		default:
			return fmt.Errorf("content: user patch: unknown field %q", op.Field)
		}
	}
	return nil
}

func (m *MemStore) patchPin(p *memPin, ops []PatchOp) error {
	for _, op := range ops {
		switch op.Field {
		case "savedBy":
			if err := applyRefOp(&p.savedBy, op); err != nil {
				return err
			}
		case "comments":
			if err := applyRefOp(&p.comments, op); err != nil {
				return err
			}
		case "categories":
			if err := applyRefOp(&p.categories, op); err != nil {
				return err
			}
		case "title":
			p.title = op.Value.(string)
		case "about":
			p.about = op.Value.(string)
		default:
			return fmt.Errorf("content: pin patch: unknown field %q", op.Field)
		}
	}
	return nil
}

func (m *MemStore) patchCategory(c *model.Category, ops []PatchOp) error {
	for _, op := range ops {
		if op.Field != "imageRefs" {
			return fmt.Errorf("content: category patch: unknown field %q", op.Field)
		}
		switch op.Kind {
		case OpSetIfMissing:
			if c.ImageRefs == nil {
				c.ImageRefs = []model.ImageRef{}
			}
		case OpAppend:
			for _, item := range op.Items {
				ref, ok := item.(model.ImageRef)
				if !ok {
					return fmt.Errorf("content: imageRefs append: want model.ImageRef, got %T", item)
				}
				c.ImageRefs = append(c.ImageRefs, ref)
			}
		case OpUnsetAssetRef:
			kept := c.ImageRefs[:0]
			for _, ref := range c.ImageRefs {
				if ref.AssetID != op.Match {
					kept = append(kept, ref)
				}
			}
			c.ImageRefs = kept
		case OpUnsetField:
			c.ImageRefs = nil
		default:
			return fmt.Errorf("content: category patch: unsupported op %d", op.Kind)
		}
	}
	return nil
}

// applyRefOp applies one patch op to a reference array.
func applyRefOp(arr *[]model.Ref, op PatchOp) error {
	switch op.Kind {
	case OpSetIfMissing:
		if *arr == nil {
			*arr = []model.Ref{}
		}
	case OpAppend:
		for _, item := range op.Items {
			ref, ok := item.(model.Ref)
			if !ok {
				return fmt.Errorf("content: reference append: want model.Ref, got %T", item)
			}
			if ref.Key == "" {
				ref.Key = xid.New().String() // autoGenerateArrayKeys
			}
			*arr = append(*arr, ref)
		}
	case OpUnsetRef:
		kept := (*arr)[:0]
		for _, ref := range *arr {
			if ref.Ref != op.Match {
				kept = append(kept, ref)
			}
		}
		*arr = kept
	case OpUnsetField:
		*arr = nil
	default:
		return fmt.Errorf("content: reference array: unsupported op %d", op.Kind)
	}
	return nil
}

// === ASSETS ===

// UploadImage stores the image bytes and returns the asset document.
func (m *MemStore) UploadImage(_ context.Context, r io.Reader, filename string) (*model.Asset, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, apperror.Remote("upload image", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := "image-" + xid.New().String()
	asset := &model.Asset{
		ID:  id,
		URL: "mem://assets/" + path.Join(id, filename),
	}
	m.assets[id] = asset
	return asset, nil
}

// SeedDraft registers a staging document id, the way the hosted store's
// editor session leaves drafts behind. Used to exercise the draft sweep.
func (m *MemStore) SeedDraft(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts["drafts."+id] = struct{}{}
}

// === QUERIES ===

func (m *MemStore) Pin(_ context.Context, id string) (*model.Pin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pins[id]
	if !ok {
		return nil, apperror.NotFound("pin", id)
	}
	return m.joinPin(p), nil
}

func (m *MemStore) Pins(_ context.Context) ([]model.Pin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Newest first: walk the creation order backwards.
	out := make([]model.Pin, 0, len(m.pinOrder))
	for i := len(m.pinOrder) - 1; i >= 0; i-- {
		if p, ok := m.pins[m.pinOrder[i]]; ok {
			out = append(out, *m.joinPin(p))
		}
	}
	return out, nil
}

func (m *MemStore) PinsByIDs(_ context.Context, ids []string) ([]model.Pin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Pin, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.pins[id]; ok {
			out = append(out, *m.joinPin(p))
		}
	}
	return out, nil
}

func (m *MemStore) PinsByAuthor(_ context.Context, userID string) ([]model.Pin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Pin
	for _, id := range m.pinOrder {
		if p := m.pins[id]; p != nil && p.postedBy.Ref == userID {
			out = append(out, *m.joinPin(p))
		}
	}
	return out, nil
}

func (m *MemStore) Search(_ context.Context, q MatchQuery) ([]model.Pin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Pin
	for _, id := range m.pinOrder {
		p := m.pins[id]
		if p == nil || p.id == q.ExcludeID {
			continue
		}
		if m.pinMatches(p, q) {
			out = append(out, *m.joinPin(p))
		}
	}
	return out, nil
}

// pinMatches mirrors the store's match operator: case-insensitive prefix
// match of each wildcarded pattern against the words of the field.
func (m *MemStore) pinMatches(p *memPin, q MatchQuery) bool {
	if matchesAny(p.title, q.TitlePatterns) || matchesAny(p.about, q.AboutPatterns) {
		return true
	}
	if len(q.CategoryPatterns) > 0 {
		for _, ref := range p.categories {
			if c, ok := m.categories[ref.Ref]; ok && matchesAny(c.Name, q.CategoryPatterns) {
				return true
			}
		}
	}
	return false
}

func matchesAny(field string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	words := strings.Fields(strings.ToLower(field))
	for _, pat := range patterns {
		prefix := strings.ToLower(strings.TrimSuffix(pat, "*"))
		for _, w := range words {
			if strings.HasPrefix(w, prefix) {
				return true
			}
		}
	}
	return false
}

func (m *MemStore) User(_ context.Context, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return m.joinUser(u), nil
}

func (m *MemStore) UserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email == email {
			return m.joinUser(u), nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (m *MemStore) UserByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Username == username {
			return m.joinUser(u), nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (m *MemStore) Categories(_ context.Context) ([]model.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, copyCategory(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemStore) Category(_ context.Context, id string) (*model.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.categories[id]
	if !ok {
		return nil, apperror.NotFound("category", id)
	}
	cp := copyCategory(c)
	return &cp, nil
}

func (m *MemStore) CategoryByName(_ context.Context, name string) (*model.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Exact string comparison. Callers trim; nobody lowercases.
	for _, c := range m.categories {
		if c.Name == name {
			cp := copyCategory(c)
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("category", name)
}

func (m *MemStore) UsersWithSavedPin(_ context.Context, pinID string) ([]model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.User
	for _, u := range m.users {
		for _, ref := range u.SavedPins {
			if ref.Ref == pinID {
				out = append(out, *m.joinUser(u))
				break
			}
		}
	}
	return out, nil
}

func (m *MemStore) CategoriesWithImageRef(_ context.Context, assetID string) ([]model.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Category
	for _, c := range m.categories {
		for _, ref := range c.ImageRefs {
			if ref.AssetID == assetID {
				out = append(out, copyCategory(c))
				break
			}
		}
	}
	return out, nil
}

func (m *MemStore) PinIDsReferencingCategory(_ context.Context, categoryID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for _, id := range m.pinOrder {
		p := m.pins[id]
		if p == nil {
			continue
		}
		for _, ref := range p.categories {
			if ref.Ref == categoryID {
				out = append(out, p.id)
				break
			}
		}
	}
	return out, nil
}

func (m *MemStore) CommentIDsByAuthor(_ context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for id, c := range m.comments {
		if c.postedBy.Ref == userID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemStore) PinIDsWithComment(_ context.Context, commentID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for _, id := range m.pinOrder {
		p := m.pins[id]
		if p == nil {
			continue
		}
		for _, ref := range p.comments {
			if ref.Ref == commentID {
				out = append(out, p.id)
				break
			}
		}
	}
	return out, nil
}

func (m *MemStore) DraftIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.drafts))
	for id := range m.drafts {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// === JOINS ===

func (m *MemStore) joinPin(p *memPin) *model.Pin {
	pin := &model.Pin{
		ID:        p.id,
		Title:     p.title,
		About:     p.about,
		Image:     m.joinImage(p.assetID),
		PostedBy:  m.userSummary(p.postedBy.Ref),
		CreatedAt: p.createdAt,
	}
	for _, ref := range p.categories {
		if c, ok := m.categories[ref.Ref]; ok {
			pin.Categories = append(pin.Categories, copyCategory(c))
		}
	}
	for _, ref := range p.comments {
		if c, ok := m.comments[ref.Ref]; ok {
			pin.Comments = append(pin.Comments, model.Comment{
				ID:        c.id,
				Text:      c.text,
				PostedBy:  m.userSummary(c.postedBy.Ref),
				CreatedAt: c.createdAt,
			})
		}
	}
	for _, ref := range p.savedBy {
		if s := m.userSummary(ref.Ref); s != nil {
			pin.SavedBy = append(pin.SavedBy, *s)
		}
	}
	return pin
}

func (m *MemStore) joinUser(u *model.UserDoc) *model.User {
	out := &model.User{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		SavedPins:   append([]model.Ref(nil), u.SavedPins...),
		CreatedPins: append([]model.Ref(nil), u.CreatedPins...),
	}
	if u.Photo != nil {
		img := m.joinImage(u.Photo.Asset.Ref)
		out.Photo = &img
	}
	return out
}

func (m *MemStore) userSummary(id string) *model.UserSummary {
	u, ok := m.users[id]
	if !ok {
		// Dangling author reference: the joined projection is simply empty,
		// same as the remote store dereferencing a deleted document.
		return nil
	}
	s := &model.UserSummary{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
	if u.Photo != nil {
		img := m.joinImage(u.Photo.Asset.Ref)
		s.Photo = &img
	}
	return s
}

func (m *MemStore) joinImage(assetID string) model.Image {
	if a, ok := m.assets[assetID]; ok {
		return model.Image{Asset: *a}
	}
	return model.Image{Asset: model.Asset{ID: assetID}}
}

func copyCategory(c *model.Category) model.Category {
	return model.Category{
		ID:        c.ID,
		Name:      c.Name,
		ImageRefs: append([]model.ImageRef(nil), c.ImageRefs...),
	}
}

// === SUBSCRIPTIONS ===

// Listen opens a subscription on the change feed. The subscription ends
// when ctx is cancelled or Close is called; its channel is closed then.
func (m *MemStore) Listen(ctx context.Context, f Filter) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	sub := &memSub{filter: f, ch: make(chan Event, 64)}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = sub
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
		close(sub.ch)
	}()

	return &Subscription{Events: sub.ch, cancel: cancel}, nil
}

// emit delivers an event to every matching subscription. Callers hold mu.
// A subscriber that has fallen 64 events behind loses events — delivery is
// best effort, like the remote feed.
func (m *MemStore) emit(tr Transition, docType, id string) {
	for _, sub := range m.subs {
		if !sub.filter.Matches(docType, id) {
			continue
		}
		select {
		case sub.ch <- Event{Transition: tr, DocumentType: docType, DocumentID: id}:
		default:
		}
	}
}
