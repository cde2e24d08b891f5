package engine

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rs/xid"

	"github.com/elizaveta-sm/pin-it-up/internal/apperror"
	"github.com/elizaveta-sm/pin-it-up/internal/content"
	"github.com/elizaveta-sm/pin-it-up/internal/model"
)

// CreatePinInput carries everything needed to publish a pin.
type CreatePinInput struct {
	AuthorID string
	Title    string
	About    string
	// Categories are raw names from the comma-separated form field.
	Categories []string
	Image      io.Reader
	Filename   string
}

// CreatePin publishes a pin: upload the image, merge-or-create each
// category, create the pin document, then link it into the author's
// createdPins. Returns the joined pin.
func (e *Engine) CreatePin(ctx context.Context, in CreatePinInput) (*model.Pin, error) {
	if in.Image == nil {
		return nil, apperror.ValidationFailed("image", "You haven't added an image.")
	}
	if len(in.Title) > model.MaxTitleLength {
		return nil, apperror.ValidationFailed("title", "Title is too long.")
	}
	if len(in.About) > model.MaxAboutLength {
		return nil, apperror.ValidationFailed("about", "Description is too long.")
	}

	asset, err := e.store.UploadImage(ctx, in.Image, in.Filename)
	if err != nil {
		return nil, err
	}

	doc := model.PinDoc{
		ID:       xid.New().String(),
		Type:     model.TypePin,
		Title:    in.Title,
		About:    in.About,
		Image:    model.NewImageValue(asset.ID),
		PostedBy: model.NewRef(in.AuthorID),
		Comments: []model.Ref{},
		SavedBy:  []model.Ref{},
	}

	for _, name := range in.Categories {
		catID, err := e.mergeOrCreateCategory(ctx, name, asset.ID)
		if err != nil {
			return nil, err
		}
		if catID != "" {
			doc.Categories = append(doc.Categories, model.NewRef(catID))
		}
	}

	if err := e.store.CreateIfNotExists(ctx, doc); err != nil {
		return nil, err
	}

	err = e.store.Apply(ctx, content.NewPatch(in.AuthorID).
		SetIfMissing("createdPins", []model.Ref{}).
		Append("createdPins", model.NewRef(doc.ID)))
	if err != nil {
		return nil, err
	}

	e.logger.Info("pin created", "pinId", doc.ID, "authorId", in.AuthorID)
	return e.store.Pin(ctx, doc.ID)
}

// mergeOrCreateCategory links the asset into the category with the given
// name, creating the category when it doesn't exist yet. Lookup is
// trimmed exact-match: "Design" and "design" are distinct categories.
func (e *Engine) mergeOrCreateCategory(ctx context.Context, name, assetID string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}

	existing, err := e.store.CategoryByName(ctx, name)
	switch {
	case err == nil:
		err = e.store.Apply(ctx, content.NewPatch(existing.ID).
			SetIfMissing("imageRefs", []model.ImageRef{}).
			Append("imageRefs", model.ImageRef{AssetID: assetID}))
		if err != nil {
			return "", err
		}
		return existing.ID, nil

	case errors.Is(err, apperror.ErrNotFound):
		doc := model.CategoryDoc{
			ID:        xid.New().String(),
			Type:      model.TypeCategory,
			Name:      name,
			ImageRefs: []model.ImageRef{{AssetID: assetID}},
		}
		if err := e.store.Create(ctx, doc); err != nil {
			return "", err
		}
		return doc.ID, nil

	default:
		return "", err
	}
}

// SavePin records that userID saved the pin — both sides of the
// relationship are patched, pin first. Saving twice simply appends a
// second reference; the unsave patch removes all of them.
func (e *Engine) SavePin(ctx context.Context, pinID, userID string) error {
	err := e.store.Apply(ctx, content.NewPatch(pinID).
		SetIfMissing("savedBy", []model.Ref{}).
		Append("savedBy", model.NewRef(userID)))
	if err != nil {
		return err
	}

	return e.store.Apply(ctx, content.NewPatch(userID).
		SetIfMissing("savedPins", []model.Ref{}).
		Append("savedPins", model.NewRef(pinID)))
}

// RemoveSavedPin undoes SavePin. Both unsets are idempotent, so repeating
// the call (or racing the change feed) cannot fail.
func (e *Engine) RemoveSavedPin(ctx context.Context, pinID, userID string) error {
	if err := e.store.Apply(ctx, content.NewPatch(pinID).UnsetRef("savedBy", userID)); err != nil {
		return err
	}
	return e.store.Apply(ctx, content.NewPatch(userID).UnsetRef("savedPins", pinID))
}

// DeletePin tears down a pin and everything that references it, in seven
// strict steps:
//
//	1. unlink the pin from every user's savedPins
//	2. unlink the pin from its author's createdPins
//	3. remove the pin's image from its categories; a category left with
//	   no images is itself torn out of every pin and deleted
//	4. drop the pin's comment references, then delete each comment
//	5. sweep the store's draft documents
//	6. delete the pin document
//	7. delete the image asset
//
// Referencing documents always go before the referenced one, so an abort
// at any step leaves no pointer to a missing document. No rollback —
// rerunning DeletePin finishes what a failed run started.
func (e *Engine) DeletePin(ctx context.Context, pin *model.Pin) error {
	if pin == nil || pin.ID == "" {
		return apperror.ValidationFailed("pin", "There is no pin present.")
	}
	if pin.PostedBy == nil || pin.PostedBy.ID == "" {
		return apperror.ValidationFailed("pin", "The pin has no author.")
	}
	assetID := pin.ImageAssetID()
	log := e.logger.With("pinId", pin.ID)

	// step 1: savedPins sweep
	savers, err := e.store.UsersWithSavedPin(ctx, pin.ID)
	if err != nil {
		return err
	}
	for _, u := range savers {
		if err := e.store.Apply(ctx, content.NewPatch(u.ID).UnsetRef("savedPins", pin.ID)); err != nil {
			return err
		}
	}
	log.Debug("unlinked from savers", "count", len(savers))

	// step 2: author's createdPins
	if err := e.store.Apply(ctx, content.NewPatch(pin.PostedBy.ID).UnsetRef("createdPins", pin.ID)); err != nil {
		return err
	}

	// step 3: category image refs, with orphan cascade
	if assetID != "" {
		cats, err := e.store.CategoriesWithImageRef(ctx, assetID)
		if err != nil {
			return err
		}
		for _, cat := range cats {
			if err := e.removeCategoryImageRef(ctx, cat.ID, assetID); err != nil {
				return err
			}
		}
	}

	// step 4: comments
	if len(pin.Comments) > 0 {
		if err := e.store.Apply(ctx, content.NewPatch(pin.ID).Unset("comments")); err != nil {
			return err
		}
		for _, c := range pin.Comments {
			if c.ID == "" {
				continue
			}
			if err := e.store.Delete(ctx, c.ID); err != nil {
				return err
			}
		}
		log.Debug("deleted comments", "count", len(pin.Comments))
	}

	// step 5: draft sweep
	if err := e.deleteAllDrafts(ctx); err != nil {
		return err
	}

	// step 6: the pin itself
	if err := e.store.Delete(ctx, pin.ID); err != nil {
		return err
	}

	// step 7: the asset
	if assetID != "" {
		if err := e.store.Delete(ctx, assetID); err != nil {
			return err
		}
	}

	log.Info("pin deleted")
	return nil
}

// removeCategoryImageRef drops the asset from one category and cascades
// when the category ends up empty: every pin referencing it is patched
// first, then the category is deleted.
func (e *Engine) removeCategoryImageRef(ctx context.Context, categoryID, assetID string) error {
	err := e.store.Apply(ctx, content.NewPatch(categoryID).UnsetAssetRef("imageRefs", assetID))
	if err != nil {
		return err
	}

	// re-fetch: another pin's image may still be keeping the category alive
	updated, err := e.store.Category(ctx, categoryID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil
		}
		return err
	}
	if len(updated.ImageRefs) > 0 {
		return nil
	}

	pinIDs, err := e.store.PinIDsReferencingCategory(ctx, categoryID)
	if err != nil {
		return err
	}
	for _, pinID := range pinIDs {
		if err := e.store.Apply(ctx, content.NewPatch(pinID).UnsetRef("categories", categoryID)); err != nil {
			return err
		}
	}

	if err := e.store.Delete(ctx, categoryID); err != nil {
		return err
	}
	e.logger.Info("orphaned category deleted", "categoryId", categoryID)
	return nil
}

// deleteAllDrafts removes the store's staging documents. The editor leaves
// drafts behind; deletion workflows sweep them so no draft resurrects a
// deleted pin.
func (e *Engine) deleteAllDrafts(ctx context.Context) error {
	ids, err := e.store.DraftIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := e.store.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
