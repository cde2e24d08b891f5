package engine

import (
	"context"
	"strings"

	"github.com/rs/xid"

	"github.com/elizaveta-sm/pin-it-up/internal/apperror"
	"github.com/elizaveta-sm/pin-it-up/internal/content"
	"github.com/elizaveta-sm/pin-it-up/internal/model"
)

// AddComment creates the comment document and links it into the pin, in
// that order — the reference is only written once its target exists.
func (e *Engine) AddComment(ctx context.Context, pinID, authorID, text string) (*model.Pin, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.ValidationFailed("comment", "You haven't written anything.")
	}
	if len(text) > model.MaxCommentLength {
		return nil, apperror.ValidationFailed("comment", "Comment is too long.")
	}

	doc := model.CommentDoc{
		ID:       xid.New().String(),
		Type:     model.TypeComment,
		Text:     text,
		PostedBy: model.NewRef(authorID),
	}
	if err := e.store.CreateIfNotExists(ctx, doc); err != nil {
		return nil, err
	}

	err := e.store.Apply(ctx, content.NewPatch(pinID).
		SetIfMissing("comments", []model.Ref{}).
		Append("comments", model.NewRef(doc.ID)))
	if err != nil {
		return nil, err
	}

	e.logger.Info("comment added", "pinId", pinID, "commentId", doc.ID)
	return e.store.Pin(ctx, pinID)
}

// DeleteComment unlinks the comment from the pin first, then deletes it —
// the mirror image of AddComment, so no window exists where the pin
// references a deleted comment.
func (e *Engine) DeleteComment(ctx context.Context, pinID, commentID string) error {
	if err := e.store.Apply(ctx, content.NewPatch(pinID).UnsetRef("comments", commentID)); err != nil {
		return err
	}
	if err := e.store.Delete(ctx, commentID); err != nil {
		return err
	}
	e.logger.Info("comment deleted", "pinId", pinID, "commentId", commentID)
	return nil
}
