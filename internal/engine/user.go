package engine

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/rs/xid"

	"github.com/elizaveta-sm/pin-it-up/internal/apperror"
	"github.com/elizaveta-sm/pin-it-up/internal/content"
	"github.com/elizaveta-sm/pin-it-up/internal/model"
)

// CreateUserInput carries a new user's profile. Username may be empty, in
// which case one is derived from DisplayName. Photo, when present, is
// imported as the user's profile image (the OAuth flow passes the
// provider's picture through here).
type CreateUserInput struct {
	Email         string
	Username      string
	DisplayName   string
	Photo         io.Reader
	PhotoFilename string
}

var usernameRe = regexp.MustCompile(`^[a-zA-Z]+(-[a-zA-Z]+)*$`)

// CreateUser creates the user document. CreateIfNotExists keeps a retried
// sign-up from failing on its own half-finished first attempt.
func (e *Engine) CreateUser(ctx context.Context, in CreateUserInput) (*model.User, error) {
	if in.Email == "" {
		return nil, apperror.ValidationFailed("email", "Email is required.")
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		var err error
		username, err = e.deriveUsername(ctx, in.DisplayName)
		if err != nil {
			return nil, err
		}
	} else if !usernameRe.MatchString(username) {
		return nil, apperror.ValidationFailed("username", "Usernames are letters separated by single hyphens.")
	}

	firstName, lastName := splitDisplayName(in.DisplayName)
	if firstName == "" {
		firstName, lastName = splitDisplayName(usernameToDisplayName(username))
	}

	doc := model.UserDoc{
		ID:          xid.New().String(),
		Type:        model.TypeUser,
		Email:       in.Email,
		Username:    username,
		FirstName:   firstName,
		LastName:    lastName,
		SavedPins:   []model.Ref{},
		CreatedPins: []model.Ref{},
	}
	if in.Photo != nil {
		asset, err := e.store.UploadImage(ctx, in.Photo, in.PhotoFilename)
		if err != nil {
			return nil, err
		}
		photo := model.NewImageValue(asset.ID)
		doc.Photo = &photo
	}
	if err := e.store.CreateIfNotExists(ctx, doc); err != nil {
		return nil, err
	}

	e.logger.Info("user created", "userId", doc.ID, "username", username)
	return e.store.User(ctx, doc.ID)
}

// deriveUsername hyphenates the display name and appends a random suffix
// until no existing user holds it.
func (e *Engine) deriveUsername(ctx context.Context, displayName string) (string, error) {
	base := strings.ToLower(strings.Join(strings.Fields(strings.TrimSpace(displayName)), "-"))
	if base == "" {
		return "", apperror.ValidationFailed("username", "A username or display name is required.")
	}

	username := base
	for {
		_, err := e.store.UserByUsername(ctx, username)
		if errors.Is(err, apperror.ErrNotFound) {
			return username, nil
		}
		if err != nil {
			return "", err
		}
		// the tail of an xid carries the counter, so back-to-back
		// retries still get distinct suffixes
		suffix := xid.New().String()
		username = base + "-" + suffix[len(suffix)-4:]
	}
}

func splitDisplayName(displayName string) (first, last string) {
	parts := strings.Fields(strings.TrimSpace(displayName))
	switch {
	case len(parts) == 0:
		return "", ""
	case len(parts) == 1:
		return parts[0], ""
	default:
		return parts[0], parts[1]
	}
}

// usernameToDisplayName reverses the hyphenation: each part capitalized,
// joined with spaces.
func usernameToDisplayName(username string) string {
	parts := strings.Split(username, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// UpdateProfileInput is a partial profile update; empty fields are left
// unchanged.
type UpdateProfileInput struct {
	Username  string
	FirstName string
	LastName  string
}

// UpdateProfile applies a check-then-write profile edit. A username
// change verifies availability first; the window between check and write
// is accepted (the store has no compare-and-swap).
func (e *Engine) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*model.User, error) {
	current, err := e.store.User(ctx, userID)
	if err != nil {
		return nil, err
	}

	p := content.NewPatch(userID)
	dirty := false

	if in.Username != "" && in.Username != current.Username {
		if !usernameRe.MatchString(in.Username) {
			return nil, apperror.ValidationFailed("username", "Usernames are letters separated by single hyphens.")
		}
		if _, err := e.store.UserByUsername(ctx, in.Username); err == nil {
			return nil, &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: "This username is already taken.",
				Field:   "username",
			}
		} else if !errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		p.Set("username", in.Username)
		dirty = true
	}
	if in.FirstName != "" && in.FirstName != current.FirstName {
		p.Set("firstName", in.FirstName)
		dirty = true
	}
	if in.LastName != "" && in.LastName != current.LastName {
		p.Set("lastName", in.LastName)
		dirty = true
	}

	if dirty {
		if err := e.store.Apply(ctx, p); err != nil {
			return nil, err
		}
	}
	return e.store.User(ctx, userID)
}

// DeleteUserAccount erases a user whose pins are already gone (the caller
// deletes those with DeletePin first). Steps, strictly ordered:
//
//	1. unlink the user from the savedBy array of every pin they saved
//	2. delete every comment the user authored, unlinking each from its
//	   pin first
//	3. delete the user document
//	4. delete the user's photo asset
//	5. delete the identity record
//
// The identity goes last: until everything else succeeded the user can
// still sign in and rerun the deletion.
func (e *Engine) DeleteUserAccount(ctx context.Context, user *model.User) error {
	if user == nil || user.ID == "" {
		return apperror.ValidationFailed("user", "There's no current user present.")
	}
	log := e.logger.With("userId", user.ID)

	// step 1: savedBy sweep over the pins this user saved
	for _, ref := range user.SavedPins {
		if ref.Ref == "" {
			continue
		}
		if err := e.store.Apply(ctx, content.NewPatch(ref.Ref).UnsetRef("savedBy", user.ID)); err != nil {
			return err
		}
	}

	// step 2: authored comments, found by reverse lookup
	commentIDs, err := e.store.CommentIDsByAuthor(ctx, user.ID)
	if err != nil {
		return err
	}
	for _, commentID := range commentIDs {
		pinIDs, err := e.store.PinIDsWithComment(ctx, commentID)
		if err != nil {
			return err
		}
		for _, pinID := range pinIDs {
			if err := e.store.Apply(ctx, content.NewPatch(pinID).UnsetRef("comments", commentID)); err != nil {
				return err
			}
		}
		if err := e.store.Delete(ctx, commentID); err != nil {
			return err
		}
	}
	log.Debug("deleted authored comments", "count", len(commentIDs))

	// step 3: the user document
	if err := e.store.Delete(ctx, user.ID); err != nil {
		return err
	}

	// step 4: the photo asset
	if photoID := user.PhotoAssetID(); photoID != "" {
		if err := e.store.Delete(ctx, photoID); err != nil {
			return err
		}
	}

	// step 5: the identity record, last
	if err := e.identity.Delete(ctx, user.ID); err != nil {
		return err
	}

	log.Info("account deleted")
	return nil
}
