package model

// User is a user document as stored in the content store.
//
// SavedPins and CreatedPins are ordered sequences of weak pin references —
// the store has no foreign keys, so every one of these links is maintained by
// hand (see internal/engine). Username uniqueness is enforced at the
// application layer before write: a check-then-write, so two concurrent
// sign-ups racing on the same name can both pass the check. Acknowledged
// weakness, not remedied here.
//
// WHY Photo *Image (a pointer)?
// A user may have no photo at all. The zero Image would be indistinguishable
// from "a photo whose asset we haven't joined yet", so nil means "no photo".
// The photo's asset is exclusively owned by this user and is deleted with
// the account.
type User struct {
	ID        string `json:"_id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Photo     *Image `json:"photo,omitempty"`

	SavedPins   []Ref `json:"savedPins"`
	CreatedPins []Ref `json:"createdPins"`
}

// PhotoAssetID returns the id of the user's photo asset, or "" if the user
// has no photo.
func (u *User) PhotoAssetID() string {
	if u == nil || u.Photo == nil {
		return ""
	}
	return u.Photo.Asset.ID
}

// UserSummary is the joined ("dereferenced") projection of a user embedded in
// pins and comments: enough to render an author, nothing more.
type UserSummary struct {
	ID        string `json:"_id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Photo     *Image `json:"photo,omitempty"`
}
