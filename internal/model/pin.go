package model

import "time"

// Length limits enforced before any remote call (the store itself validates
// only in its editing UI, not on the API).
const (
	MaxTitleLength   = 50
	MaxAboutLength   = 500
	MaxCommentLength = 500
)

// Pin is the joined fetch shape of a pin document: author, categories,
// comments and savers are dereferenced into their projections, and the image
// reference is expanded to the full asset. This mirrors the projection every
// read query in the application uses, so the same struct serves list, detail
// and search results.
//
// On the raw document, Categories/Comments/SavedBy are reference arrays and
// PostedBy a single reference; mutations always address those raw fields
// through patches (see internal/content), never through this struct.
type Pin struct {
	ID         string        `json:"_id"`
	Title      string        `json:"title"`
	About      string        `json:"about"`
	Image      Image         `json:"image"`
	Categories []Category    `json:"categories"`
	PostedBy   *UserSummary  `json:"postedBy"`
	Comments   []Comment     `json:"comments"`
	SavedBy    []UserSummary `json:"savedBy"`
	CreatedAt  time.Time     `json:"_createdAt"`
}

// ImageAssetID returns the id of the pin's image asset.
// Every pin owns exactly one image asset; it is deleted with the pin.
func (p *Pin) ImageAssetID() string {
	return p.Image.Asset.ID
}

// SavedByUser reports whether the user with the given id appears in the
// pin's savedBy sequence.
func (p *Pin) SavedByUser(userID string) bool {
	for _, u := range p.SavedBy {
		if u.ID == userID {
			return true
		}
	}
	return false
}
