package model

// Raw wire shapes used when CREATING documents. Reads come back joined
// (Pin, Comment with dereferenced authors); writes go out with weak
// references only. Keeping the two shapes as separate types makes it
// impossible to accidentally write an embedded copy of a referenced
// document into the store.

// Document type tags as the store knows them.
const (
	TypeUser     = "user"
	TypePin      = "pin"
	TypeCategory = "category"
	TypeComment  = "comment"
	TypeImage    = "image"
)

// ImageValue is the raw image field: a type tag plus a reference to the
// uploaded asset.
type ImageValue struct {
	Type  string `json:"_type"`
	Asset Ref    `json:"asset"`
}

// NewImageValue builds the image field pointing at the asset with the
// given id.
func NewImageValue(assetID string) ImageValue {
	return ImageValue{Type: TypeImage, Asset: NewRef(assetID)}
}

// UserDoc is the create shape of a user document.
type UserDoc struct {
	ID        string      `json:"_id"`
	Type      string      `json:"_type"`
	Email     string      `json:"email"`
	Username  string      `json:"username"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Photo     *ImageValue `json:"photo,omitempty"`

	SavedPins   []Ref `json:"savedPins"`
	CreatedPins []Ref `json:"createdPins"`
}

// PinDoc is the create shape of a pin document.
type PinDoc struct {
	ID         string     `json:"_id"`
	Type       string     `json:"_type"`
	Title      string     `json:"title"`
	About      string     `json:"about"`
	Image      ImageValue `json:"image"`
	Categories []Ref      `json:"categories,omitempty"`
	PostedBy   Ref        `json:"postedBy"`
	Comments   []Ref      `json:"comments,omitempty"`
	SavedBy    []Ref      `json:"savedBy,omitempty"`
}

// CommentDoc is the create shape of a comment document.
type CommentDoc struct {
	ID       string `json:"_id"`
	Type     string `json:"_type"`
	Text     string `json:"comment"`
	PostedBy Ref    `json:"postedBy"`
}

// CategoryDoc is the create shape of a category document.
type CategoryDoc struct {
	ID        string     `json:"_id"`
	Type      string     `json:"_type"`
	Name      string     `json:"name"`
	ImageRefs []ImageRef `json:"imageRefs"`
}
