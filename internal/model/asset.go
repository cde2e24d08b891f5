// Package model defines the document shapes stored in the remote content store.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
//
// The JSON tags keep the content store's wire names (_id, _type, _ref, _key,
// _createdAt), so decoding a store response into these structs needs no mapping
// layer. References between documents are weak: a Ref stores an id and a type tag,
// never an embedded copy of the target.
package model

// Asset is an externally managed image binary plus its derived URL.
// Every asset is owned by exactly one document — a pin's image or a user's
// photo — and is deleted together with its owner.
type Asset struct {
	ID  string `json:"_id"`
	URL string `json:"url"`
}

// Image wraps an asset the way the store nests it inside pin and user documents.
// On a raw document the asset carries only a reference; joined fetches expand it
// to the full Asset (id + url).
type Image struct {
	Asset Asset `json:"asset"`
}

// Ref is a weak reference to another document.
// Type is always "reference" on the wire. Key is the array key the store
// assigns to elements of reference arrays.
type Ref struct {
	Ref  string `json:"_ref"`
	Type string `json:"_type,omitempty"`
	Key  string `json:"_key,omitempty"`
}

// NewRef builds a reference to the document with the given id.
func NewRef(id string) Ref {
	return Ref{Ref: id, Type: "reference"}
}

// ImageRef is the entry categories keep per contributing pin: just the id of
// the pin's image asset. A category whose ImageRefs sequence is empty is
// orphaned and eligible for deletion.
type ImageRef struct {
	AssetID string `json:"assetId"`
	Key     string `json:"_key,omitempty"`
}
