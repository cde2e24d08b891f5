package model

// Category is a folk-taxonomy tag. Name is free text acting as a natural key
// for merge-on-create: pin creation looks a category up by exact name (after
// a trim — the match is deliberately NOT case-folded, matching the observed
// behavior of the original system) and either appends an image reference or
// creates a new category document.
//
// ImageRefs holds one entry per pin that tagged this category, each carrying
// the pin's image asset id. The sequence doubles as the category's liveness
// count: when the last entry is removed the category is orphaned and deleted.
type Category struct {
	ID        string     `json:"_id"`
	Name      string     `json:"name"`
	ImageRefs []ImageRef `json:"imageRefs"`
}
