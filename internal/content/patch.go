package content

// Patch is a buildable sequence of field-level operations against one
// document, mirroring the store's patch API: setIfMissing, append, set,
// and the three unset shapes the reference-repair workflows need.
//
// A Patch is pure data — building one performs no I/O. Mutator.Apply
// commits it in a single round trip. Methods return the receiver so call
// sites chain the way the store's own client does:
//
//	store.Apply(ctx, content.NewPatch(userID).
//		SetIfMissing("savedPins", []model.Ref{}).
//		Append("savedPins", model.NewRef(pinID)))
type Patch struct {
	DocumentID string
	Ops        []PatchOp
}

// OpKind discriminates PatchOp. The zero value is invalid.
type OpKind int

const (
	OpSetIfMissing OpKind = iota + 1
	OpAppend
	OpSet
	OpUnsetField
	OpUnsetRef
	OpUnsetAssetRef
)

// PatchOp is one operation within a patch.
//
//   - OpSetIfMissing: initialize Field to Value when absent
//   - OpAppend:       append Items to the array at Field
//   - OpSet:          overwrite Field with Value
//   - OpUnsetField:   remove Field entirely
//   - OpUnsetRef:     remove array elements whose _ref equals Match
//     (field[_ref == "…"])
//   - OpUnsetAssetRef: remove imageRef elements whose assetId equals Match
//     (field[assetId == "…"])
type PatchOp struct {
	Kind  OpKind
	Field string
	Value any
	Items []any
	Match string
}

// NewPatch starts a patch against the document with the given id.
func NewPatch(documentID string) *Patch {
	return &Patch{DocumentID: documentID}
}

func (p *Patch) SetIfMissing(field string, value any) *Patch {
	p.Ops = append(p.Ops, PatchOp{Kind: OpSetIfMissing, Field: field, Value: value})
	return p
}

func (p *Patch) Append(field string, items ...any) *Patch {
	p.Ops = append(p.Ops, PatchOp{Kind: OpAppend, Field: field, Items: items})
	return p
}

func (p *Patch) Set(field string, value any) *Patch {
	p.Ops = append(p.Ops, PatchOp{Kind: OpSet, Field: field, Value: value})
	return p
}

// Unset removes the whole field (used to drop a pin's comments array in one
// go before the comment documents themselves are deleted).
func (p *Patch) Unset(field string) *Patch {
	p.Ops = append(p.Ops, PatchOp{Kind: OpUnsetField, Field: field})
	return p
}

// UnsetRef removes every element of the reference array at field whose
// _ref equals ref. Removing a reference that is not present is a no-op —
// that natural idempotence is the only dedup the sync protocol relies on.
func (p *Patch) UnsetRef(field, ref string) *Patch {
	p.Ops = append(p.Ops, PatchOp{Kind: OpUnsetRef, Field: field, Match: ref})
	return p
}

// UnsetAssetRef removes every imageRef element at field whose assetId
// equals assetID.
func (p *Patch) UnsetAssetRef(field, assetID string) *Patch {
	p.Ops = append(p.Ops, PatchOp{Kind: OpUnsetAssetRef, Field: field, Match: assetID})
	return p
}
