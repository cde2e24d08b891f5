package model

import "time"

// Comment is a comment document. It is owned by exactly one pin through a
// reference stored in that pin's comments sequence — the comment itself has
// no back-pointer to its pin, so finding "which pin owns comment X" takes a
// reverse query over pins (see Querier.PinIDsWithComment).
type Comment struct {
	ID        string       `json:"_id"`
	Text      string       `json:"comment"`
	PostedBy  *UserSummary `json:"postedBy"`
	CreatedAt time.Time    `json:"_createdAt"`
}
