package workflow

import "time"

// Meta holds the workflow-owned fields shared by every content kind.
type Meta struct {
	ID              string     `json:"id" bson:"_id"`
	Kind            string     `json:"kind" bson:"kind"`
	OwnerID         string     `json:"ownerId" bson:"ownerId"`
	Status          Status     `json:"status" bson:"status"`
	IsPublished     bool       `json:"isPublished" bson:"isPublished"`
	RejectionReason string     `json:"rejectionReason,omitempty" bson:"rejectionReason,omitempty"`
	ReviewerID      string     `json:"reviewerId,omitempty" bson:"reviewerId,omitempty"`
	ReviewedAt      *time.Time `json:"reviewedAt,omitempty" bson:"reviewedAt,omitempty"`
	SubmittedAt     *time.Time `json:"submittedAt,omitempty" bson:"submittedAt,omitempty"`
	PublishedAt     *time.Time `json:"publishedAt,omitempty" bson:"publishedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt" bson:"updatedAt"`
	Version         int64      `json:"version" bson:"version"`

	// Deleted is only set on the tombstone returned by a delete action.
	Deleted bool `json:"deleted,omitempty" bson:"-"`
}

// Item is a content item with a kind-specific payload the engine never inspects.
type Item[P any] struct {
	Meta    `bson:",inline"`
	Payload P `json:"payload" bson:"payload"`
}

// Header exposes the workflow fields without knowing the payload type.
func (i *Item[P]) Header() *Meta { return &i.Meta }

// Content is any item, whatever its payload.
type Content interface {
	Header() *Meta
}

// setStatus is the only place status changes; it keeps IsPublished and
// RejectionReason consistent with the new status.
func (m *Meta) setStatus(s Status, reason string) {
	m.Status = s
	m.IsPublished = s == StatusApproved
	if s == StatusRejected {
		m.RejectionReason = reason
	} else {
		m.RejectionReason = ""
	}
}

// Filter narrows list results. Zero values match everything.
type Filter struct {
	OwnerID string
	Status  Status
	Limit   int
	Offset  int
}

// Matches reports whether m passes the owner and status conditions.
func (f Filter) Matches(m *Meta) bool {
	if f.OwnerID != "" && m.OwnerID != f.OwnerID {
		return false
	}
	if f.Status != "" && m.Status != f.Status {
		return false
	}
	return true
}

func timePtr(t time.Time) *time.Time { return &t }
