package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TagVote is one user's +1/-1 on one idea within one tag combination.
// Unique per (idea, tags_key, user): re-voting the same value toggles the
// record away, a different value overwrites it.
type TagVote struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	IdeaID string `gorm:"not null;uniqueIndex:idx_tag_votes_unique" json:"idea_id"`
	UserID string `gorm:"not null;uniqueIndex:idx_tag_votes_unique" json:"user_id"`

	Tags    []string `gorm:"type:jsonb;serializer:json" json:"tags"`
	TagsKey string   `gorm:"not null;uniqueIndex:idx_tag_votes_unique;index" json:"tags_key"`

	Vote int `gorm:"not null" json:"vote"` // 1 or -1

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (v *TagVote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	return nil
}
