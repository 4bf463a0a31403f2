package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LeaderboardEntry is one ranked idea inside a persisted snapshot.
type LeaderboardEntry struct {
	IdeaID string `json:"idea_id"`
	Score  int    `json:"score"`
	Votes  int    `json:"votes"`
}

// TagLeaderboard is a persisted, pre-sorted ranking for one tagsKey.
// Derived data: it can be deleted and rebuilt from TagVote aggregation
// (or the popularity fallback) at any time.
type TagLeaderboard struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	TagsKey string `gorm:"uniqueIndex;not null" json:"tags_key"`

	Tags    []string           `gorm:"type:jsonb;serializer:json" json:"tags"`
	Entries []LeaderboardEntry `gorm:"type:jsonb;serializer:json" json:"entries"`

	ComputedAt time.Time `json:"computed_at"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (b *TagLeaderboard) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}
