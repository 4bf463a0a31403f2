package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Idea visibility states. Voting and leaderboards only ever see public ideas.
const (
	VisibilityPublic   = "public"
	VisibilityPrivate  = "private"
	VisibilityUnlisted = "unlisted"
)

// AIReview holds the persisted result of an AI review, embedded on the idea.
type AIReview struct {
	FeasibilityScore     int       `json:"feasibility_score"`
	ProfitPotentialScore int       `json:"profit_potential_score"`
	AnalysisText         string    `json:"analysis_text"`
	Model                string    `json:"model"`
	CreatedAt            time.Time `json:"created_at"`
}

// Idea represents a shared idea with engagement counters
type Idea struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	AuthorID string `gorm:"not null;index" json:"author_id"`
	Author   User   `gorm:"foreignKey:AuthorID" json:"author,omitempty"`

	Title   string `gorm:"not null" json:"title"`
	Summary string `gorm:"type:text" json:"summary"`
	Content string `gorm:"type:text" json:"content"`

	Tags       []string `gorm:"type:jsonb;serializer:json" json:"tags"`
	Visibility string   `gorm:"default:public;index" json:"visibility"`

	// Engagement counters. Cached values driving the cold-start leaderboard
	// fallback; the Like table is the source of truth for like_count.
	ViewCount int `gorm:"default:0" json:"view_count"`
	LikeCount int `gorm:"default:0" json:"like_count"`

	AIReview *AIReview `gorm:"type:jsonb;serializer:json" json:"ai_review,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (i *Idea) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}

// IdeaTag is one row per (idea, normalized tag), maintained alongside
// Idea.Tags so tag-match queries stay relational.
type IdeaTag struct {
	ID     uint   `gorm:"primaryKey" json:"-"`
	IdeaID string `gorm:"not null;uniqueIndex:idx_idea_tags_unique" json:"idea_id"`
	Tag    string `gorm:"not null;uniqueIndex:idx_idea_tags_unique;index" json:"tag"`
}

// Like is one row per (idea, user); deleting it is an unlike.
type Like struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	IdeaID string `gorm:"not null;uniqueIndex:idx_likes_unique" json:"idea_id"`
	UserID string `gorm:"not null;uniqueIndex:idx_likes_unique" json:"user_id"`

	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (l *Like) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}
