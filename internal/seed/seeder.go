// Package seed populates the database with realistic development data.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/ideahub/backend/internal/leaderboard"
	"github.com/ideahub/backend/internal/logger"
	"github.com/ideahub/backend/internal/models"
	"github.com/ideahub/backend/internal/tags"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// tagPool is the vocabulary seeded ideas draw their tags from. Small on
// purpose so tag combinations overlap and leaderboards have content.
var tagPool = []string{
	"saas", "ai", "hardware", "food", "travel", "health",
	"education", "gaming", "climate", "fintech", "social", "devtools",
}

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db}
}

// SeedDev seeds the development database with realistic data.
func (s *Seeder) SeedDev() error {
	logger.Log.Info("Creating users...")
	users, err := s.seedUsers(50)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	logger.Log.Info("Creating ideas...")
	ideas, err := s.seedIdeas(users, 200)
	if err != nil {
		return fmt.Errorf("failed to seed ideas: %w", err)
	}

	logger.Log.Info("Creating votes...")
	if err := s.seedVotes(users, ideas, 800); err != nil {
		return fmt.Errorf("failed to seed votes: %w", err)
	}

	logger.Log.Info("Creating likes...")
	if err := s.seedLikes(users, ideas, 400); err != nil {
		return fmt.Errorf("failed to seed likes: %w", err)
	}

	logger.Log.Info("Building leaderboard snapshots...")
	return s.buildSnapshots()
}

// SeedTest seeds a minimal data set for integration testing.
func (s *Seeder) SeedTest() error {
	users, err := s.seedUsers(5)
	if err != nil {
		return err
	}
	ideas, err := s.seedIdeas(users, 10)
	if err != nil {
		return err
	}
	return s.seedVotes(users, ideas, 20)
}

// Clean removes all seeded data.
func (s *Seeder) Clean() error {
	for _, model := range []interface{}{
		&models.TagLeaderboard{},
		&models.TagVote{},
		&models.AiJob{},
		&models.Like{},
		&models.IdeaTag{},
		&models.Idea{},
		&models.User{},
	} {
		if err := s.db.Unscoped().Where("1 = 1").Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedUsers(count int) ([]models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	password := string(hash)

	users := make([]models.User, 0, count)
	for i := 0; i < count; i++ {
		user := models.User{
			Email:        fmt.Sprintf("%d.%s", i, gofakeit.Email()),
			Username:     fmt.Sprintf("%s%d", strings.ToLower(gofakeit.Username()), i),
			DisplayName:  gofakeit.Name(),
			Bio:          gofakeit.Sentence(10),
			PasswordHash: &password,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Seeder) seedIdeas(users []models.User, count int) ([]models.Idea, error) {
	ideas := make([]models.Idea, 0, count)
	for i := 0; i < count; i++ {
		author := users[rand.Intn(len(users))]

		n := 1 + rand.Intn(3)
		picked := make([]string, 0, n)
		for _, j := range rand.Perm(len(tagPool))[:n] {
			picked = append(picked, tagPool[j])
		}
		normalized := tags.Normalize(picked)

		idea := models.Idea{
			AuthorID:  author.ID,
			Title:     gofakeit.ProductName(),
			Summary:   gofakeit.Sentence(12),
			Content:   gofakeit.Paragraph(3, 4, 12, "\n\n"),
			Tags:      normalized,
			ViewCount: rand.Intn(2000),
		}
		if err := s.db.Create(&idea).Error; err != nil {
			return nil, err
		}
		for _, tag := range normalized {
			if err := s.db.Create(&models.IdeaTag{IdeaID: idea.ID, Tag: tag}).Error; err != nil {
				return nil, err
			}
		}
		ideas = append(ideas, idea)
	}
	return ideas, nil
}

func (s *Seeder) seedVotes(users []models.User, ideas []models.Idea, count int) error {
	seen := make(map[string]struct{})
	for i := 0; i < count; i++ {
		user := users[rand.Intn(len(users))]
		idea := ideas[rand.Intn(len(ideas))]
		if len(idea.Tags) == 0 {
			continue
		}

		// Vote within a sub-combination of the idea's own tags so boards overlap.
		n := 1 + rand.Intn(len(idea.Tags))
		subset := make([]string, 0, n)
		for _, j := range rand.Perm(len(idea.Tags))[:n] {
			subset = append(subset, idea.Tags[j])
		}
		normalized := tags.Normalize(subset)
		key := tags.Key(normalized)

		dedupe := idea.ID + "/" + user.ID + "/" + key
		if _, ok := seen[dedupe]; ok {
			continue
		}
		seen[dedupe] = struct{}{}

		vote := 1
		if rand.Intn(4) == 0 {
			vote = -1
		}
		err := s.db.Create(&models.TagVote{
			IdeaID:  idea.ID,
			UserID:  user.ID,
			Tags:    normalized,
			TagsKey: key,
			Vote:    vote,
		}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedLikes(users []models.User, ideas []models.Idea, count int) error {
	seen := make(map[string]struct{})
	for i := 0; i < count; i++ {
		user := users[rand.Intn(len(users))]
		idea := ideas[rand.Intn(len(ideas))]

		dedupe := idea.ID + "/" + user.ID
		if _, ok := seen[dedupe]; ok {
			continue
		}
		seen[dedupe] = struct{}{}

		if err := s.db.Create(&models.Like{IdeaID: idea.ID, UserID: user.ID}).Error; err != nil {
			return err
		}
		if err := s.db.Model(&models.Idea{}).Where("id = ?", idea.ID).
			Update("like_count", gorm.Expr("like_count + 1")).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) buildSnapshots() error {
	svc := leaderboard.NewService(s.db, leaderboard.NewCache(time.Second))
	rebuilt, err := svc.RebuildAll(context.Background(), 0)
	if err != nil {
		return err
	}
	logger.Log.Info(fmt.Sprintf("Built %d leaderboard snapshot(s)", rebuilt))
	return nil
}
