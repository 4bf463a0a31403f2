package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ideahub/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the database connection
var DB *gorm.DB

// Initialize creates and configures the database connection
func Initialize() error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		// Fallback to individual components
		host := getEnvOrDefault("DB_HOST", "localhost")
		port := getEnvOrDefault("DB_PORT", "5432")
		user := getEnvOrDefault("DB_USER", "postgres")
		password := getEnvOrDefault("DB_PASSWORD", "")
		dbname := getEnvOrDefault("DB_NAME", "ideahub")
		sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

		databaseURL = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}

	gormLogger := logger.Default
	if os.Getenv("ENVIRONMENT") == "development" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		// Duplicate-key errors must surface as gorm.ErrDuplicatedKey so the
		// vote and job stores can resolve insert races idempotently.
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	DB = db
	log.Println("Database connected successfully")

	return nil
}

// Migrate runs auto-migration for all models
func Migrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	err := DB.AutoMigrate(
		&models.User{},
		&models.Idea{},
		&models.IdeaTag{},
		&models.Like{},
		&models.AiJob{},
		&models.TagVote{},
		&models.TagLeaderboard{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(DB); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed")
	return nil
}

// createIndexes creates indexes AutoMigrate cannot express.
func createIndexes(db *gorm.DB) error {
	// At most one in-flight review job per idea. Submissions racing on the
	// same idea collide here and are resolved as "reuse the existing job".
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_ai_jobs_one_in_flight
		ON ai_jobs (idea_id) WHERE status IN ('pending','running')`).Error; err != nil {
		return err
	}

	// Worker claim scan: oldest eligible pending job first.
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_ai_jobs_claim
		ON ai_jobs (created_at) WHERE status = 'pending'`).Error; err != nil {
		return err
	}

	// Vote aggregation per tag combination.
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_tag_votes_key_idea
		ON tag_votes (tags_key, idea_id)`).Error
}

// MigrateForTests runs migrations against an arbitrary (usually in-memory
// sqlite) database handle. The index SQL above is portable.
func MigrateForTests(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Idea{},
		&models.IdeaTag{},
		&models.Like{},
		&models.AiJob{},
		&models.TagVote{},
		&models.TagLeaderboard{},
	); err != nil {
		return err
	}
	return createIndexes(db)
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Health checks database connectivity
func Health() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}

// getEnvOrDefault returns environment variable or default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
