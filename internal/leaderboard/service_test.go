package leaderboard

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ideahub/backend/internal/database"
	apperrors "github.com/ideahub/backend/internal/errors"
	"github.com/ideahub/backend/internal/logger"
	"github.com/ideahub/backend/internal/models"
	"github.com/ideahub/backend/internal/tags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var userSeq int

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	logger.InitializeForTests()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.MigrateForTests(db))

	return NewService(db, NewCache(time.Minute)), db
}

func createUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	userSeq++
	u := &models.User{
		Email:    fmt.Sprintf("user%d@example.com", userSeq),
		Username: fmt.Sprintf("user%d", userSeq),
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func createIdea(t *testing.T, db *gorm.DB, authorID string, tagList []string, views int) *models.Idea {
	t.Helper()
	normalized := tags.Normalize(tagList)
	idea := &models.Idea{
		AuthorID:  authorID,
		Title:     "idea",
		Tags:      normalized,
		ViewCount: views,
	}
	require.NoError(t, db.Create(idea).Error)
	for _, tag := range normalized {
		require.NoError(t, db.Create(&models.IdeaTag{IdeaID: idea.ID, Tag: tag}).Error)
	}
	return idea
}

func TestCastVoteCreatesRecord(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	user := createUser(t, db)
	idea := createIdea(t, db, user.ID, []string{"go", "web"}, 0)

	res, err := svc.CastVote(ctx, idea.ID, user.ID, []string{"Web", " go "}, 1)
	require.NoError(t, err)
	assert.Equal(t, ActionCast, res.Action)
	assert.Equal(t, 1, res.Vote)
	assert.Equal(t, "go|web", res.TagsKey)
	assert.Equal(t, 1, res.Score)
	assert.Equal(t, 1, res.Votes)
}

func TestCastVoteToggleRemovesRecord(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	user := createUser(t, db)
	idea := createIdea(t, db, user.ID, []string{"go"}, 0)

	_, err := svc.CastVote(ctx, idea.ID, user.ID, []string{"go"}, 1)
	require.NoError(t, err)

	res, err := svc.CastVote(ctx, idea.ID, user.ID, []string{"go"}, 1)
	require.NoError(t, err)
	assert.Equal(t, ActionToggleOff, res.Action)
	assert.Equal(t, 0, res.Vote)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, 0, res.Votes)

	var count int64
	require.NoError(t, db.Model(&models.TagVote{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestCastVoteSwitchOverwrites(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	user := createUser(t, db)
	idea := createIdea(t, db, user.ID, []string{"go"}, 0)

	_, err := svc.CastVote(ctx, idea.ID, user.ID, []string{"go"}, 1)
	require.NoError(t, err)

	res, err := svc.CastVote(ctx, idea.ID, user.ID, []string{"go"}, -1)
	require.NoError(t, err)
	assert.Equal(t, ActionSwitch, res.Action)
	assert.Equal(t, -1, res.Vote)
	assert.Equal(t, -1, res.Score)
	assert.Equal(t, 1, res.Votes)

	var count int64
	require.NoError(t, db.Model(&models.TagVote{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCastVoteRejectsBadValue(t *testing.T) {
	svc, db := newTestService(t)
	user := createUser(t, db)
	idea := createIdea(t, db, user.ID, []string{"go"}, 0)

	for _, v := range []int{0, 2, -2, 100} {
		_, err := svc.CastVote(context.Background(), idea.ID, user.ID, []string{"go"}, v)
		require.Error(t, err)
		apiErr, ok := err.(*apperrors.APIError)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrValidation, apiErr.Code)
	}
}

func TestCastVoteMissingIdea(t *testing.T) {
	svc, db := newTestService(t)
	user := createUser(t, db)

	_, err := svc.CastVote(context.Background(), "no-such-idea", user.ID, []string{"go"}, 1)
	require.Error(t, err)
	apiErr, ok := err.(*apperrors.APIError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrNotFound, apiErr.Code)
}

func TestCastVotePrivateIdeaRejected(t *testing.T) {
	svc, db := newTestService(t)
	user := createUser(t, db)
	idea := createIdea(t, db, user.ID, []string{"go"}, 0)
	require.NoError(t, db.Model(&models.Idea{}).Where("id = ?", idea.ID).
		Update("visibility", models.VisibilityPrivate).Error)

	_, err := svc.CastVote(context.Background(), idea.ID, user.ID, []string{"go"}, 1)
	require.Error(t, err)
	apiErr, ok := err.(*apperrors.APIError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrForbidden, apiErr.Code)
}

func TestVotesInDifferentCombinationsAreIndependent(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	user := createUser(t, db)
	idea := createIdea(t, db, user.ID, []string{"go", "web"}, 0)

	_, err := svc.CastVote(ctx, idea.ID, user.ID, []string{"go"}, 1)
	require.NoError(t, err)
	_, err = svc.CastVote(ctx, idea.ID, user.ID, []string{"go", "web"}, -1)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.TagVote{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestGetRankedOrdersByScore(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	voters := make([]*models.User, 3)
	for i := range voters {
		voters[i] = createUser(t, db)
	}
	low := createIdea(t, db, voters[0].ID, []string{"go"}, 0)
	high := createIdea(t, db, voters[0].ID, []string{"go"}, 0)

	for _, v := range voters {
		_, err := svc.CastVote(ctx, high.ID, v.ID, []string{"go"}, 1)
		require.NoError(t, err)
	}
	_, err := svc.CastVote(ctx, low.ID, voters[0].ID, []string{"go"}, 1)
	require.NoError(t, err)

	ranked, total, err := svc.GetRanked(ctx, []string{"go"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, ranked, 2)
	assert.Equal(t, high.ID, ranked[0].Idea.ID)
	assert.Equal(t, 3, ranked[0].Score)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, low.ID, ranked[1].Idea.ID)
	assert.Equal(t, 2, ranked[1].Rank)
}

func TestGetRankedKeyIsOrderAndCaseInsensitive(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	user := createUser(t, db)
	idea := createIdea(t, db, user.ID, []string{"go", "web"}, 0)

	_, err := svc.CastVote(ctx, idea.ID, user.ID, []string{"go", "web"}, 1)
	require.NoError(t, err)

	ranked, _, err := svc.GetRanked(ctx, []string{"Web", " GO "}, 1, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, idea.ID, ranked[0].Idea.ID)
}

func TestGetRankedServesFromCache(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	user := createUser(t, db)
	idea := createIdea(t, db, user.ID, []string{"go"}, 0)

	_, err := svc.CastVote(ctx, idea.ID, user.ID, []string{"go"}, 1)
	require.NoError(t, err)

	first, _, err := svc.GetRanked(ctx, []string{"go"}, 1, 10)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Mutate underneath the cache; the cached ranking must not notice.
	require.NoError(t, db.Delete(&models.TagVote{}, "idea_id = ?", idea.ID).Error)

	second, _, err := svc.GetRanked(ctx, []string{"go"}, 1, 10)
	require.NoError(t, err)
	assert.Len(t, second, 1)
}

func TestCastVoteInvalidatesCacheAndSnapshot(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	user := createUser(t, db)
	other := createUser(t, db)
	idea := createIdea(t, db, user.ID, []string{"go"}, 0)

	_, err := svc.CastVote(ctx, idea.ID, user.ID, []string{"go"}, 1)
	require.NoError(t, err)
	_, err = svc.BuildSnapshot(ctx, []string{"go"}, 0)
	require.NoError(t, err)

	// Warm the cache, then vote again.
	_, _, err = svc.GetRanked(ctx, []string{"go"}, 1, 10)
	require.NoError(t, err)

	_, err = svc.CastVote(ctx, idea.ID, other.ID, []string{"go"}, 1)
	require.NoError(t, err)

	var snapshots int64
	require.NoError(t, db.Model(&models.TagLeaderboard{}).Count(&snapshots).Error)
	assert.Equal(t, int64(0), snapshots)

	ranked, _, err := svc.GetRanked(ctx, []string{"go"}, 1, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, 2, ranked[0].Score)
}

func TestGetRankedPrefersSnapshot(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	user := createUser(t, db)
	a := createIdea(t, db, user.ID, []string{"go"}, 0)
	b := createIdea(t, db, user.ID, []string{"go"}, 0)

	// Snapshot says b outranks a, live votes say otherwise. The snapshot
	// wins until it is invalidated.
	require.NoError(t, db.Create(&models.TagLeaderboard{
		TagsKey: "go",
		Tags:    []string{"go"},
		Entries: []models.LeaderboardEntry{
			{IdeaID: b.ID, Score: 9, Votes: 9},
			{IdeaID: a.ID, Score: 1, Votes: 1},
		},
		ComputedAt: time.Now(),
	}).Error)
	require.NoError(t, db.Create(&models.TagVote{
		IdeaID: a.ID, UserID: user.ID, Tags: []string{"go"}, TagsKey: "go", Vote: 1,
	}).Error)

	ranked, _, err := svc.GetRanked(ctx, []string{"go"}, 1, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, b.ID, ranked[0].Idea.ID)
	assert.Equal(t, 9, ranked[0].Score)
}

func TestSnapshotWrittenByAnotherProcessSupersedesCache(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	user := createUser(t, db)
	voted := createIdea(t, db, user.ID, []string{"go"}, 0)
	other := createIdea(t, db, user.ID, []string{"go"}, 0)

	_, err := svc.CastVote(ctx, voted.ID, user.ID, []string{"go"}, 1)
	require.NoError(t, err)

	// Warm the cache through the live-aggregation path.
	warm, _, err := svc.GetRanked(ctx, []string{"go"}, 1, 10)
	require.NoError(t, err)
	require.Len(t, warm, 1)

	// An external rebuild (CLI, cron) persists a snapshot directly, without
	// going through this service instance.
	require.NoError(t, db.Create(&models.TagLeaderboard{
		TagsKey: "go",
		Tags:    []string{"go"},
		Entries: []models.LeaderboardEntry{
			{IdeaID: other.ID, Score: 7, Votes: 7},
			{IdeaID: voted.ID, Score: 1, Votes: 1},
		},
		ComputedAt: time.Now(),
	}).Error)

	ranked, total, err := svc.GetRanked(ctx, []string{"go"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, ranked, 2)
	assert.Equal(t, other.ID, ranked[0].Idea.ID)
	assert.Equal(t, 7, ranked[0].Score)
}

func TestGetRankedDropsGhostEntries(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	user := createUser(t, db)
	kept := createIdea(t, db, user.ID, []string{"go"}, 0)
	gone := createIdea(t, db, user.ID, []string{"go"}, 0)

	require.NoError(t, db.Create(&models.TagLeaderboard{
		TagsKey: "go",
		Tags:    []string{"go"},
		Entries: []models.LeaderboardEntry{
			{IdeaID: gone.ID, Score: 5, Votes: 5},
			{IdeaID: kept.ID, Score: 2, Votes: 2},
		},
		ComputedAt: time.Now(),
	}).Error)
	require.NoError(t, db.Delete(&models.Idea{}, "id = ?", gone.ID).Error)

	ranked, total, err := svc.GetRanked(ctx, []string{"go"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, ranked, 1)
	assert.Equal(t, kept.ID, ranked[0].Idea.ID)
	assert.Equal(t, 1, ranked[0].Rank)
}

func TestGetRankedPaging(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	user := createUser(t, db)

	entries := make([]models.LeaderboardEntry, 0, 5)
	for i := 0; i < 5; i++ {
		idea := createIdea(t, db, user.ID, []string{"go"}, 0)
		entries = append(entries, models.LeaderboardEntry{IdeaID: idea.ID, Score: 5 - i, Votes: 5 - i})
	}
	require.NoError(t, db.Create(&models.TagLeaderboard{
		TagsKey: "go", Tags: []string{"go"}, Entries: entries, ComputedAt: time.Now(),
	}).Error)

	page2, total, err := svc.GetRanked(ctx, []string{"go"}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page2, 2)
	assert.Equal(t, 3, page2[0].Rank)

	beyond, total, err := svc.GetRanked(ctx, []string{"go"}, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, beyond)
}

func TestBuildSnapshotPopularityFallback(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	user := createUser(t, db)

	popular := createIdea(t, db, user.ID, []string{"go", "web"}, 500)
	quiet := createIdea(t, db, user.ID, []string{"go", "web"}, 10)
	createIdea(t, db, user.ID, []string{"go"}, 900) // missing "web", must not match

	snapshot, err := svc.BuildSnapshot(ctx, []string{"web", "go"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "go|web", snapshot.TagsKey)
	require.Len(t, snapshot.Entries, 2)
	assert.Equal(t, popular.ID, snapshot.Entries[0].IdeaID)
	assert.Equal(t, 0, snapshot.Entries[0].Score)
	assert.Equal(t, quiet.ID, snapshot.Entries[1].IdeaID)

	ranked, _, err := svc.GetRanked(ctx, []string{"go", "web"}, 1, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, popular.ID, ranked[0].Idea.ID)
}

func TestBuildSnapshotUpserts(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	user := createUser(t, db)
	idea := createIdea(t, db, user.ID, []string{"go"}, 0)

	_, err := svc.BuildSnapshot(ctx, []string{"go"}, 0)
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.TagVote{
		IdeaID: idea.ID, UserID: user.ID, Tags: []string{"go"}, TagsKey: "go", Vote: 1,
	}).Error)
	second, err := svc.BuildSnapshot(ctx, []string{"go"}, 0)
	require.NoError(t, err)
	require.Len(t, second.Entries, 1)
	assert.Equal(t, 1, second.Entries[0].Score)

	var count int64
	require.NoError(t, db.Model(&models.TagLeaderboard{}).Where("tags_key = ?", "go").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRebuildAll(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	user := createUser(t, db)
	idea := createIdea(t, db, user.ID, []string{"go", "web"}, 0)

	_, err := svc.CastVote(ctx, idea.ID, user.ID, []string{"go"}, 1)
	require.NoError(t, err)
	_, err = svc.CastVote(ctx, idea.ID, user.ID, []string{"go", "web"}, 1)
	require.NoError(t, err)

	rebuilt, err := svc.RebuildAll(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, rebuilt)

	var count int64
	require.NoError(t, db.Model(&models.TagLeaderboard{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestSuggestTags(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	user := createUser(t, db)

	createIdea(t, db, user.ID, []string{"golang", "web"}, 0)
	createIdea(t, db, user.ID, []string{"golang", "gopher"}, 0)
	createIdea(t, db, user.ID, []string{"rust"}, 0)

	suggestions, err := svc.SuggestTags(ctx, "go", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"golang", "gopher"}, suggestions)
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	c.Set("k", []RankedIdea{{Rank: 1}})

	_, ok := c.Get("k")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}
