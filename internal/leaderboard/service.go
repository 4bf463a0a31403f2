package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/ideahub/backend/internal/errors"
	"github.com/ideahub/backend/internal/logger"
	"github.com/ideahub/backend/internal/metrics"
	"github.com/ideahub/backend/internal/models"
	"github.com/ideahub/backend/internal/tags"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// liveAggregationCap bounds how many ideas a live (non-snapshot)
	// aggregation ranks.
	liveAggregationCap = 200

	defaultSnapshotLimit = 100
	maxSnapshotLimit     = 1000
)

// Vote actions as recorded in metrics and returned to clients.
const (
	ActionCast      = "cast"
	ActionSwitch    = "switch"
	ActionToggleOff = "toggle_off"
)

// RankedIdea is one idea in a ranking, with its position and vote totals.
type RankedIdea struct {
	Rank  int         `json:"rank"`
	Score int         `json:"score"`
	Votes int         `json:"votes"`
	Idea  models.Idea `json:"idea"`
}

// VoteResult describes the outcome of one cast vote.
type VoteResult struct {
	Action  string `json:"action"`
	Vote    int    `json:"vote"` // 0 when the vote was toggled off
	TagsKey string `json:"tags_key"`
	Score   int    `json:"score"` // idea's new total within the combination
	Votes   int    `json:"votes"`
}

// Service coordinates votes, rankings, snapshots and the cache.
type Service struct {
	db    *gorm.DB
	cache *Cache
}

// NewService creates a leaderboard service backed by db and cache.
func NewService(db *gorm.DB, cache *Cache) *Service {
	return &Service{db: db, cache: cache}
}

// CastVote applies one user's vote on an idea within a tag combination.
// Voting the same value twice removes the vote, a different value replaces
// it. Any mutation invalidates both the cached ranking and the persisted
// snapshot for the combination.
func (s *Service) CastVote(ctx context.Context, ideaID, userID string, tagList []string, vote int) (*VoteResult, error) {
	if vote != 1 && vote != -1 {
		return nil, apperrors.ValidationError("vote", "vote must be 1 or -1")
	}

	normalized := tags.Normalize(tagList)
	key := tags.Key(normalized)

	var idea models.Idea
	err := s.db.WithContext(ctx).First(&idea, "id = ?", ideaID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("idea")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load idea: %w", err)
	}
	if idea.Visibility != models.VisibilityPublic {
		return nil, apperrors.Forbidden("only public ideas can be voted on")
	}

	action, current, err := s.applyVote(ctx, ideaID, userID, key, normalized, vote)
	if err != nil {
		return nil, err
	}

	score, votes, err := s.ideaTotals(ctx, key, ideaID)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, key)
	metrics.Get().TagVotesTotal.WithLabelValues(action).Inc()
	logger.Log.Info("tag vote applied",
		logger.WithIdeaID(ideaID),
		logger.WithUserID(userID),
		logger.WithTagsKey(key),
		zap.String("action", action),
		zap.Int("vote", current))

	return &VoteResult{
		Action:  action,
		Vote:    current,
		TagsKey: key,
		Score:   score,
		Votes:   votes,
	}, nil
}

// applyVote mutates the vote record and returns the action taken and the
// resulting vote value (0 when removed).
func (s *Service) applyVote(ctx context.Context, ideaID, userID, key string, normalized []string, vote int) (string, int, error) {
	var existing models.TagVote
	err := s.db.WithContext(ctx).
		Where("idea_id = ? AND user_id = ? AND tags_key = ?", ideaID, userID, key).
		First(&existing).Error

	switch {
	case err == nil && existing.Vote == vote:
		if err := s.db.WithContext(ctx).Delete(&models.TagVote{}, "id = ?", existing.ID).Error; err != nil {
			return "", 0, fmt.Errorf("failed to remove vote: %w", err)
		}
		return ActionToggleOff, 0, nil

	case err == nil:
		if err := s.db.WithContext(ctx).Model(&models.TagVote{}).
			Where("id = ?", existing.ID).
			Update("vote", vote).Error; err != nil {
			return "", 0, fmt.Errorf("failed to switch vote: %w", err)
		}
		return ActionSwitch, vote, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		record := &models.TagVote{
			IdeaID:  ideaID,
			UserID:  userID,
			Tags:    normalized,
			TagsKey: key,
			Vote:    vote,
		}
		cerr := s.db.WithContext(ctx).Create(record).Error
		if cerr == nil {
			return ActionCast, vote, nil
		}
		// Lost an insert race against the same user's concurrent vote.
		// The unique index guarantees one record exists; overwrite it.
		if errors.Is(cerr, gorm.ErrDuplicatedKey) {
			if err := s.db.WithContext(ctx).Model(&models.TagVote{}).
				Where("idea_id = ? AND user_id = ? AND tags_key = ?", ideaID, userID, key).
				Update("vote", vote).Error; err != nil {
				return "", 0, fmt.Errorf("failed to resolve concurrent vote: %w", err)
			}
			return ActionSwitch, vote, nil
		}
		return "", 0, fmt.Errorf("failed to record vote: %w", cerr)

	default:
		return "", 0, fmt.Errorf("failed to look up vote: %w", err)
	}
}

func (s *Service) ideaTotals(ctx context.Context, key, ideaID string) (int, int, error) {
	var row struct {
		Score int
		Votes int
	}
	err := s.db.WithContext(ctx).Model(&models.TagVote{}).
		Select("COALESCE(SUM(vote),0) as score, COUNT(*) as votes").
		Where("tags_key = ? AND idea_id = ?", key, ideaID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to aggregate idea votes: %w", err)
	}
	return row.Score, row.Votes, nil
}

// invalidate drops both the cached ranking and the persisted snapshot for
// a tag combination. Snapshots are derived data, so deleting is safe.
func (s *Service) invalidate(ctx context.Context, key string) {
	s.cache.Invalidate(key)
	if err := s.db.WithContext(ctx).
		Delete(&models.TagLeaderboard{}, "tags_key = ?", key).Error; err != nil {
		logger.Log.Warn("failed to drop stale leaderboard snapshot",
			logger.WithTagsKey(key), zap.Error(err))
	}
}

// GetRanked returns one page of the ranking for a tag combination plus the
// total number of ranked ideas. A persisted snapshot always wins; the TTL
// cache is only ever consulted and filled on the live-aggregation path, so
// a snapshot written by another process (CLI rebuild, cron) takes effect on
// the next read instead of after the cache expires. Read failures degrade
// to an empty ranking rather than an error; rankings are advisory, not
// transactional.
func (s *Service) GetRanked(ctx context.Context, tagList []string, page, limit int) ([]RankedIdea, int, error) {
	key := tags.Key(tags.Normalize(tagList))

	ranked, err := s.resolve(ctx, key)
	if err != nil {
		logger.Log.Error("leaderboard resolution failed, serving empty ranking",
			logger.WithTagsKey(key), zap.Error(err))
		return []RankedIdea{}, 0, nil
	}

	total := len(ranked)
	start := (page - 1) * limit
	if start >= total {
		return []RankedIdea{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return ranked[start:end], total, nil
}

// resolve builds the full ranking for a key: persisted snapshot first
// (bypassing the cache entirely), cached or live aggregation otherwise.
func (s *Service) resolve(ctx context.Context, key string) ([]RankedIdea, error) {
	var snapshot models.TagLeaderboard
	err := s.db.WithContext(ctx).First(&snapshot, "tags_key = ?", key).Error
	if err == nil {
		return s.hydrate(ctx, snapshot.Entries)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	if ranked, ok := s.cache.Get(key); ok {
		metrics.Get().CacheHitsTotal.WithLabelValues("leaderboard").Inc()
		return ranked, nil
	}
	metrics.Get().CacheMissesTotal.WithLabelValues("leaderboard").Inc()

	entries, err := s.aggregate(ctx, key, liveAggregationCap)
	if err != nil {
		return nil, err
	}
	ranked, err := s.hydrate(ctx, entries)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, ranked)
	return ranked, nil
}

// aggregate sums votes per idea for a key, best score first. Ties break by
// vote count, then idea ID, so the ordering is stable across rebuilds.
func (s *Service) aggregate(ctx context.Context, key string, limit int) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	err := s.db.WithContext(ctx).Model(&models.TagVote{}).
		Select("idea_id, SUM(vote) as score, COUNT(*) as votes").
		Where("tags_key = ?", key).
		Group("idea_id").
		Order("score DESC, votes DESC, idea_id ASC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate votes: %w", err)
	}
	return entries, nil
}

// hydrate joins entries against the ideas table, silently dropping ideas
// that have been deleted or made non-public since the entries were built.
func (s *Service) hydrate(ctx context.Context, entries []models.LeaderboardEntry) ([]RankedIdea, error) {
	if len(entries) == 0 {
		return []RankedIdea{}, nil
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.IdeaID
	}

	var ideas []models.Idea
	err := s.db.WithContext(ctx).
		Preload("Author").
		Where("id IN ? AND visibility = ?", ids, models.VisibilityPublic).
		Find(&ideas).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load ranked ideas: %w", err)
	}

	byID := make(map[string]models.Idea, len(ideas))
	for _, idea := range ideas {
		byID[idea.ID] = idea
	}

	ranked := make([]RankedIdea, 0, len(entries))
	for _, e := range entries {
		idea, ok := byID[e.IdeaID]
		if !ok {
			continue
		}
		ranked = append(ranked, RankedIdea{
			Rank:  len(ranked) + 1,
			Score: e.Score,
			Votes: e.Votes,
			Idea:  idea,
		})
	}
	return ranked, nil
}

// BuildSnapshot computes and persists the ranking for a tag combination.
// With no votes yet it falls back to ranking public ideas matching every
// tag by popularity (views, then likes, then recency) with zero scores.
func (s *Service) BuildSnapshot(ctx context.Context, tagList []string, limit int) (*models.TagLeaderboard, error) {
	if limit <= 0 {
		limit = defaultSnapshotLimit
	}
	if limit > maxSnapshotLimit {
		limit = maxSnapshotLimit
	}

	normalized := tags.Normalize(tagList)
	key := tags.Key(normalized)

	entries, err := s.aggregate(ctx, key, limit)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		entries, err = s.popularityFallback(ctx, normalized, limit)
		if err != nil {
			return nil, err
		}
	}

	snapshot := &models.TagLeaderboard{
		TagsKey:    key,
		Tags:       normalized,
		Entries:    entries,
		ComputedAt: time.Now(),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tags_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"tags", "entries", "computed_at"}),
		}).
		Create(snapshot).Error
	if err != nil {
		return nil, fmt.Errorf("failed to persist snapshot: %w", err)
	}

	s.cache.Invalidate(key)
	logger.Log.Info("leaderboard snapshot built",
		logger.WithTagsKey(key), zap.Int("entries", len(entries)))
	return snapshot, nil
}

// popularityFallback ranks public ideas matching every tag in the
// combination when the combination has no votes. Scores stay zero; the
// snapshot exists so cold combinations still render a board.
func (s *Service) popularityFallback(ctx context.Context, normalized []string, limit int) ([]models.LeaderboardEntry, error) {
	distinct := uniqueTags(normalized)

	q := s.db.WithContext(ctx).Model(&models.Idea{}).
		Where("ideas.visibility = ?", models.VisibilityPublic)
	if len(distinct) > 0 {
		q = q.Joins("JOIN idea_tags ON idea_tags.idea_id = ideas.id").
			Where("idea_tags.tag IN ?", distinct).
			Group("ideas.id").
			Having("COUNT(DISTINCT idea_tags.tag) = ?", len(distinct))
	}

	var ideas []models.Idea
	err := q.Order("view_count DESC, like_count DESC, created_at DESC").
		Limit(limit).
		Find(&ideas).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank ideas by popularity: %w", err)
	}

	entries := make([]models.LeaderboardEntry, len(ideas))
	for i, idea := range ideas {
		entries[i] = models.LeaderboardEntry{IdeaID: idea.ID}
	}
	return entries, nil
}

func uniqueTags(normalized []string) []string {
	seen := make(map[string]struct{}, len(normalized))
	out := make([]string, 0, len(normalized))
	for _, t := range normalized {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ListSnapshots returns persisted leaderboards, most recently computed
// first, with the total count for paging.
func (s *Service) ListSnapshots(ctx context.Context, page, limit int) ([]models.TagLeaderboard, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.TagLeaderboard{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count snapshots: %w", err)
	}

	var boards []models.TagLeaderboard
	err := s.db.WithContext(ctx).
		Order("computed_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&boards).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return boards, total, nil
}

// RebuildAll recomputes a snapshot for every tag combination that has
// votes or an existing snapshot. Returns the number rebuilt.
func (s *Service) RebuildAll(ctx context.Context, limit int) (int, error) {
	keys := make(map[string][]string)

	var voteKeys []string
	if err := s.db.WithContext(ctx).Model(&models.TagVote{}).
		Distinct("tags_key").Pluck("tags_key", &voteKeys).Error; err != nil {
		return 0, fmt.Errorf("failed to list voted combinations: %w", err)
	}
	for _, k := range voteKeys {
		keys[k] = tags.Split(k)
	}

	var boards []models.TagLeaderboard
	if err := s.db.WithContext(ctx).Select("tags_key", "tags").Find(&boards).Error; err != nil {
		return 0, fmt.Errorf("failed to list existing snapshots: %w", err)
	}
	for _, b := range boards {
		keys[b.TagsKey] = b.Tags
	}

	rebuilt := 0
	for key, tagList := range keys {
		if _, err := s.BuildSnapshot(ctx, tagList, limit); err != nil {
			logger.Log.Error("failed to rebuild leaderboard",
				logger.WithTagsKey(key), zap.Error(err))
			continue
		}
		rebuilt++
	}
	return rebuilt, nil
}

// SuggestTags returns up to limit distinct tags starting with prefix,
// most used first.
func (s *Service) SuggestTags(ctx context.Context, prefix string, limit int) ([]string, error) {
	normalized := tags.Normalize([]string{prefix})
	q := s.db.WithContext(ctx).Model(&models.IdeaTag{}).
		Select("tag, COUNT(*) as uses").
		Group("tag").
		Order("uses DESC, tag ASC").
		Limit(limit)
	if len(normalized) > 0 {
		q = q.Where("tag LIKE ?", normalized[0]+"%")
	}

	var rows []struct {
		Tag  string
		Uses int
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to suggest tags: %w", err)
	}

	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Tag
	}
	return out, nil
}
