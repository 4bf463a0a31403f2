package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/ideahub/backend/internal/auth"
	"github.com/ideahub/backend/internal/cache"
	"github.com/ideahub/backend/internal/database"
	"github.com/ideahub/backend/internal/leaderboard"
	"github.com/ideahub/backend/internal/logger"
	"github.com/ideahub/backend/internal/models"
	"github.com/ideahub/backend/internal/review"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	auth   *auth.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger.InitializeForTests()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.MigrateForTests(db))

	// The auth middleware and health check read the package-level handle.
	database.DB = db

	mr := miniredis.RunT(t)
	redisClient := cache.NewRedisClientFromAddr(mr.Addr())

	authSvc := auth.NewService([]byte("test-secret"))
	lb := leaderboard.NewService(db, leaderboard.NewCache(time.Minute))
	jobs := review.NewStore(db, 3)

	h := New(db, authSvc, lb, jobs, redisClient)
	router := gin.New()
	h.RegisterRoutes(router)

	return &testEnv{router: router, db: db, auth: authSvc}
}

var seq int

func (e *testEnv) createUser(t *testing.T) (*models.User, string) {
	t.Helper()
	seq++
	u := &models.User{
		Email:    fmt.Sprintf("h%d@example.com", seq),
		Username: fmt.Sprintf("h%d", seq),
	}
	require.NoError(t, e.db.Create(u).Error)

	token, err := e.auth.GenerateToken(u)
	require.NoError(t, err)
	return u, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRegisterAndLogin(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, "POST", "/api/v1/auth/register", "", gin.H{
		"email":    "new@example.com",
		"username": "newuser",
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.NotEmpty(t, body["token"])

	w = e.do(t, "POST", "/api/v1/auth/login", "", gin.H{
		"email":    "new@example.com",
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, "POST", "/api/v1/auth/login", "", gin.H{
		"email":    "new@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	e := newTestEnv(t)
	payload := gin.H{"email": "dup@example.com", "username": "dupuser", "password": "hunter2hunter2"}

	w := e.do(t, "POST", "/api/v1/auth/register", "", payload)
	require.Equal(t, http.StatusCreated, w.Code)

	payload["username"] = "otheruser"
	w = e.do(t, "POST", "/api/v1/auth/register", "", payload)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateIdeaNormalizesTags(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.createUser(t)

	w := e.do(t, "POST", "/api/v1/ideas", token, gin.H{
		"title": "Compost subscription",
		"tags":  []string{" Compost ", "GREEN", ""},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var idea models.Idea
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &idea))
	assert.Equal(t, []string{"compost", "green"}, idea.Tags)

	var tagRows int64
	require.NoError(t, e.db.Model(&models.IdeaTag{}).Where("idea_id = ?", idea.ID).Count(&tagRows).Error)
	assert.Equal(t, int64(2), tagRows)
}

func TestCreateIdeaRequiresAuth(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, "POST", "/api/v1/ideas", "", gin.H{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetIdeaDeduplicatesViews(t *testing.T) {
	e := newTestEnv(t)
	user, token := e.createUser(t)
	idea := &models.Idea{AuthorID: user.ID, Title: "t"}
	require.NoError(t, e.db.Create(idea).Error)

	for i := 0; i < 3; i++ {
		w := e.do(t, "GET", "/api/v1/ideas/"+idea.ID, token, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	var reloaded models.Idea
	require.NoError(t, e.db.First(&reloaded, "id = ?", idea.ID).Error)
	assert.Equal(t, 1, reloaded.ViewCount)
}

func TestGetIdeaNotFound(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, "GET", "/api/v1/ideas/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPrivateIdeaHiddenFromOthers(t *testing.T) {
	e := newTestEnv(t)
	owner, ownerToken := e.createUser(t)
	_, otherToken := e.createUser(t)

	idea := &models.Idea{AuthorID: owner.ID, Title: "secret", Visibility: models.VisibilityPrivate}
	require.NoError(t, e.db.Create(idea).Error)

	w := e.do(t, "GET", "/api/v1/ideas/"+idea.ID, ownerToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, "GET", "/api/v1/ideas/"+idea.ID, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLikeIsIdempotent(t *testing.T) {
	e := newTestEnv(t)
	user, token := e.createUser(t)
	idea := &models.Idea{AuthorID: user.ID, Title: "t"}
	require.NoError(t, e.db.Create(idea).Error)

	for i := 0; i < 2; i++ {
		w := e.do(t, "POST", "/api/v1/ideas/"+idea.ID+"/like", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	var reloaded models.Idea
	require.NoError(t, e.db.First(&reloaded, "id = ?", idea.ID).Error)
	assert.Equal(t, 1, reloaded.LikeCount)

	w := e.do(t, "DELETE", "/api/v1/ideas/"+idea.ID+"/like", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, e.db.First(&reloaded, "id = ?", idea.ID).Error)
	assert.Equal(t, 0, reloaded.LikeCount)
}

func TestRequestAIReviewAccepted(t *testing.T) {
	e := newTestEnv(t)
	user, token := e.createUser(t)
	idea := &models.Idea{AuthorID: user.ID, Title: "t"}
	require.NoError(t, e.db.Create(idea).Error)

	w := e.do(t, "POST", "/api/v1/ideas/"+idea.ID+"/ai-review", token, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	body := decode(t, w)
	assert.Equal(t, models.JobStatusPending, body["status"])
	assert.Equal(t, false, body["reused"])
	assert.NotEmpty(t, body["job_id"])
}

func TestRequestAIReviewReusesInFlightJob(t *testing.T) {
	e := newTestEnv(t)
	user, token := e.createUser(t)
	idea := &models.Idea{AuthorID: user.ID, Title: "t"}
	require.NoError(t, e.db.Create(idea).Error)

	first := decode(t, e.do(t, "POST", "/api/v1/ideas/"+idea.ID+"/ai-review", token, nil))

	w := e.do(t, "POST", "/api/v1/ideas/"+idea.ID+"/ai-review", token, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	second := decode(t, w)
	assert.Equal(t, true, second["reused"])
	assert.Equal(t, first["job_id"], second["job_id"])
}

func TestRequestAIReviewPrivateIdeaForbiddenForOthers(t *testing.T) {
	e := newTestEnv(t)
	owner, ownerToken := e.createUser(t)
	_, otherToken := e.createUser(t)
	idea := &models.Idea{AuthorID: owner.ID, Title: "t", Visibility: models.VisibilityPrivate}
	require.NoError(t, e.db.Create(idea).Error)

	w := e.do(t, "POST", "/api/v1/ideas/"+idea.ID+"/ai-review", otherToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, "POST", "/api/v1/ideas/"+idea.ID+"/ai-review", ownerToken, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestVoteOnNonPublicIdeaForbidden(t *testing.T) {
	e := newTestEnv(t)
	user, token := e.createUser(t)
	idea := &models.Idea{AuthorID: user.ID, Title: "t", Visibility: models.VisibilityUnlisted}
	require.NoError(t, e.db.Create(idea).Error)

	w := e.do(t, "POST", "/api/v1/tag-rank/vote", token, gin.H{
		"idea_id": idea.ID,
		"tags":    []string{"go"},
		"vote":    1,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetAIJobRequesterOnly(t *testing.T) {
	e := newTestEnv(t)
	user, token := e.createUser(t)
	_, otherToken := e.createUser(t)
	idea := &models.Idea{AuthorID: user.ID, Title: "t"}
	require.NoError(t, e.db.Create(idea).Error)

	created := decode(t, e.do(t, "POST", "/api/v1/ideas/"+idea.ID+"/ai-review", token, nil))
	jobID := created["job_id"].(string)

	w := e.do(t, "GET", "/api/v1/ai-jobs/"+jobID, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, "GET", "/api/v1/ai-jobs/"+jobID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, "GET", "/api/v1/ai-jobs/"+jobID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVoteAndRank(t *testing.T) {
	e := newTestEnv(t)
	user, token := e.createUser(t)
	idea := &models.Idea{AuthorID: user.ID, Title: "t", Tags: []string{"go"}}
	require.NoError(t, e.db.Create(idea).Error)

	w := e.do(t, "POST", "/api/v1/tag-rank/vote", token, gin.H{
		"idea_id": idea.ID,
		"tags":    []string{"Go"},
		"vote":    1,
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "cast", body["action"])
	assert.Equal(t, "go", body["tags_key"])

	w = e.do(t, "GET", "/api/v1/tag-rank?tags=go", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rank := decode(t, w)
	results := rank["results"].([]interface{})
	require.Len(t, results, 1)
	assert.Equal(t, float64(1), rank["total"])
}

func TestVoteValidation(t *testing.T) {
	e := newTestEnv(t)
	user, token := e.createUser(t)
	idea := &models.Idea{AuthorID: user.ID, Title: "t"}
	require.NoError(t, e.db.Create(idea).Error)

	w := e.do(t, "POST", "/api/v1/tag-rank/vote", token, gin.H{
		"idea_id": idea.ID,
		"vote":    5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, "POST", "/api/v1/tag-rank/vote", token, gin.H{
		"idea_id": "missing",
		"vote":    1,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateAndListLeaderboards(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.createUser(t)

	w := e.do(t, "POST", "/api/v1/tag-rank/leaderboard", token, gin.H{"tags": []string{"go"}})
	require.Equal(t, http.StatusOK, w.Code)
	created := decode(t, w)
	assert.Equal(t, "go", created["tags_key"])

	w = e.do(t, "GET", "/api/v1/tag-rank/leaderboards", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["total"])
}

func TestSuggestTags(t *testing.T) {
	e := newTestEnv(t)
	user, _ := e.createUser(t)
	idea := &models.Idea{AuthorID: user.ID, Title: "t"}
	require.NoError(t, e.db.Create(idea).Error)
	require.NoError(t, e.db.Create(&models.IdeaTag{IdeaID: idea.ID, Tag: "golang"}).Error)

	w := e.do(t, "GET", "/api/v1/tag-rank/suggest?q=go", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, []interface{}{"golang"}, body["tags"])
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
