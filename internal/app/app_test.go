package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/chirper/config"
	"github.com/d60-Lab/chirper/internal/api/handler"
	"github.com/d60-Lab/chirper/internal/service"
	"github.com/d60-Lab/chirper/internal/testutil"
	"github.com/d60-Lab/chirper/pkg/jwt"
)

const testSecret = "test-secret"

type env struct {
	app    *App
	engine *gin.Engine
	relays []*service.OutboxRelay
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Mode: gin.TestMode},
		JWT:    config.JWTConfig{Secret: testSecret, TTL: time.Hour},
		Search: config.SearchConfig{DefaultPerPage: 20, MaxPerPage: 100, DefaultLimit: 10, MaxLimit: 50, MaxTextLength: 1000},
		Cache:  config.CacheConfig{ProfileTTL: 300 * time.Second},
		Outbox: config.OutboxConfig{Workers: 2, ClaimLimit: 100, MaxAttempts: 3, Lease: time.Minute},
	}
}

func newEnv(t *testing.T) *env {
	t.Helper()
	stores := testutil.NewStores(t)
	c, _ := testutil.NewCache(t)
	a := New(testConfig(), stores, c)
	engine, err := a.Engine(map[string]handler.HealthCheck{"cache": c.Ping})
	require.NoError(t, err)
	return &env{app: a, engine: engine, relays: a.Relays(a.Events)}
}

type reply struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *env) do(t *testing.T, method, path string, userID uint, body interface{}) (int, reply) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		tok, err := jwt.GenerateToken(testSecret, userID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var r reply
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r), w.Body.String())
	}
	return w.Code, r
}

func (e *env) drain(t *testing.T) {
	t.Helper()
	for _, r := range e.relays {
		for i := 0; i < 10; i++ {
			n, err := r.ProcessOnce(context.Background())
			require.NoError(t, err)
			if n == 0 {
				break
			}
		}
	}
}

func (e *env) signup(t *testing.T, name string) uint {
	t.Helper()
	code, r := e.do(t, http.MethodPost, "/api/v1/users", 0, gin.H{
		"username": name, "email": name + "@example.com", "name": name,
	})
	require.Equal(t, http.StatusCreated, code, r.Message)
	var u struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(r.Data, &u))
	return u.ID
}

func decode[T any](t *testing.T, r reply) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(r.Data, &v))
	return v
}

func TestHTTP_AuthRequired(t *testing.T) {
	e := newEnv(t)

	code, _ := e.do(t, http.MethodPost, "/api/v1/tweets", 0, gin.H{"content": "hi"})
	assert.Equal(t, http.StatusUnauthorized, code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHTTP_SearchValidation(t *testing.T) {
	e := newEnv(t)

	cases := []string{
		"/api/v1/search",
		"/api/v1/search?q=%20%20",
		"/api/v1/search?q=hello&page=0",
		"/api/v1/search?q=hello&page=abc",
		"/api/v1/search?q=hello&per_page=0",
		"/api/v1/search?q=hello&type=video",
		"/api/v1/search/hashtags",
		"/api/v1/search/trending?type=video",
	}
	for _, path := range cases {
		code, _ := e.do(t, http.MethodGet, path, 1, nil)
		assert.Equal(t, http.StatusBadRequest, code, path)
	}

	code, _ := e.do(t, http.MethodGet, "/api/v1/search?q=hello", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, code, "search needs a token")
	code, _ = e.do(t, http.MethodGet, "/api/v1/search/trending", 0, nil)
	assert.Equal(t, http.StatusOK, code, "trending stays public")

	code, _ = e.do(t, http.MethodPost, "/api/v1/search/index", 0, gin.H{
		"content_type": "video", "content_id": 1, "text": "x", "owner_id": 1,
	})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHTTP_IndexAndSearch(t *testing.T) {
	e := newEnv(t)

	for i, doc := range []gin.H{
		{"content_type": "tweet", "content_id": 1, "text": "hello #world", "owner_id": 1, "engagement_score": 2},
		{"content_type": "tweet", "content_id": 2, "text": "hello there", "owner_id": 1, "engagement_score": 5},
	} {
		code, r := e.do(t, http.MethodPost, "/api/v1/search/index", 0, doc)
		require.Equal(t, http.StatusOK, code, "doc %d: %s", i, r.Message)
	}

	code, r := e.do(t, http.MethodGet, "/api/v1/search?q=hello", 1, nil)
	require.Equal(t, http.StatusOK, code)
	page := decode[service.SearchPage](t, r)
	require.Len(t, page.Results, 2)
	assert.Equal(t, uint(2), page.Results[0].ContentID)
	assert.Equal(t, uint(1), page.Results[1].ContentID)
	assert.Equal(t, 2, page.Total)

	// 极大页码返回空页而不是 500
	code, r = e.do(t, http.MethodGet, "/api/v1/search?q=hello&page=922337203685477580", 1, nil)
	require.Equal(t, http.StatusOK, code, r.Message)
	page = decode[service.SearchPage](t, r)
	assert.Empty(t, page.Results)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 922337203685477580, page.CurrentPage)

	code, _ = e.do(t, http.MethodDelete, "/api/v1/search/index/tweet/2", 0, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = e.do(t, http.MethodDelete, "/api/v1/search/index/tweet/2", 0, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHTTP_FollowOutcomes(t *testing.T) {
	e := newEnv(t)
	alice := e.signup(t, "alice")
	e.signup(t, "bob")

	code, _ := e.do(t, http.MethodPost, "/api/v1/users", 0, gin.H{
		"username": "alice", "email": "other@example.com", "name": "Alice 2",
	})
	assert.Equal(t, http.StatusConflict, code)

	code, r := e.do(t, http.MethodPost, "/api/v1/users/bob/follow", alice, nil)
	require.Equal(t, http.StatusOK, code, r.Message)
	assert.Equal(t, "followed", decode[map[string]string](t, r)["status"])

	code, _ = e.do(t, http.MethodPost, "/api/v1/users/bob/follow", alice, nil)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = e.do(t, http.MethodPost, "/api/v1/users/alice/follow", alice, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = e.do(t, http.MethodPost, "/api/v1/users/ghost/follow", alice, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, r = e.do(t, http.MethodGet, "/api/v1/users/bob", 0, nil)
	require.Equal(t, http.StatusOK, code)
	profile := decode[map[string]interface{}](t, r)
	assert.EqualValues(t, 1, profile["followers_count"])
	assert.NotContains(t, profile, "is_following", "anonymous viewers get no relation flag")

	code, r = e.do(t, http.MethodGet, "/api/v1/users/bob", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, decode[map[string]interface{}](t, r)["is_following"])
	code, r = e.do(t, http.MethodGet, "/api/v1/users/alice", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, decode[map[string]interface{}](t, r), "is_following")

	code, r = e.do(t, http.MethodGet, "/api/v1/users/bob/followers", 0, nil)
	require.Equal(t, http.StatusOK, code)
	var followers struct {
		Users []struct {
			Username string `json:"username"`
		} `json:"users"`
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(r.Data, &followers))
	require.Len(t, followers.Users, 1)
	assert.Equal(t, "alice", followers.Users[0].Username)

	code, r = e.do(t, http.MethodDelete, "/api/v1/users/bob/follow", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "unfollowed", decode[map[string]string](t, r)["status"])
	code, r = e.do(t, http.MethodDelete, "/api/v1/users/bob/follow", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "not_following", decode[map[string]string](t, r)["status"])

	code, r = e.do(t, http.MethodGet, "/api/v1/users/bob", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, decode[map[string]interface{}](t, r)["is_following"])
}

type userList struct {
	Users []struct {
		Username string `json:"username"`
	} `json:"users"`
	Total       int `json:"total"`
	Pages       int `json:"pages"`
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
}

func TestHTTP_ListFollowersAndFollowing(t *testing.T) {
	e := newEnv(t)
	bob := e.signup(t, "bob")
	for _, name := range []string{"alice", "carol", "dave"} {
		id := e.signup(t, name)
		code, r := e.do(t, http.MethodPost, "/api/v1/users/bob/follow", id, nil)
		require.Equal(t, http.StatusOK, code, r.Message)
	}
	code, r := e.do(t, http.MethodPost, "/api/v1/users/carol/follow", bob, nil)
	require.Equal(t, http.StatusOK, code, r.Message)

	code, r = e.do(t, http.MethodGet, "/api/v1/users/bob/followers?page=1&per_page=2", 0, nil)
	require.Equal(t, http.StatusOK, code, r.Message)
	first := decode[userList](t, r)
	assert.Len(t, first.Users, 2)
	assert.Equal(t, 3, first.Total)
	assert.Equal(t, 2, first.Pages)
	assert.Equal(t, 1, first.CurrentPage)
	assert.Equal(t, 2, first.PerPage)

	code, r = e.do(t, http.MethodGet, "/api/v1/users/bob/followers?page=2&per_page=2", 0, nil)
	require.Equal(t, http.StatusOK, code)
	second := decode[userList](t, r)
	require.Len(t, second.Users, 1)
	seen := map[string]bool{second.Users[0].Username: true}
	for _, u := range first.Users {
		seen[u.Username] = true
	}
	assert.Equal(t, map[string]bool{"alice": true, "carol": true, "dave": true}, seen)

	code, r = e.do(t, http.MethodGet, "/api/v1/users/bob/followers?page=922337203685477580", 0, nil)
	require.Equal(t, http.StatusOK, code, r.Message)
	assert.Empty(t, decode[userList](t, r).Users)

	code, r = e.do(t, http.MethodGet, "/api/v1/users/bob/following", 0, nil)
	require.Equal(t, http.StatusOK, code)
	following := decode[userList](t, r)
	require.Len(t, following.Users, 1)
	assert.Equal(t, "carol", following.Users[0].Username)
	assert.Equal(t, 1, following.Total)
	assert.Equal(t, 20, following.PerPage)

	code, _ = e.do(t, http.MethodGet, "/api/v1/users/ghost/followers", 0, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = e.do(t, http.MethodGet, "/api/v1/users/bob/followers?page=0", 0, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHTTP_LikeOutcomesAndFanout(t *testing.T) {
	e := newEnv(t)
	alice := e.signup(t, "alice")
	bob := e.signup(t, "bob")

	code, r := e.do(t, http.MethodPost, "/api/v1/tweets", alice, gin.H{"content": "learning #golang today"})
	require.Equal(t, http.StatusCreated, code, r.Message)
	tweet := decode[struct {
		ID uint `json:"id"`
	}](t, r)
	likePath := fmt.Sprintf("/api/v1/tweets/%d/like", tweet.ID)

	code, r = e.do(t, http.MethodPost, likePath, bob, nil)
	require.Equal(t, http.StatusOK, code, r.Message)
	assert.EqualValues(t, 1, decode[map[string]interface{}](t, r)["likes_count"])

	code, _ = e.do(t, http.MethodPost, likePath, bob, nil)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = e.do(t, http.MethodPost, "/api/v1/tweets/999/like", bob, nil)
	assert.Equal(t, http.StatusNotFound, code)

	e.drain(t)

	code, r = e.do(t, http.MethodGet, "/api/v1/notifications/unread-count", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, decode[map[string]interface{}](t, r)["unread_count"])

	code, r = e.do(t, http.MethodGet, "/api/v1/search?q=golang&type=tweet", bob, nil)
	require.Equal(t, http.StatusOK, code)
	page := decode[service.SearchPage](t, r)
	require.Len(t, page.Results, 1)
	assert.Equal(t, tweet.ID, page.Results[0].ContentID)

	code, r = e.do(t, http.MethodDelete, likePath, bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "unliked", decode[map[string]interface{}](t, r)["status"])
	code, r = e.do(t, http.MethodDelete, likePath, bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "not_liked", decode[map[string]interface{}](t, r)["status"])
}

func TestHTTP_NotificationOwnership(t *testing.T) {
	e := newEnv(t)
	alice := e.signup(t, "alice")
	bob := e.signup(t, "bob")

	code, _ := e.do(t, http.MethodPost, "/api/v1/notifications/create", 0, gin.H{
		"recipient_id": alice, "sender_id": bob, "type": "poke", "content": "hey",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, r := e.do(t, http.MethodPost, "/api/v1/notifications/create", 0, gin.H{
		"recipient_id": alice, "sender_id": bob, "type": "follow", "content": "bob followed you",
	})
	require.Equal(t, http.StatusCreated, code, r.Message)
	n := decode[struct {
		ID uint `json:"id"`
	}](t, r)

	code, _ = e.do(t, http.MethodPost, "/api/v1/notifications/mark-read", bob, gin.H{"notification_ids": []uint{n.ID}})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = e.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/notifications/%d", n.ID), bob, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, r = e.do(t, http.MethodPost, "/api/v1/notifications/mark-read", alice, nil)
	require.Equal(t, http.StatusOK, code, r.Message)
	assert.EqualValues(t, 1, decode[map[string]interface{}](t, r)["updated"])

	code, r = e.do(t, http.MethodGet, "/api/v1/notifications?unread=true", alice, nil)
	require.Equal(t, http.StatusOK, code)
	page := decode[service.NotificationPage](t, r)
	assert.Empty(t, page.Notifications)
	assert.EqualValues(t, 0, page.UnreadCount)

	code, _ = e.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/notifications/%d", n.ID), alice, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestHTTP_Health(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cache":"ok"`)
}

func TestRelays_DedupedBySharedStore(t *testing.T) {
	e := newEnv(t)
	require.Len(t, e.relays, 1)
	assert.Equal(t, "users", e.relays[0].Name())
}
