package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/chirper/internal/model"
	"github.com/d60-Lab/chirper/internal/testutil"
)

func seedUsers(t *testing.T, db *gorm.DB, names ...string) []model.User {
	t.Helper()
	users := make([]model.User, len(names))
	for i, n := range names {
		users[i] = model.User{Username: n, Email: n + "@example.com", Name: n}
	}
	require.NoError(t, db.Create(&users).Error)
	return users
}

func TestFollowRepository_InsertIfAbsent(t *testing.T) {
	db := testutil.NewStores(t).Users
	repo := NewFollowRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Create(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, created, "second follow must not create a duplicate edge")

	cnt, err := repo.CountFollowers(ctx, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 1, cnt)

	ok, err := repo.Exists(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Exists(ctx, 2, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err := repo.Delete(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.Delete(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestFollowRepository_Lists(t *testing.T) {
	db := testutil.NewStores(t).Users
	repo := NewFollowRepository(db)
	ctx := context.Background()

	for _, follower := range []uint{2, 3, 4} {
		_, err := repo.Create(ctx, follower, 1)
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, 1, 5)
	require.NoError(t, err)

	followers, err := repo.ListFollowers(ctx, 1, 0, 2)
	require.NoError(t, err)
	assert.Len(t, followers, 2)

	followings, err := repo.ListFollowings(ctx, 1, 0, 10)
	require.NoError(t, err)
	require.Len(t, followings, 1)
	assert.EqualValues(t, 5, followings[0].FollowedID)

	n, err := repo.CountFollowings(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestUserRepository_LookupAndUpdate(t *testing.T) {
	db := testutil.NewStores(t).Users
	repo := NewUserRepository(db)
	ctx := context.Background()
	users := seedUsers(t, db, "alice", "bob")

	u, err := repo.GetByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, users[1].ID, u.ID)

	_, err = repo.GetByUsername(ctx, "carol")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	ids, err := repo.IDsByUsernames(ctx, []string{"alice", "carol"})
	require.NoError(t, err)
	assert.Equal(t, map[string]uint{"alice": users[0].ID}, ids)

	u.Bio = "gopher"
	require.NoError(t, repo.Update(ctx, u))
	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "gopher", got.Bio)

	err = repo.Create(ctx, &model.User{Username: "alice", Email: "other@example.com"})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestLikeRepository_CountsAndLikedSet(t *testing.T) {
	db := testutil.NewStores(t).Tweets
	repo := NewLikeRepository(db)
	ctx := context.Background()

	for _, uid := range []uint{1, 2, 3} {
		created, err := repo.Create(ctx, uid, 10)
		require.NoError(t, err)
		assert.True(t, created)
	}
	created, err := repo.Create(ctx, 1, 10)
	require.NoError(t, err)
	assert.False(t, created)
	_, err = repo.Create(ctx, 1, 11)
	require.NoError(t, err)

	cnt, err := repo.CountByTweet(ctx, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, cnt)

	counts, err := repo.CountByTweets(ctx, []uint{10, 11, 12})
	require.NoError(t, err)
	assert.Equal(t, map[uint]int64{10: 3, 11: 1}, counts)

	liked, err := repo.LikedByUser(ctx, 2, []uint{10, 11})
	require.NoError(t, err)
	assert.Equal(t, map[uint]bool{10: true}, liked)

	require.NoError(t, repo.DeleteByTweet(ctx, 10))
	cnt, err = repo.CountByTweet(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, cnt)
}

func TestTweetRepository_TimelineOrder(t *testing.T) {
	db := testutil.NewStores(t).Tweets
	repo := NewTweetRepository(db)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 3; i++ {
		tw := &model.Tweet{UserID: 1, Content: "t", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, repo.Create(ctx, tw))
	}
	list, err := repo.ListTimeline(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].CreatedAt.After(list[2].CreatedAt))

	require.NoError(t, repo.Delete(ctx, list[0].ID))
	_, err = repo.GetByID(ctx, list[0].ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestNotificationRepository_DedupAndMarkRead(t *testing.T) {
	db := testutil.NewStores(t).Notifications
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	evt := "evt-1"
	n1 := &model.Notification{RecipientID: 1, SenderID: 2, Type: model.NotificationLike, Content: "liked", EventID: &evt}
	created, err := repo.Create(ctx, n1)
	require.NoError(t, err)
	assert.True(t, created)

	dup := &model.Notification{RecipientID: 1, SenderID: 2, Type: model.NotificationLike, Content: "liked", EventID: &evt}
	created, err = repo.Create(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)

	// 无 EventID 的直接创建不去重
	for i := 0; i < 2; i++ {
		_, err = repo.Create(ctx, &model.Notification{RecipientID: 1, SenderID: 3, Type: model.NotificationFollow, Content: "followed"})
		require.NoError(t, err)
	}
	_, err = repo.Create(ctx, &model.Notification{RecipientID: 9, SenderID: 3, Type: model.NotificationFollow, Content: "followed"})
	require.NoError(t, err)

	total, err := repo.Count(ctx, 1, false)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	owners, err := repo.Owners(ctx, []uint{n1.ID, 999})
	require.NoError(t, err)
	assert.Equal(t, map[uint]uint{n1.ID: 1}, owners)

	affected, err := repo.MarkRead(ctx, 1, []uint{n1.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	unread, err := repo.Count(ctx, 1, true)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread)

	affected, err = repo.MarkRead(ctx, 1, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, affected)

	other, err := repo.Count(ctx, 9, true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, other, "mark all must stay within the recipient")

	list, err := repo.List(ctx, 1, false, 0, 10)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestSearchRepository_UpsertReplaces(t *testing.T) {
	db := testutil.NewStores(t).Search
	repo := NewSearchRepository(db)
	ctx := context.Background()

	first, err := repo.Upsert(ctx, &model.SearchDocument{ContentType: model.ContentTweet, ContentID: 7, Text: "hello", OwnerID: 1, EngagementScore: 1})
	require.NoError(t, err)

	second, err := repo.Upsert(ctx, &model.SearchDocument{ContentType: model.ContentTweet, ContentID: 7, Text: "hello again", OwnerID: 1, EngagementScore: 5})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "hello again", second.Text)
	assert.Equal(t, 5.0, second.EngagementScore)

	var cnt int64
	require.NoError(t, db.Model(&model.SearchDocument{}).Count(&cnt).Error)
	assert.EqualValues(t, 1, cnt)

	removed, err := repo.Delete(ctx, model.ContentTweet, 7)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.Delete(ctx, model.ContentTweet, 7)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSearchRepository_Candidates(t *testing.T) {
	db := testutil.NewStores(t).Search
	repo := NewSearchRepository(db)
	ctx := context.Background()

	docs := []model.SearchDocument{
		{ContentType: model.ContentTweet, ContentID: 1, Text: "Learning Go today"},
		{ContentType: model.ContentTweet, ContentID: 2, Text: "100% coverage #testing"},
		{ContentType: model.ContentTweet, ContentID: 3, Text: "1000 coverage points"},
		{ContentType: model.ContentProfile, ContentID: 1, Text: "alice go developer"},
		{ContentType: model.ContentTweet, ContentID: 4, Text: "snake_case names"},
		{ContentType: model.ContentTweet, ContentID: 5, Text: "snakeXcase names"},
	}
	for i := range docs {
		_, err := repo.Upsert(ctx, &docs[i])
		require.NoError(t, err)
	}

	got, err := repo.Candidates(ctx, CandidateFilter{Tokens: []string{"go"}})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = repo.Candidates(ctx, CandidateFilter{Tokens: []string{"go"}, ContentType: model.ContentProfile})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.ContentProfile, got[0].ContentType)

	got, err = repo.Candidates(ctx, CandidateFilter{Tokens: []string{"100%"}})
	require.NoError(t, err)
	require.Len(t, got, 1, "percent sign must match literally")
	assert.EqualValues(t, 2, got[0].ContentID)

	got, err = repo.Candidates(ctx, CandidateFilter{Tokens: []string{"snake_case"}})
	require.NoError(t, err)
	require.Len(t, got, 1, "underscore must match literally")
	assert.EqualValues(t, 4, got[0].ContentID)

	got, err = repo.Candidates(ctx, CandidateFilter{ContentType: model.ContentTweet, HashtagOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.EqualValues(t, 2, got[0].ContentID)
}

func TestSearchRepository_TopByEngagement(t *testing.T) {
	db := testutil.NewStores(t).Search
	repo := NewSearchRepository(db)
	ctx := context.Background()

	for i, score := range []float64{3, 9, 1, 9} {
		_, err := repo.Upsert(ctx, &model.SearchDocument{
			ContentType: model.ContentTweet, ContentID: uint(i + 1), Text: "x", EngagementScore: score,
		})
		require.NoError(t, err)
	}
	top, err := repo.TopByEngagement(ctx, model.ContentTweet, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, 9.0, top[0].EngagementScore)
	assert.Equal(t, 9.0, top[1].EngagementScore)
	assert.Equal(t, 3.0, top[2].EngagementScore)
}

func TestOutboxRepository_ClaimLifecycle(t *testing.T) {
	db := testutil.NewStores(t).Tweets
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		evt, err := repo.Append(ctx, "tweet.created", uint(i+1), map[string]int{"n": i})
		require.NoError(t, err)
		ids = append(ids, evt.ID)
	}

	batch, err := repo.Claim(ctx, 2, time.Minute)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, ids[0], batch[0].ID)
	assert.Equal(t, model.OutboxProcessing, batch[0].Status)

	// 租约未过期，已领取的不会被重复领取
	rest, err := repo.Claim(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, ids[2], rest[0].ID)

	require.NoError(t, repo.MarkDone(ctx, batch[0].ID))
	require.NoError(t, repo.Release(ctx, batch[1].ID, true, "boom"))
	require.NoError(t, repo.MarkFailed(ctx, rest[0].ID, "fatal"))

	again, err := repo.Claim(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, batch[1].ID, again[0].ID)
	assert.Equal(t, 1, again[0].Attempts)
	assert.Equal(t, "boom", again[0].LastError)

	failed, err := repo.CountByStatus(ctx, model.OutboxFailed)
	require.NoError(t, err)
	assert.EqualValues(t, 1, failed)

	purged, err := repo.Purge(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)
}

func TestOutboxRepository_ReclaimsExpiredLease(t *testing.T) {
	db := testutil.NewStores(t).Users
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	_, err := repo.Append(ctx, "user.followed", 1, map[string]uint{"follower_id": 1})
	require.NoError(t, err)

	first, err := repo.Claim(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, first, 1)

	stale := time.Now().Add(-2 * time.Minute)
	require.NoError(t, db.Model(&model.OutboxEvent{}).Where("id = ?", first[0].ID).Update("claimed_at", stale).Error)

	second, err := repo.Claim(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
}
