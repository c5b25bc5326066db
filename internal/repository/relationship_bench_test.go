package repository

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/d60-Lab/chirper/internal/model"
	"github.com/d60-Lab/chirper/internal/testutil"
)

func BenchmarkFollowWrite_InsertIfAbsent(b *testing.B) {
	db := testutil.NewStores(b).Users
	followRepo := NewFollowRepository(db)
	ctx := context.Background()

	// 小用户池，重复关注会频繁命中冲突分支
	const users = 1000
	rnd := rand.New(rand.NewSource(1))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		from := uint(rnd.Intn(users) + 1)
		to := uint(rnd.Intn(users) + 1)
		if from == to {
			continue
		}
		_, _ = followRepo.Create(ctx, from, to)
	}
}

func BenchmarkQueryFollowersAndFollowing(b *testing.B) {
	db := testutil.NewStores(b).Users
	followRepo := NewFollowRepository(db)
	ctx := context.Background()

	// 构造：u1 有 N 个粉丝，同时 u1 也关注 N 个用户
	const N = 5000
	for i := 2; i <= N+1; i++ {
		_, _ = followRepo.Create(ctx, uint(i), 1)
		_, _ = followRepo.Create(ctx, 1, uint(i))
	}

	b.ResetTimer()
	b.Run("ListFollowers", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = followRepo.ListFollowers(ctx, 1, 0, 50)
		}
	})

	b.Run("ListFollowing", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = followRepo.ListFollowings(ctx, 1, 0, 50)
		}
	})
}

func BenchmarkSearchCandidates(b *testing.B) {
	db := testutil.NewStores(b).Search
	repo := NewSearchRepository(db)
	ctx := context.Background()

	words := []string{"go", "rust", "gopher", "cloud", "search", "index", "#golang", "#rustlang"}
	rnd := rand.New(rand.NewSource(7))
	docs := make([]model.SearchDocument, 0, 5000)
	for i := 1; i <= 5000; i++ {
		text := fmt.Sprintf("%s %s %s", words[rnd.Intn(len(words))], words[rnd.Intn(len(words))], words[rnd.Intn(len(words))])
		docs = append(docs, model.SearchDocument{
			ContentType: model.ContentTweet, ContentID: uint(i), Text: text, EngagementScore: float64(rnd.Intn(100)),
		})
	}
	if err := db.CreateInBatches(docs, 500).Error; err != nil {
		b.Fatalf("seed docs: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = repo.Candidates(ctx, CandidateFilter{Tokens: []string{"gopher"}, ContentType: model.ContentTweet})
	}
}
