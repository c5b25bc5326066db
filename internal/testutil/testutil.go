// Package testutil 为各层测试提供内存 sqlite 与 miniredis
package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/chirper/pkg/cache"
	"github.com/d60-Lab/chirper/pkg/database"
)

// NewDB 打开一个私有的内存库。":memory:" 每个连接各自一份数据，
// 所以连接池固定为 1；调用方在事务回调里不能再使用外层 db。
func NewDB(tb testing.TB) *gorm.DB {
	tb.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(tb, err)
	sqlDB, err := db.DB()
	require.NoError(tb, err)
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// NewStores 四个上下文共用同一个内存库并完成迁移
func NewStores(tb testing.TB) *database.Stores {
	tb.Helper()
	db := NewDB(tb)
	s := &database.Stores{Users: db, Tweets: db, Notifications: db, Search: db}
	require.NoError(tb, s.Migrate())
	return s
}

// NewCache 基于 miniredis 的缓存
func NewCache(tb testing.TB) (cache.Cache, *miniredis.Miniredis) {
	tb.Helper()
	mr := miniredis.RunT(tb)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tb.Cleanup(func() { _ = client.Close() })
	return cache.New(client), mr
}
