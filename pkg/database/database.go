package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/chirper/config"
	"github.com/d60-Lab/chirper/internal/model"
)

// Stores 每个限界上下文一个逻辑库，彼此之间没有跨库事务
type Stores struct {
	Users         *gorm.DB
	Tweets        *gorm.DB
	Notifications *gorm.DB
	Search        *gorm.DB
}

// Open 按 DSN 打开连接；相同 DSN 复用同一个连接池
func Open(cfg *config.Config) (*Stores, error) {
	pools := map[string]*gorm.DB{}
	open := func(dsn string) (*gorm.DB, error) {
		if db, ok := pools[dsn]; ok {
			return db, nil
		}
		db, err := InitDB(cfg.Database.Driver, dsn, cfg.Database)
		if err != nil {
			return nil, err
		}
		pools[dsn] = db
		return db, nil
	}

	var (
		s   Stores
		err error
	)
	if s.Users, err = open(cfg.Database.UsersDSN); err != nil {
		return nil, fmt.Errorf("users store: %w", err)
	}
	if s.Tweets, err = open(cfg.Database.TweetsDSN); err != nil {
		return nil, fmt.Errorf("tweets store: %w", err)
	}
	if s.Notifications, err = open(cfg.Database.NotificationDSN); err != nil {
		return nil, fmt.Errorf("notifications store: %w", err)
	}
	if s.Search, err = open(cfg.Database.SearchDSN); err != nil {
		return nil, fmt.Errorf("search store: %w", err)
	}
	return &s, nil
}

// InitDB 打开单个 gorm 连接并设置连接池
func InitDB(driver, dsn string, dbCfg config.DatabaseConfig) (*gorm.DB, error) {
	gormLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	// TranslateError 让唯一约束冲突统一成 gorm.ErrDuplicatedKey
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if dbCfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbCfg.MaxIdleConns)
	}
	if dbCfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbCfg.MaxOpenConns)
	}
	if dbCfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)
	}
	return db, nil
}

// Migrate 为各上下文建表；outbox 表落在产生事件的库里
func (s *Stores) Migrate() error {
	steps := []struct {
		name   string
		db     *gorm.DB
		models []interface{}
	}{
		{"users", s.Users, []interface{}{&model.User{}, &model.Follow{}, &model.OutboxEvent{}}},
		{"tweets", s.Tweets, []interface{}{&model.Tweet{}, &model.Like{}, &model.OutboxEvent{}}},
		{"notifications", s.Notifications, []interface{}{&model.Notification{}}},
		{"search", s.Search, []interface{}{&model.SearchDocument{}}},
	}
	for _, st := range steps {
		if err := st.db.AutoMigrate(st.models...); err != nil {
			return fmt.Errorf("failed to migrate %s store: %w", st.name, err)
		}
	}
	return nil
}

// Close 关闭所有连接（同一连接池只关一次）
func (s *Stores) Close() error {
	seen := map[*gorm.DB]bool{}
	for _, db := range []*gorm.DB{s.Users, s.Tweets, s.Notifications, s.Search} {
		if db == nil || seen[db] {
			continue
		}
		seen[db] = true
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.Close(); err != nil {
			return err
		}
	}
	return nil
}
