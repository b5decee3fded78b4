package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/concord-im/concord/config"
	"github.com/concord-im/concord/internal/cache"
	"github.com/concord-im/concord/internal/query"
	"github.com/concord-im/concord/internal/repositories"
	"github.com/concord-im/concord/internal/storage"
	logger "github.com/concord-im/concord/middleware/log"
)

// main brings the data layer up standalone: load config, connect, migrate
// the schema and report. Applications embed the packages directly.
func main() {
	cfg, err := config.LoadConfig("./config/config.toml")
	if err != nil {
		log.Fatalf("配置初始化失败: %v", err)
	}

	zlog, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}
	defer zlog.Close()

	// 初始化 PostgreSQL（含自动迁移）
	db, err := storage.InitPostgres(&cfg.Postgres)
	if err != nil {
		zlog.Fatal("postgres 初始化失败", zap.Error(err))
	}

	// 初始化 Redis（可选，关闭时以无缓存模式运行）
	var c *cache.Cache
	if cfg.Redis.Enabled {
		rdb, err := storage.InitRedis(&cfg.Redis)
		if err != nil {
			zlog.Warn("redis 初始化失败，以无缓存模式运行", zap.Error(err))
		} else {
			defer rdb.Close()
			c = cache.New(rdb, cfg.Cache.TTL, zlog)
		}
	}

	repos, err := repositories.New(db, zlog, c, cfg)
	if err != nil {
		zlog.Fatal("仓储初始化失败", zap.Error(err))
	}

	ctx := logger.WithTraceID(context.Background(), "")
	users, err := repos.Users.Count(ctx, query.Filter{})
	if err != nil {
		zlog.Fatal("启动自检失败", zap.Error(err))
	}

	zlog.InfoContext(ctx, "concord data layer ready",
		zap.Int64("users", users),
		zap.Bool("cache", c != nil))
}
