package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-concert-service/internal/api/handler"
	"github.com/sanosuguru/go-concert-service/internal/api/router"
	"github.com/sanosuguru/go-concert-service/internal/application"
	"github.com/sanosuguru/go-concert-service/internal/config"
	"github.com/sanosuguru/go-concert-service/internal/domain/client"
	"github.com/sanosuguru/go-concert-service/internal/domain/concert"
	"github.com/sanosuguru/go-concert-service/internal/infrastructure/memory"
	"github.com/sanosuguru/go-concert-service/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-concert-service/internal/infrastructure/redis"
	s3infra "github.com/sanosuguru/go-concert-service/internal/infrastructure/s3"
	"github.com/sanosuguru/go-concert-service/internal/pkg/logger"
	"github.com/sanosuguru/go-concert-service/internal/pkg/metrics"
	"github.com/sanosuguru/go-concert-service/internal/worker"
)

// concertStore はリポジトリに疎通確認を加えたもの
type concertStore interface {
	concert.Repository
	handler.Pinger
}

func main() {
	// .env は任意（本番では環境変数を直接設定する）
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Init(cfg.Env)
	defer logger.Sync()

	m := metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ストア
	store, closeStore, err := newConcertStore(cfg)
	if err != nil {
		log.Fatal("ストアの初期化に失敗しました", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer closeStore()

	opts := []application.ConcertServiceOption{
		application.WithMetrics(m),
		application.WithMaxPageSize(cfg.Store.MaxPageSize),
	}

	// Redis（任意）。繋がらなければキャッシュとロックなしで動かす
	var lockManager *redisinfra.LockManager
	if cfg.Redis.Enabled {
		rc, err := redisinfra.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn("Redisに接続できないためキャッシュなしで起動します", zap.Error(err))
		} else {
			defer rc.Close()
			opts = append(opts, application.WithCache(redisinfra.NewConcertCache(rc), cfg.Store.CacheTTL))
			lockManager = redisinfra.NewLockManager(rc)
			log.Info("Redisに接続しました", zap.String("addr", cfg.Redis.Addr()))
		}
	}

	concertService := application.NewConcertService(store, opts...)
	if err := concertService.SyncStoredGauge(ctx); err != nil {
		log.Warn("保存件数メトリクスの初期化に失敗", zap.Error(err))
	}

	// 画像同期ワーカー（任意）
	var imageWorker *worker.ImageSyncWorker
	if cfg.Images.SyncEnabled {
		s3Client, err := s3infra.NewClient(ctx, &cfg.S3)
		if err != nil {
			log.Fatal("S3クライアントの初期化に失敗しました", zap.Error(err))
		}
		imageService := application.NewImageService(
			s3infra.NewImageStore(s3Client, cfg.S3.Bucket),
			cfg.Images.DownloadDir,
			m,
		)

		var locker worker.Locker
		if lockManager != nil {
			locker = lockManager
		}
		imageWorker = worker.NewImageSyncWorker(imageService, locker, cfg.Images.SyncInterval)
		go imageWorker.Start(ctx)
	}

	e := router.New(router.Dependencies{
		Concerts:    handler.NewConcertHandler(concertService, cfg.Server.BasePath, cfg.Store.DefaultPageSize),
		Health:      handler.NewHealthHandler(store),
		Assigner:    client.NewAssigner(),
		BasePath:    cfg.Server.BasePath,
		Cookie:      cfg.Cookie,
		MetricsAuth: cfg.Metrics,
		Metrics:     m,
	})
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	go func() {
		log.Info("サーバーを起動します",
			zap.String("port", cfg.Server.Port),
			zap.String("backend", cfg.Store.Backend),
			zap.String("base_path", cfg.Server.BasePath),
		)
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	<-ctx.Done()
	log.Info("サーバーをシャットダウンしています...")

	if imageWorker != nil {
		imageWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("サーバーシャットダウンエラー", zap.Error(err))
		os.Exit(1)
	}

	log.Info("サーバーが正常にシャットダウンしました")
}

// newConcertStore は設定されたバックエンドのストアを作成する
func newConcertStore(cfg *config.Config) (concertStore, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return memory.NewConcertRepository(), func() {}, nil
	case config.BackendPostgres:
		db, err := postgres.NewConnection(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
			db.Close()
			return nil, nil, err
		}
		repo := postgres.NewConcertRepository(db, postgres.NewTxManager(db))
		return repo, func() { db.Close() }, nil
	default:
		return nil, nil, errors.New("STORE_BACKEND は memory か postgres を指定してください: " + cfg.Store.Backend)
	}
}
