package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	redisinfra "github.com/sanosuguru/go-concert-service/internal/infrastructure/redis"
	"github.com/sanosuguru/go-concert-service/internal/pkg/logger"
)

const imageSyncLockKey = "image-sync"

// ImageSyncer は画像バケットをローカルへ同期するインターフェース
type ImageSyncer interface {
	Sync(ctx context.Context) (int, error)
}

// Locker は複数レプリカ間で同期処理を排他する
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// ImageSyncWorker は一定間隔で画像を同期するワーカー
type ImageSyncWorker struct {
	syncer   ImageSyncer
	locker   Locker
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewImageSyncWorker は新しいワーカーを作成
// locker が nil の場合はロックなしで同期する
func NewImageSyncWorker(syncer ImageSyncer, locker Locker, interval time.Duration) *ImageSyncWorker {
	return &ImageSyncWorker{
		syncer:   syncer,
		locker:   locker,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start はワーカーを開始する。起動直後に1回同期してから間隔ごとに同期する
func (w *ImageSyncWorker) Start(ctx context.Context) {
	logger.Info("画像同期ワーカー開始", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneCh)

	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("画像同期ワーカー停止（コンテキストキャンセル）")
			return
		case <-w.stopCh:
			logger.Info("画像同期ワーカー停止（シグナル受信）")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop はワーカーを停止し、実行中の同期が終わるまで待つ
func (w *ImageSyncWorker) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

// runOnce は1回分の同期を行う。ロックはインターバルの間だけ保持する
func (w *ImageSyncWorker) runOnce(ctx context.Context) {
	if w.locker == nil {
		w.sync(ctx)
		return
	}

	err := w.locker.WithLock(ctx, imageSyncLockKey, w.interval, func(ctx context.Context) error {
		w.sync(ctx)
		return nil
	})
	switch {
	case errors.Is(err, redisinfra.ErrLockNotAcquired):
		logger.Debug("他のレプリカが画像同期中のためスキップ")
	case err != nil:
		logger.Error("画像同期のロック取得に失敗", zap.Error(err))
	}
}

func (w *ImageSyncWorker) sync(ctx context.Context) {
	log := logger.Named("image-sync")
	log.Debug("画像同期開始")

	count, err := w.syncer.Sync(ctx)
	if err != nil {
		log.Error("画像同期に失敗", zap.Int("downloaded", count), zap.Error(err))
		return
	}
	log.Info("画像同期完了", zap.Int("downloaded", count))
}
