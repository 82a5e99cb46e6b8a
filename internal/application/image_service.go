package application

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-concert-service/internal/pkg/logger"
	"github.com/sanosuguru/go-concert-service/internal/pkg/metrics"
)

// ImageStore は画像バケットへのアクセス（s3.ImageStoreが実装する）
type ImageStore interface {
	List(ctx context.Context) ([]string, error)
	Download(ctx context.Context, key, dir string) (string, error)
}

type ImageService struct {
	store   ImageStore
	dir     string
	metrics *metrics.Metrics
}

func NewImageService(store ImageStore, dir string, m *metrics.Metrics) *ImageService {
	return &ImageService{store: store, dir: dir, metrics: m}
}

// Dir は保存先ディレクトリを返す
func (s *ImageService) Dir() string {
	return s.dir
}

func (s *ImageService) List(ctx context.Context) ([]string, error) {
	keys, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("画像一覧の取得に失敗しました: %w", err)
	}
	return keys, nil
}

// Sync はバケット内の全画像を保存先へダウンロードし、保存した件数を返す
// 最初のエラーで中断する
func (s *ImageService) Sync(ctx context.Context) (int, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return 0, fmt.Errorf("保存先ディレクトリの作成に失敗しました: %w", err)
	}

	keys, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	downloaded := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return downloaded, err
		}
		path, err := s.store.Download(ctx, key, s.dir)
		if err != nil {
			s.observe("failed")
			return downloaded, fmt.Errorf("画像 %s のダウンロードに失敗しました: %w", key, err)
		}
		s.observe("success")
		logger.Debug("画像をダウンロードしました", zap.String("key", key), zap.String("path", path))
		downloaded++
	}
	return downloaded, nil
}

func (s *ImageService) observe(status string) {
	if s.metrics != nil {
		s.metrics.ImageDownloadsTotal.WithLabelValues(status).Inc()
	}
}
