package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-concert-service/internal/domain/concert"
	redisinfra "github.com/sanosuguru/go-concert-service/internal/infrastructure/redis"
	"github.com/sanosuguru/go-concert-service/internal/pkg/logger"
	"github.com/sanosuguru/go-concert-service/internal/pkg/metrics"
)

const (
	defaultCacheTTL    = 5 * time.Minute
	defaultMaxPageSize = 100
)

// ConcertCache はコンサート単体取得のキャッシュ（redisinfra.ConcertCacheが実装する）
// Invalidate と InvalidateAll は世代番号を進め、それ以前の世代で読んだ値は
// SetIfGeneration で保存されない
type ConcertCache interface {
	Get(ctx context.Context, id int64) (*concert.Concert, error)
	Generation(ctx context.Context) (int64, error)
	SetIfGeneration(ctx context.Context, c *concert.Concert, ttl time.Duration, gen int64) (bool, error)
	Invalidate(ctx context.Context, id int64) error
	InvalidateAll(ctx context.Context) error
}

// counter は件数を返せるストア（ゲージの初期化に使う）
type counter interface {
	Count(ctx context.Context) (int, error)
}

var _ ConcertCache = (*redisinfra.ConcertCache)(nil)

type ConcertService struct {
	concertRepo concert.Repository
	cache       ConcertCache
	cacheTTL    time.Duration
	maxPageSize int
	metrics     *metrics.Metrics

	// cacheStale は無効化に失敗した後、全件無効化が成功するまで立つ
	cacheStale atomic.Bool
	staleMu    sync.Mutex
}

// ConcertServiceOption はConcertServiceの任意設定
type ConcertServiceOption func(*ConcertService)

// WithCache は読み込みキャッシュを設定する
func WithCache(cache ConcertCache, ttl time.Duration) ConcertServiceOption {
	return func(s *ConcertService) {
		s.cache = cache
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithMaxPageSize は一覧で指定できる最大件数を設定する
func WithMaxPageSize(n int) ConcertServiceOption {
	return func(s *ConcertService) {
		if n > 0 {
			s.maxPageSize = n
		}
	}
}

// WithMetrics はメトリクスを設定する
func WithMetrics(m *metrics.Metrics) ConcertServiceOption {
	return func(s *ConcertService) {
		s.metrics = m
	}
}

func NewConcertService(repo concert.Repository, opts ...ConcertServiceOption) *ConcertService {
	s := &ConcertService{
		concertRepo: repo,
		cacheTTL:    defaultCacheTTL,
		maxPageSize: defaultMaxPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateConcertInput struct {
	Title string
	Date  time.Time
}

func (s *ConcertService) CreateConcert(ctx context.Context, input CreateConcertInput) (*concert.Concert, error) {
	c := concert.NewConcert(input.Title, input.Date)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.concertRepo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("コンサート作成に失敗しました: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ConcertsStored.Inc()
	}
	return c, nil
}

// GetConcert はキャッシュを優先してコンサートを取得する
func (s *ConcertService) GetConcert(ctx context.Context, id int64) (*concert.Concert, error) {
	if !s.cacheUsable(ctx) {
		if s.cache != nil {
			s.observeCache("bypass")
		}
		return s.concertRepo.GetByID(ctx, id)
	}

	if c, err := s.cache.Get(ctx, id); err == nil {
		s.observeCache("hit")
		return c, nil
	} else if errors.Is(err, redisinfra.ErrCacheMiss) {
		s.observeCache("miss")
	} else {
		s.observeCache("error")
		logger.Warn("キャッシュ取得に失敗", zap.Int64("concert_id", id), zap.Error(err))
	}

	// 世代番号はストアを読む前に取得する
	gen, genErr := s.cache.Generation(ctx)
	if genErr != nil {
		logger.Warn("キャッシュ世代番号の取得に失敗", zap.Int64("concert_id", id), zap.Error(genErr))
	}

	c, err := s.concertRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if genErr == nil {
		stored, err := s.cache.SetIfGeneration(ctx, c, s.cacheTTL, gen)
		if err != nil {
			logger.Warn("キャッシュ保存に失敗", zap.Int64("concert_id", id), zap.Error(err))
		} else if !stored {
			logger.Debug("読み込み中に更新があったためキャッシュしない", zap.Int64("concert_id", id))
		}
	}
	return c, nil
}

// ListConcerts は start のIDを起点に最大 size 件を返す
// size が上限を超える場合は切り詰めずに ErrInvalidPage を返す
func (s *ConcertService) ListConcerts(ctx context.Context, start int64, size int) ([]*concert.Concert, error) {
	if start < 0 || size < 0 {
		return nil, fmt.Errorf("バリデーションエラー: %w", concert.ErrInvalidPage)
	}
	if size > s.maxPageSize {
		return nil, fmt.Errorf("バリデーションエラー: size は %d 以下: %w", s.maxPageSize, concert.ErrInvalidPage)
	}
	if size == 0 {
		return []*concert.Concert{}, nil
	}
	return s.concertRepo.List(ctx, start, size)
}

type UpdateConcertInput struct {
	ID    int64
	Title string
	Date  time.Time
}

// UpdateConcert はタイトルと日時を丸ごと置き換える
func (s *ConcertService) UpdateConcert(ctx context.Context, input UpdateConcertInput) (*concert.Concert, error) {
	c := &concert.Concert{ID: input.ID, Title: input.Title, Date: input.Date}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.concertRepo.Update(ctx, c); err != nil {
		return nil, err
	}
	s.invalidate(ctx, c.ID)
	return c, nil
}

func (s *ConcertService) DeleteConcert(ctx context.Context, id int64) error {
	if err := s.concertRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	if s.metrics != nil {
		s.metrics.ConcertsStored.Dec()
	}
	return nil
}

// DeleteAllConcerts は全件削除してIDの採番をリセットする
func (s *ConcertService) DeleteAllConcerts(ctx context.Context) error {
	if err := s.concertRepo.DeleteAll(ctx); err != nil {
		return fmt.Errorf("全件削除に失敗しました: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			logger.Warn("キャッシュの全削除に失敗", zap.Error(err))
			s.markCacheStale()
		}
	}
	if s.metrics != nil {
		s.metrics.ConcertsStored.Set(0)
	}
	return nil
}

// SyncStoredGauge はストアの件数でゲージを初期化する
func (s *ConcertService) SyncStoredGauge(ctx context.Context) error {
	if s.metrics == nil {
		return nil
	}
	cnt, ok := s.concertRepo.(counter)
	if !ok {
		return nil
	}
	n, err := cnt.Count(ctx)
	if err != nil {
		return fmt.Errorf("件数取得に失敗: %w", err)
	}
	s.metrics.ConcertsStored.Set(float64(n))
	return nil
}

func (s *ConcertService) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		logger.Warn("キャッシュ無効化に失敗", zap.Int64("concert_id", id), zap.Error(err))
		s.markCacheStale()
	}
}

// markCacheStale は書き込みを反映できなかったキャッシュの読み込みを止める
func (s *ConcertService) markCacheStale() {
	s.staleMu.Lock()
	defer s.staleMu.Unlock()
	s.cacheStale.Store(true)
}

// cacheUsable はキャッシュを読めるかを返す
// 無効化に失敗していた場合は全件無効化を試し、成功するまでキャッシュを使わない
func (s *ConcertService) cacheUsable(ctx context.Context) bool {
	if s.cache == nil {
		return false
	}
	if !s.cacheStale.Load() {
		return true
	}

	s.staleMu.Lock()
	defer s.staleMu.Unlock()
	if !s.cacheStale.Load() {
		return true
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		logger.Warn("キャッシュの復旧に失敗", zap.Error(err))
		return false
	}
	s.cacheStale.Store(false)
	logger.Info("キャッシュを全件無効化して読み込みを再開")
	return true
}

func (s *ConcertService) observeCache(result string) {
	if s.metrics != nil {
		s.metrics.ConcertCacheLookups.WithLabelValues(result).Inc()
	}
}
