package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-concert-service/internal/domain/concert"
	"github.com/sanosuguru/go-concert-service/internal/infrastructure/memory"
	redisinfra "github.com/sanosuguru/go-concert-service/internal/infrastructure/redis"
)

// fakeConcertCache は世代番号つきのインメモリキャッシュ
type fakeConcertCache struct {
	mu        sync.Mutex
	items     map[int64]concert.Concert
	gen       int64
	failWrite error
}

func newFakeConcertCache() *fakeConcertCache {
	return &fakeConcertCache{items: make(map[int64]concert.Concert)}
}

func (f *fakeConcertCache) Get(ctx context.Context, id int64) (*concert.Concert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok {
		return nil, redisinfra.ErrCacheMiss
	}
	return &c, nil
}

func (f *fakeConcertCache) Generation(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen, nil
}

func (f *fakeConcertCache) SetIfGeneration(ctx context.Context, c *concert.Concert, ttl time.Duration, gen int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		return false, nil
	}
	f.items[c.ID] = *c
	return true, nil
}

func (f *fakeConcertCache) Invalidate(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite != nil {
		return f.failWrite
	}
	f.gen++
	delete(f.items, id)
	return nil
}

func (f *fakeConcertCache) InvalidateAll(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite != nil {
		return f.failWrite
	}
	f.gen++
	f.items = make(map[int64]concert.Concert)
	return nil
}

func (f *fakeConcertCache) setFailWrite(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrite = err
}

func (f *fakeConcertCache) cached(id int64) (concert.Concert, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	return c, ok
}

// interleavingRepository は GetByID の読み込み直後に一度だけ afterGet を実行する
type interleavingRepository struct {
	*memory.ConcertRepository
	afterGet func(id int64)
}

func (r *interleavingRepository) GetByID(ctx context.Context, id int64) (*concert.Concert, error) {
	c, err := r.ConcertRepository.GetByID(ctx, id)
	if hook := r.afterGet; hook != nil {
		r.afterGet = nil
		hook(id)
	}
	return c, err
}

func TestConcertService_GetConcert_WriteDuringRead(t *testing.T) {
	ctx := context.Background()

	t.Run("読み込み中の削除後はNotFoundになる", func(t *testing.T) {
		repo := &interleavingRepository{ConcertRepository: memory.NewConcertRepository()}
		cache := newFakeConcertCache()
		service := NewConcertService(repo, WithCache(cache, time.Minute))

		created, err := service.CreateConcert(ctx, CreateConcertInput{Title: "a", Date: testDate})
		require.NoError(t, err)

		repo.afterGet = func(id int64) {
			require.NoError(t, service.DeleteConcert(ctx, id))
		}
		_, err = service.GetConcert(ctx, created.ID)
		require.NoError(t, err)

		_, err = service.GetConcert(ctx, created.ID)
		assert.ErrorIs(t, err, concert.ErrConcertNotFound)
		_, ok := cache.cached(created.ID)
		assert.False(t, ok)
	})

	t.Run("読み込み中の更新後は新しい値を返す", func(t *testing.T) {
		repo := &interleavingRepository{ConcertRepository: memory.NewConcertRepository()}
		cache := newFakeConcertCache()
		service := NewConcertService(repo, WithCache(cache, time.Minute))

		created, err := service.CreateConcert(ctx, CreateConcertInput{Title: "before", Date: testDate})
		require.NoError(t, err)

		repo.afterGet = func(id int64) {
			_, err := service.UpdateConcert(ctx, UpdateConcertInput{ID: id, Title: "after", Date: testDate})
			require.NoError(t, err)
		}
		_, err = service.GetConcert(ctx, created.ID)
		require.NoError(t, err)

		got, err := service.GetConcert(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "after", got.Title)
	})

	t.Run("書き込みがなければ読み込み結果をキャッシュする", func(t *testing.T) {
		repo := &interleavingRepository{ConcertRepository: memory.NewConcertRepository()}
		cache := newFakeConcertCache()
		service := NewConcertService(repo, WithCache(cache, time.Minute))

		created, err := service.CreateConcert(ctx, CreateConcertInput{Title: "steady", Date: testDate})
		require.NoError(t, err)

		_, err = service.GetConcert(ctx, created.ID)
		require.NoError(t, err)

		c, ok := cache.cached(created.ID)
		require.True(t, ok)
		assert.Equal(t, "steady", c.Title)
	})
}

func TestConcertService_InvalidationFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("全件無効化に失敗してもIDリセット後の作成内容を返す", func(t *testing.T) {
		cache := newFakeConcertCache()
		service := NewConcertService(memory.NewConcertRepository(), WithCache(cache, time.Minute))

		old, err := service.CreateConcert(ctx, CreateConcertInput{Title: "old", Date: testDate})
		require.NoError(t, err)
		_, err = service.GetConcert(ctx, old.ID)
		require.NoError(t, err)

		cache.setFailWrite(errors.New("redis down"))
		require.NoError(t, service.DeleteAllConcerts(ctx))

		created, err := service.CreateConcert(ctx, CreateConcertInput{Title: "new", Date: testDate})
		require.NoError(t, err)
		require.Equal(t, old.ID, created.ID)

		got, err := service.GetConcert(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "new", got.Title)
	})

	t.Run("単体無効化に失敗したら削除済みを返さない", func(t *testing.T) {
		cache := newFakeConcertCache()
		service := NewConcertService(memory.NewConcertRepository(), WithCache(cache, time.Minute))

		created, err := service.CreateConcert(ctx, CreateConcertInput{Title: "gone", Date: testDate})
		require.NoError(t, err)
		_, err = service.GetConcert(ctx, created.ID)
		require.NoError(t, err)

		cache.setFailWrite(errors.New("redis down"))
		require.NoError(t, service.DeleteConcert(ctx, created.ID))

		_, err = service.GetConcert(ctx, created.ID)
		assert.ErrorIs(t, err, concert.ErrConcertNotFound)
	})

	t.Run("復旧後は全件無効化してからキャッシュを再利用する", func(t *testing.T) {
		cache := newFakeConcertCache()
		service := NewConcertService(memory.NewConcertRepository(), WithCache(cache, time.Minute))

		created, err := service.CreateConcert(ctx, CreateConcertInput{Title: "v1", Date: testDate})
		require.NoError(t, err)
		_, err = service.GetConcert(ctx, created.ID)
		require.NoError(t, err)

		cache.setFailWrite(errors.New("redis down"))
		_, err = service.UpdateConcert(ctx, UpdateConcertInput{ID: created.ID, Title: "v2", Date: testDate})
		require.NoError(t, err)

		cache.setFailWrite(nil)
		got, err := service.GetConcert(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "v2", got.Title)

		c, ok := cache.cached(created.ID)
		require.True(t, ok)
		assert.Equal(t, "v2", c.Title)
	})
}
