// Package memory はプロセス内に保持するコンサートストアを提供する
package memory

import (
	"context"
	"sync"

	"github.com/sanosuguru/go-concert-service/internal/domain/concert"
)

// ConcertRepository はコンサートリポジトリのメモリ実装
// 全操作を1つのRWMutexで直列化し、単一レコード単位でアトミックにする
type ConcertRepository struct {
	mu       sync.RWMutex
	concerts map[int64]*concert.Concert
	order    []int64 // 自然順（ID昇順 = 作成順）
	lastID   int64
}

// NewConcertRepository はConcertRepositoryを作成する
func NewConcertRepository() *ConcertRepository {
	return &ConcertRepository{
		concerts: make(map[int64]*concert.Concert),
	}
}

// GetByID はIDからコンサートを取得する
func (r *ConcertRepository) GetByID(ctx context.Context, id int64) (*concert.Concert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.concerts[id]
	if !ok {
		return nil, concert.ErrConcertNotFound
	}
	return c.Clone(), nil
}

// List は start のIDを起点に最大 size 件を返す
func (r *ConcertRepository) List(ctx context.Context, start int64, size int) ([]*concert.Concert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*concert.Concert, len(r.order))
	for i, id := range r.order {
		all[i] = r.concerts[id]
	}

	page := concert.Page(all, start, size)
	for i, c := range page {
		page[i] = c.Clone()
	}
	return page, nil
}

// Create はIDを採番してコンサートを保存する
func (r *ConcertRepository) Create(ctx context.Context, c *concert.Concert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastID++
	c.ID = r.lastID
	r.concerts[c.ID] = c.Clone()
	r.order = append(r.order, c.ID)
	return nil
}

// Update はID以外のフィールドを置き換える
func (r *ConcertRepository) Update(ctx context.Context, c *concert.Concert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.concerts[c.ID]; !ok {
		return concert.ErrConcertNotFound
	}
	r.concerts[c.ID] = c.Clone()
	return nil
}

// Delete はコンサートを削除する。IDは再利用しない
func (r *ConcertRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.concerts[id]; !ok {
		return concert.ErrConcertNotFound
	}
	delete(r.concerts, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// DeleteAll は全件削除し、ID採番をリセットする
func (r *ConcertRepository) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.concerts = make(map[int64]*concert.Concert)
	r.order = nil
	r.lastID = 0
	return nil
}

// Count は保存件数を返す
func (r *ConcertRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.concerts), nil
}

// Ping はヘルスチェック用。メモリストアは常に利用可能
func (r *ConcertRepository) Ping(ctx context.Context) error {
	return nil
}

// インターフェースを満たしているか確認
var _ concert.Repository = (*ConcertRepository)(nil)
