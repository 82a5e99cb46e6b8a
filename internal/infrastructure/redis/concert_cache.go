package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-concert-service/internal/domain/concert"
)

const (
	concertKeyPrefix = "concerts:"
	// generationKey は書き込みのたびに増える世代番号（concerts:* の走査対象外）
	generationKey = "concert-cache:generation"
)

// 世代番号が読み込み開始時と同じ場合だけ保存するLuaスクリプト
var setIfGenerationScript = redis.NewScript(`
	local current = redis.call("GET", KEYS[1]) or "0"
	if current ~= ARGV[1] then
		return 0
	end
	if tonumber(ARGV[3]) > 0 then
		redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
	else
		redis.call("SET", KEYS[2], ARGV[2])
	end
	return 1
`)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// cachedConcert はキャッシュに保存するJSON表現
type cachedConcert struct {
	ID    int64     `json:"id"`
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
}

// ConcertCache はコンサート単体取得のキャッシュを管理する
type ConcertCache struct {
	client *redis.Client
}

// NewConcertCache は新しいConcertCacheインスタンスを作成する
func NewConcertCache(client *redis.Client) *ConcertCache {
	return &ConcertCache{client: client}
}

// Get はキャッシュからコンサートを取得する
func (c *ConcertCache) Get(ctx context.Context, id int64) (*concert.Concert, error) {
	data, err := c.client.Get(ctx, concertKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}

	var cc cachedConcert
	if err := json.Unmarshal(data, &cc); err != nil {
		return nil, fmt.Errorf("キャッシュのデコードに失敗: %w", err)
	}
	return &concert.Concert{ID: cc.ID, Title: cc.Title, Date: cc.Date}, nil
}

// Generation は現在の世代番号を返す（未設定なら0）
func (c *ConcertCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("世代番号の取得に失敗: %w", err)
	}
	return gen, nil
}

// SetIfGeneration は世代番号が gen のままの場合だけコンサートを保存する
// 読み込み中に更新・削除が入った場合は保存せず false を返す
func (c *ConcertCache) SetIfGeneration(ctx context.Context, con *concert.Concert, ttl time.Duration, gen int64) (bool, error) {
	data, err := json.Marshal(cachedConcert{ID: con.ID, Title: con.Title, Date: con.Date})
	if err != nil {
		return false, fmt.Errorf("キャッシュのエンコードに失敗: %w", err)
	}
	stored, err := setIfGenerationScript.Run(ctx, c.client,
		[]string{generationKey, concertKey(con.ID)},
		strconv.FormatInt(gen, 10), data, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return stored == 1, nil
}

// Invalidate は指定コンサートのキャッシュを無効化する
func (c *ConcertCache) Invalidate(ctx context.Context, id int64) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		pipe.Del(ctx, concertKey(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

// InvalidateAll は全コンサートのキャッシュを無効化する
func (c *ConcertCache) InvalidateAll(ctx context.Context) error {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("世代番号の更新に失敗: %w", err)
	}

	iter := c.client.Scan(ctx, 0, concertKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("キャッシュキー走査に失敗: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("キャッシュ全件無効化に失敗: %w", err)
	}
	return nil
}

func concertKey(id int64) string {
	return concertKeyPrefix + strconv.FormatInt(id, 10)
}
