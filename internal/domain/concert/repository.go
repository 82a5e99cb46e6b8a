package concert

import "context"

// Repository はコンサートストアのインターフェース
// メモリ実装とPostgreSQL実装が同じ外部仕様を満たす
type Repository interface {
	// GetByID はIDからコンサートを取得する
	GetByID(ctx context.Context, id int64) (*Concert, error)

	// List は start のIDを起点に最大 size 件を返す（Page を参照）
	List(ctx context.Context, start int64, size int) ([]*Concert, error)

	// Create はIDを採番してコンサートを保存する
	Create(ctx context.Context, c *Concert) error

	// Update はID以外のフィールドを置き換える
	Update(ctx context.Context, c *Concert) error

	// Delete はコンサートを削除する
	Delete(ctx context.Context, id int64) error

	// DeleteAll は全件削除し、ID採番をリセットする
	DeleteAll(ctx context.Context) error
}
