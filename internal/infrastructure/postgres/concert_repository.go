package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-concert-service/internal/domain/concert"
	"github.com/sanosuguru/go-concert-service/internal/domain/transaction"
)

// concertRow はDBの行を表す構造体
type concertRow struct {
	ID    int64     `db:"id"`
	Title string    `db:"title"`
	Date  time.Time `db:"date"`
}

// toEntity はconcertRowをConcertエンティティに変換する（日時はセッションのタイムゾーンに依らずUTC）
func (r *concertRow) toEntity() *concert.Concert {
	return &concert.Concert{
		ID:    r.ID,
		Title: r.Title,
		Date:  r.Date.UTC(),
	}
}

// ConcertRepository はコンサートリポジトリのPostgreSQL実装
type ConcertRepository struct {
	db        *sqlx.DB
	txManager transaction.Manager
}

// NewConcertRepository はConcertRepositoryを作成する
func NewConcertRepository(db *sqlx.DB, txManager transaction.Manager) *ConcertRepository {
	return &ConcertRepository{db: db, txManager: txManager}
}

// GetByID はIDからコンサートを取得する
func (r *ConcertRepository) GetByID(ctx context.Context, id int64) (*concert.Concert, error) {
	query := `SELECT id, title, date FROM concerts WHERE id = $1`

	var row concertRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, concert.ErrConcertNotFound
		}
		return nil, fmt.Errorf("コンサート取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// List は id = start の行を起点にID昇順で最大 size 件を返す。
// 該当行が無ければ先頭から返す（concert.Page と同じ規則）
func (r *ConcertRepository) List(ctx context.Context, start int64, size int) ([]*concert.Concert, error) {
	concerts := make([]*concert.Concert, 0)
	if size <= 0 {
		return concerts, nil
	}

	query := `
		SELECT id, title, date
		FROM concerts
		WHERE id >= COALESCE((SELECT id FROM concerts WHERE id = $1), 0)
		ORDER BY id
		LIMIT $2
	`

	var rows []concertRow
	if err := r.db.SelectContext(ctx, &rows, query, start, size); err != nil {
		return nil, fmt.Errorf("コンサート一覧取得に失敗しました: %w", err)
	}

	for i := range rows {
		concerts = append(concerts, rows[i].toEntity())
	}
	return concerts, nil
}

// Create は新しいコンサートを作成する。IDはシーケンスで採番される
func (r *ConcertRepository) Create(ctx context.Context, c *concert.Concert) error {
	query := `INSERT INTO concerts (title, date) VALUES ($1, $2) RETURNING id`

	if err := r.db.QueryRowContext(ctx, query, c.Title, c.Date).Scan(&c.ID); err != nil {
		return fmt.Errorf("コンサート作成に失敗しました: %w", err)
	}
	return nil
}

// Update はID以外のフィールドを置き換える
func (r *ConcertRepository) Update(ctx context.Context, c *concert.Concert) error {
	query := `UPDATE concerts SET title = $1, date = $2, updated_at = NOW() WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, c.Title, c.Date, c.ID)
	if err != nil {
		return fmt.Errorf("コンサート更新に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return concert.ErrConcertNotFound
	}
	return nil
}

// Delete はコンサートを削除する
func (r *ConcertRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM concerts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("コンサート削除に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return concert.ErrConcertNotFound
	}
	return nil
}

// DeleteAll は全件削除とシーケンスのリセットを1トランザクションで行う
func (r *ConcertRepository) DeleteAll(ctx context.Context) error {
	return WithinTx(ctx, r.txManager, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM concerts`); err != nil {
			return fmt.Errorf("コンサート全件削除に失敗しました: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `ALTER SEQUENCE concerts_id_seq RESTART WITH 1`); err != nil {
			return fmt.Errorf("ID採番のリセットに失敗しました: %w", err)
		}
		return nil
	})
}

// Count は保存件数を返す（メトリクス初期化用）
func (r *ConcertRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM concerts`); err != nil {
		return 0, fmt.Errorf("コンサート件数取得に失敗しました: %w", err)
	}
	return count, nil
}

// Ping はデータベース接続を確認する
func (r *ConcertRepository) Ping(ctx context.Context) error {
	return Ping(ctx, r.db)
}

// インターフェースを満たしているか確認
var _ concert.Repository = (*ConcertRepository)(nil)
