package postgres

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-concert-service/internal/domain/transaction"
)

// TxWrapper は sqlx.Tx を transaction.Tx インターフェースでラップする
type TxWrapper struct {
	*sqlx.Tx
}

// TxManager は sqlx.DB を使用したトランザクションマネージャー
type TxManager struct {
	db *sqlx.DB
}

// NewTxManager は新しい TxManager を作成する
func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// Begin は新しいトランザクションを開始する
func (m *TxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &TxWrapper{Tx: tx}, nil
}

// UnwrapTx は transaction.Tx から sqlx.Tx を取り出す
func UnwrapTx(tx transaction.Tx) *sqlx.Tx {
	if wrapper, ok := tx.(*TxWrapper); ok {
		return wrapper.Tx
	}
	return nil
}

// WithinTx は fn を1つのトランザクション内で実行する。
// fn がエラーを返した場合はロールバックし、成功時のみコミットする
func WithinTx(ctx context.Context, m transaction.Manager, fn func(tx *sqlx.Tx) error) error {
	return transaction.Run(ctx, m, func(tx transaction.Tx) error {
		sqlTx := UnwrapTx(tx)
		if sqlTx == nil {
			return errors.New("sqlx以外のトランザクションは利用できません")
		}
		return fn(sqlTx)
	})
}

var _ transaction.Manager = (*TxManager)(nil)
