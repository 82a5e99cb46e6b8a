// Package transaction はストアに依存しないトランザクション境界を定義する
package transaction

import (
	"context"
	"errors"
	"fmt"
)

// Tx は開始済みのトランザクション
type Tx interface {
	Commit() error
	Rollback() error
}

// Manager はトランザクションを開始する
type Manager interface {
	Begin(ctx context.Context) (Tx, error)
}

// Run は fn を1つのトランザクション内で実行する。
// fn がエラーを返すか panic した場合はロールバックし、成功時のみコミットする
func Run(ctx context.Context, m Manager, fn func(tx Tx) error) (err error) {
	tx, err := m.Begin(ctx)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("ロールバックに失敗: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}
