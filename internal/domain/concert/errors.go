package concert

import "errors"

// Concert ドメインのエラー定義
var (
	ErrConcertNotFound = errors.New("コンサートが見つかりません")
	ErrTitleRequired   = errors.New("タイトルは必須です")
	ErrDateRequired    = errors.New("開催日時は必須です")
	ErrInvalidPage     = errors.New("ページ指定が不正です")
)
