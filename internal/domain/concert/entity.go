package concert

import "time"

// Concert はコンサートエンティティを表す
type Concert struct {
	ID    int64
	Title string
	Date  time.Time
}

// NewConcert は新しいコンサートを作成する（IDはストアが採番する）
func NewConcert(title string, date time.Time) *Concert {
	return &Concert{
		Title: title,
		Date:  date,
	}
}

// Validate はコンサートの検証を行う
func (c *Concert) Validate() error {
	if c.Title == "" {
		return ErrTitleRequired
	}
	if c.Date.IsZero() {
		return ErrDateRequired
	}
	return nil
}

// Clone はストア外へ渡すためのコピーを返す
func (c *Concert) Clone() *Concert {
	cp := *c
	return &cp
}
