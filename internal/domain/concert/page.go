package concert

// Page は自然順（ID昇順）に並んだ concerts から一覧ページを切り出す。
//
// オフセットではなくIDの値によるページングで、ID が start と一致する要素の位置から
// 最大 size 件を返す。一致する要素がなければ先頭から返す。size が0以下なら空。
func Page(concerts []*Concert, start int64, size int) []*Concert {
	result := make([]*Concert, 0)
	if size <= 0 {
		return result
	}

	startIndex := 0
	for i, c := range concerts {
		if c.ID == start {
			startIndex = i
			break
		}
	}

	end := startIndex + size
	if end > len(concerts) {
		end = len(concerts)
	}
	return append(result, concerts[startIndex:end]...)
}
