// Package client はリクエスト元クライアントの識別トークンを扱う。
//
// トークンはサーバー側に保存しない。Cookie で受け取り、無ければ新規発行して
// レスポンスに付与するだけのベアラー値である。
package client

import "github.com/google/uuid"

// DefaultCookieName はクライアントトークンを運ぶCookie名
const DefaultCookieName = "clientId"

// Assigner はクライアントトークンを引き継ぐか新規発行する
type Assigner struct {
	newToken func() string
}

// NewAssigner は crypto/rand ベースの UUID v4 を発行する Assigner を作成する
func NewAssigner() *Assigner {
	return &Assigner{newToken: func() string { return uuid.New().String() }}
}

// Assign は既存トークンがあればそのまま返し、無ければ新規発行する。
// minted が true の場合、呼び出し側は token を永続Cookieとしてレスポンスに付与する。
func (a *Assigner) Assign(existing string) (token string, minted bool) {
	if existing != "" {
		return existing, false
	}
	return a.newToken(), true
}

// IsValidToken はトークンが UUID 形式かどうかを返す
func IsValidToken(token string) bool {
	_, err := uuid.Parse(token)
	return err == nil
}
