package handler

import (
	"context"

	"github.com/sanosuguru/go-concert-service/internal/application"
	"github.com/sanosuguru/go-concert-service/internal/domain/concert"
)

// ConcertServiceInterface はコンサートサービスのインターフェース
type ConcertServiceInterface interface {
	CreateConcert(ctx context.Context, input application.CreateConcertInput) (*concert.Concert, error)
	GetConcert(ctx context.Context, id int64) (*concert.Concert, error)
	ListConcerts(ctx context.Context, start int64, size int) ([]*concert.Concert, error)
	UpdateConcert(ctx context.Context, input application.UpdateConcertInput) (*concert.Concert, error)
	DeleteConcert(ctx context.Context, id int64) error
	DeleteAllConcerts(ctx context.Context) error
}

// Pinger はストアの疎通確認
type Pinger interface {
	Ping(ctx context.Context) error
}
