// Package logger はアプリケーション全体で共有する zap ロガーを保持する
package logger

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// current はテストからの差し替えとリクエスト処理中のログ出力が並行しても安全なように atomic で保持する
var current atomic.Pointer[zap.Logger]

func init() {
	current.Store(NewLogger("development"))
}

// NewLogger は環境に応じたロガーを作成する。LOG_LEVEL でレベルを上書きできる
func NewLogger(env string) *zap.Logger {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(lvl)); err == nil {
			config.Level = zap.NewAtomicLevelAt(level)
		}
	}

	l, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l.With(zap.String("service", "concert-service"))
}

// Init は APP_ENV に合わせてグローバルロガーを差し替える
func Init(env string) *zap.Logger {
	l := NewLogger(env)
	current.Store(l)
	return l
}

func Get() *zap.Logger {
	return current.Load()
}

// Set はグローバルロガーを差し替える。nil は Nop ロガーとして扱う
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current.Store(l)
}

// Named はコンポーネント名付きのロガーを返す
func Named(component string) *zap.Logger {
	return Get().Named(component)
}

func Info(msg string, fields ...zap.Field) {
	Get().Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Get().Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	Get().Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Get().Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	Get().Fatal(msg, fields...)
}

func With(fields ...zap.Field) *zap.Logger {
	return Get().With(fields...)
}

func Sync() error {
	return Get().Sync()
}
