package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	ErrEmptyBucket = errors.New("バケット名が指定されていません")
	ErrInvalidKey  = errors.New("オブジェクトキーが不正です")
)

// ImageStore はバケット内の画像一覧取得とダウンロードを行う
type ImageStore struct {
	client API
	bucket string
}

// NewImageStore はImageStoreを作成する
func NewImageStore(client API, bucket string) *ImageStore {
	return &ImageStore{client: client, bucket: bucket}
}

// Bucket は対象バケット名を返す
func (s *ImageStore) Bucket() string {
	return s.bucket
}

// List はバケット内の全オブジェクトキーを返す（ディレクトリマーカーは除く）
func (s *ImageStore) List(ctx context.Context) ([]string, error) {
	if s.bucket == "" {
		return nil, ErrEmptyBucket
	}

	var keys []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("オブジェクト一覧の取得に失敗: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Download は key のオブジェクトを dir 配下に保存し、保存先パスを返す。
// 一時ファイルに書き込んでからリネームするため、途中失敗で壊れたファイルは残らない
func (s *ImageStore) Download(ctx context.Context, key, dir string) (string, error) {
	if s.bucket == "" {
		return "", ErrEmptyBucket
	}

	destination, err := localPath(dir, key)
	if err != nil {
		return "", err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("オブジェクト取得に失敗 (%s): %w", key, err)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return "", fmt.Errorf("保存先ディレクトリ作成に失敗: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destination), "pending-")
	if err != nil {
		return "", fmt.Errorf("一時ファイル作成に失敗: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, out.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("オブジェクト書き込みに失敗 (%s): %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("一時ファイルのクローズに失敗: %w", err)
	}
	if err := os.Rename(tmp.Name(), destination); err != nil {
		return "", fmt.Errorf("ファイルのリネームに失敗: %w", err)
	}
	return destination, nil
}

// localPath は key を dir 配下のパスに変換する。dir の外を指すキーは拒否する
func localPath(dir, key string) (string, error) {
	rel := filepath.FromSlash(key)
	if key == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(dir, rel), nil
}
