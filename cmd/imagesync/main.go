package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sanosuguru/go-concert-service/internal/application"
	"github.com/sanosuguru/go-concert-service/internal/config"
	s3infra "github.com/sanosuguru/go-concert-service/internal/infrastructure/s3"
	"github.com/sanosuguru/go-concert-service/internal/pkg/logger"
	"github.com/sanosuguru/go-concert-service/internal/pkg/metrics"
)

// storeFactory は設定から画像ストアを作成する
type storeFactory func(ctx context.Context, cfg *config.S3Config) (application.ImageStore, error)

func newS3Store(ctx context.Context, cfg *config.S3Config) (application.ImageStore, error) {
	client, err := s3infra.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s3infra.NewImageStore(client, cfg.Bucket), nil
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init(cfg.Env)
	defer logger.Sync()

	if err := newRootCmd(cfg, newS3Store).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config, newStore storeFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           "imagesync",
		Short:         "Download concert images from the S3 bucket",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfg.S3.Bucket, "bucket", cfg.S3.Bucket, "S3 bucket name")
	root.PersistentFlags().StringVar(&cfg.S3.Region, "region", cfg.S3.Region, "AWS region")
	root.PersistentFlags().StringVar(&cfg.Images.DownloadDir, "dir", cfg.Images.DownloadDir, "download directory")

	root.AddCommand(newListCmd(cfg, newStore))
	root.AddCommand(newDownloadCmd(cfg, newStore))
	return root
}

func newListCmd(cfg *config.Config, newStore storeFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the image keys stored in the bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newImageService(cmd.Context(), cfg, newStore)
			if err != nil {
				return err
			}
			keys, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d images in bucket %s\n", len(keys), cfg.S3.Bucket)
			for _, key := range keys {
				fmt.Fprintln(out, key)
			}
			return nil
		},
	}
}

func newDownloadCmd(cfg *config.Config, newStore storeFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Download every image in the bucket into the download directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newImageService(cmd.Context(), cfg, newStore)
			if err != nil {
				return err
			}
			n, err := svc.Sync(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "downloaded %d images to %s\n", n, svc.Dir())
			return nil
		},
	}
}

func newImageService(ctx context.Context, cfg *config.Config, newStore storeFactory) (*application.ImageService, error) {
	store, err := newStore(ctx, &cfg.S3)
	if err != nil {
		return nil, err
	}
	return application.NewImageService(store, cfg.Images.DownloadDir, metrics.NewNop()), nil
}
