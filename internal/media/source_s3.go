/*
Copyright (C) 2026 Nooku Contributors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// S3Config configures the S3 catalog backend.
type S3Config struct {
	Bucket        string
	Prefix        string
	Region        string
	Endpoint      string // For S3-compatible services (MinIO, Spaces, etc.)
	UsePathStyle  bool   // Required for MinIO
	PublicBaseURL string // Optional CDN/static site URL used for refs
}

// S3Source lists catalog entries from an S3 bucket prefix. Refs are HTTPS
// URLs so the decoder can stream objects directly.
type S3Source struct {
	cfg    S3Config
	client *s3.Client
	logger zerolog.Logger
}

// NewS3Source creates an S3-backed catalog source.
func NewS3Source(ctx context.Context, cfg S3Config, logger zerolog.Logger) (*S3Source, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Source{
		cfg:    cfg,
		client: client,
		logger: logger.With().Str("component", "s3_source").Logger(),
	}, nil
}

// List enumerates objects under the configured prefix. S3 returns keys in
// lexical order, which keeps catalog construction deterministic.
func (s *S3Source) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(s.cfg.Prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3 objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			entries = append(entries, Entry{
				Name: path.Base(key),
				Ref:  objectRef(s.cfg, key),
			})
		}
	}

	s.logger.Debug().Int("count", len(entries)).Str("bucket", s.cfg.Bucket).Msg("s3 source listed")
	return entries, nil
}

// objectRef builds the streamable URL for an object key.
func objectRef(cfg S3Config, key string) string {
	if cfg.PublicBaseURL != "" {
		return fmt.Sprintf("%s/%s", strings.TrimRight(cfg.PublicBaseURL, "/"), key)
	}
	if cfg.Endpoint != "" {
		if cfg.UsePathStyle {
			return fmt.Sprintf("%s/%s/%s", strings.TrimRight(cfg.Endpoint, "/"), cfg.Bucket, key)
		}
		return fmt.Sprintf("%s/%s", strings.TrimRight(cfg.Endpoint, "/"), key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", cfg.Bucket, cfg.Region, key)
}
