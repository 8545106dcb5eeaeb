package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/HarshS16/VeilPlay/internal/config"
)

// Thumbnails are immutable once written, so downstream caches may hold them
// for a long time.
const thumbCacheControl = "public, max-age=31536000, immutable"

// ThumbnailStore uploads mirrored thumbnails to an S3-compatible bucket and
// hands back the public URL the API should serve instead of the upstream one.
type ThumbnailStore struct {
	uploader  *manager.Uploader
	bucket    string
	keyPrefix string
	baseURL   string
}

// NewThumbnailStore builds the S3 client for the configured object store. A
// custom endpoint switches the client to path-style addressing so MinIO and
// similar services work out of the box.
func NewThumbnailStore(ctx context.Context, cfg config.ObjectStoreConfig) (*ThumbnailStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("thumbnail store: bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, storeLoadOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("thumbnail store: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &ThumbnailStore{
		uploader:  manager.NewUploader(client),
		bucket:    cfg.Bucket,
		keyPrefix: "thumbs",
		baseURL:   strings.TrimSuffix(cfg.PublicBaseURL, "/"),
	}, nil
}

func storeLoadOptions(cfg config.ObjectStoreConfig) []func(*awsconfig.LoadOptions) error {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return opts
	}

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
		if service != s3.ServiceID {
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		}
		return aws.Endpoint{URL: endpoint, SigningRegion: cfg.Region}, nil
	})

	return append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
}

// Save writes the thumbnail under the store's key prefix and returns the URL
// to persist on the video record.
func (s *ThumbnailStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	trimmed := strings.TrimLeft(name, "/")
	if trimmed == "" {
		return "", fmt.Errorf("thumbnail store: empty object name")
	}
	key := path.Join(s.keyPrefix, trimmed)

	input := &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         r,
		ACL:          s3types.ObjectCannedACLPublicRead,
		CacheControl: aws.String(thumbCacheControl),
	}
	if ct := contentTypeForKey(key); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("thumbnail store: upload %s: %w", key, err)
	}

	if s.baseURL == "" {
		return key, nil
	}
	return s.baseURL + "/" + key, nil
}

func contentTypeForKey(key string) string {
	switch ext := strings.ToLower(path.Ext(key)); ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return mime.TypeByExtension(ext)
	}
}
