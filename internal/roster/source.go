package roster

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/qrkiosk/internal/netx"
)

// Opener fetches the raw roster bytes named by source.
type Opener interface {
	Open(ctx context.Context, source string) ([]byte, error)
}

// S3Config carries the object-store settings for s3:// sources.
// Empty AccessKey falls back to the default AWS credential chain.
type S3Config struct {
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

// SourceOpener resolves a source string by its form:
//
//	path/to/data.csv, file:///abs/data.csv   local file
//	http://..., https://...                  GET
//	s3://bucket/key                          S3 GetObject
type SourceOpener struct {
	HTTPClient *http.Client
	S3         S3Config
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3ObjectGetter {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type s3ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

func (o *SourceOpener) Open(ctx context.Context, source string) ([]byte, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return netx.Fetch(ctx, o.HTTPClient, source)
	case strings.HasPrefix(source, "s3://"):
		return o.openS3(ctx, source)
	case strings.HasPrefix(source, "file://"):
		u, err := url.Parse(source)
		if err != nil {
			return nil, err
		}
		return os.ReadFile(u.Host + u.Path)
	default:
		return os.ReadFile(source)
	}
}

func (o *SourceOpener) openS3(ctx context.Context, source string) ([]byte, error) {
	u, err := url.Parse(source)
	if err != nil {
		return nil, err
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("s3 source needs bucket and key: %q", source)
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(o.S3.Region)}
	if o.S3.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.S3.AccessKey, o.S3.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(so *s3.Options) {
		if o.S3.BaseEndpoint != "" {
			so.BaseEndpoint = aws.String(o.S3.BaseEndpoint)
			// MinIO needs path-style addressing
			so.UsePathStyle = true
		}
	})

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}
