package roster

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceOpener_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(header+"\nAna,Lee,,,,U1,"), 0o600))

	op := &SourceOpener{}

	got, err := op.Open(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, string(got), "Ana,Lee")

	got, err = op.Open(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Contains(t, string(got), "Ana,Lee")

	_, err = op.Open(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

func TestSourceOpener_HTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/assets/data.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(header + "\nAna,Lee,,,,U1,"))
	}))
	defer ts.Close()

	op := &SourceOpener{HTTPClient: ts.Client()}

	got, err := op.Open(context.Background(), ts.URL+"/assets/data.csv")
	require.NoError(t, err)
	assert.Contains(t, string(got), "Ana,Lee")

	_, err = op.Open(context.Background(), ts.URL+"/nope.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

type fakeS3 struct {
	in   *s3.GetObjectInput
	body string
	err  error
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func stubS3(t *testing.T, fake *fakeS3) (*awsconfig.LoadOptions, *s3.Options) {
	t.Helper()
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	var lo awsconfig.LoadOptions
	var so s3.Options
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				return aws.Config{}, err
			}
		}
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3ObjectGetter {
		for _, fn := range optFns {
			fn(&so)
		}
		return fake
	}
	return &lo, &so
}

func TestSourceOpener_S3(t *testing.T) {
	fake := &fakeS3{body: header + "\nAna,Lee,,,,U1,"}
	lo, so := stubS3(t, fake)

	op := &SourceOpener{S3: S3Config{
		Region:       "eu-central-1",
		BaseEndpoint: "http://127.0.0.1:9000",
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
	}}

	got, err := op.Open(context.Background(), "s3://rosters/site-a/data.csv")
	require.NoError(t, err)
	assert.Contains(t, string(got), "Ana,Lee")

	require.NotNil(t, fake.in)
	assert.Equal(t, "rosters", aws.ToString(fake.in.Bucket))
	assert.Equal(t, "site-a/data.csv", aws.ToString(fake.in.Key))

	assert.Equal(t, "eu-central-1", lo.Region)
	require.NotNil(t, lo.Credentials, "static credentials applied")
	creds, err := lo.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "minioadmin", creds.AccessKeyID)

	require.NotNil(t, so.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *so.BaseEndpoint)
	assert.True(t, so.UsePathStyle)
}

func TestSourceOpener_S3_DefaultCredentialsAndEndpoint(t *testing.T) {
	fake := &fakeS3{body: header}
	lo, so := stubS3(t, fake)

	op := &SourceOpener{S3: S3Config{Region: "us-east-1"}}
	_, err := op.Open(context.Background(), "s3://rosters/data.csv")
	require.NoError(t, err)

	assert.Nil(t, lo.Credentials)
	assert.Nil(t, so.BaseEndpoint)
	assert.False(t, so.UsePathStyle)
}

func TestSourceOpener_S3_Errors(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		stubS3(t, &fakeS3{})
		_, err := (&SourceOpener{}).Open(context.Background(), "s3://rosters")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket and key")
	})

	t.Run("get object fails", func(t *testing.T) {
		stubS3(t, &fakeS3{err: errors.New("NoSuchKey")})
		_, err := (&SourceOpener{}).Open(context.Background(), "s3://rosters/data.csv")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "NoSuchKey")
	})

	t.Run("config fails", func(t *testing.T) {
		origLoad := loadDefaultAWSConfig
		t.Cleanup(func() { loadDefaultAWSConfig = origLoad })
		loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
			return aws.Config{}, errors.New("no region")
		}
		_, err := (&SourceOpener{}).Open(context.Background(), "s3://rosters/data.csv")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "aws config")
	})
}
