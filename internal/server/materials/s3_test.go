package materials

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    error
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) id(bucket, key *string) string { return aws.ToString(bucket) + "/" + aws.ToString(key) }

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[f.id(in.Bucket, in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	data, ok := f.objects[f.id(in.Bucket, in.Key)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	if _, ok := f.objects[f.id(in.Bucket, in.Key)]; !ok {
		return nil, &smithy.GenericAPIError{Code: "NotFound"}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	delete(f.objects, f.id(in.Bucket, in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	fake := newFakeS3()
	s := NewS3StoreWithClient(fake, "sessions", "materials/")
	exerciseStore(t, s)
}

func TestS3Store_PrefixApplied(t *testing.T) {
	fake := newFakeS3()
	s := NewS3StoreWithClient(fake, "sessions", "materials/")

	require.NoError(t, s.Save(context.Background(), "1.session", []byte("x")))
	_, ok := fake.objects["sessions/materials/1.session"]
	assert.True(t, ok)
}

func TestS3Store_BackendErrorIsNotNotFound(t *testing.T) {
	fake := newFakeS3()
	fake.fail = errors.New("s3 unavailable")
	s := NewS3StoreWithClient(fake, "sessions", "")

	_, err := s.Exists(context.Background(), "1.session")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3 unavailable")
}

func TestNewS3Store_ConfiguresClient(t *testing.T) {
	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	defer func() { loadDefaultAWSConfig, newS3ClientFromConfig = origLoad, origNew }()

	var gotRegion string
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				return aws.Config{}, err
			}
		}
		gotRegion = lo.Region
		return aws.Config{}, nil
	}

	var opts s3.Options
	fake := newFakeS3()
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) S3API {
		for _, fn := range optFns {
			fn(&opts)
		}
		return fake
	}

	s, err := NewS3Store(context.Background(), S3Options{
		Region: "us-east-1", AccessKey: "a", SecretKey: "b",
		BaseEndpoint: "http://127.0.0.1:9000/", Bucket: "sessions",
	})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", gotRegion)
	assert.Equal(t, "http://127.0.0.1:9000/", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)
	assert.Equal(t, "sessions", s.bucket)
}

func TestNewS3Store_LoadError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	defer func() { loadDefaultAWSConfig = origLoad }()

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}

	_, err := NewS3Store(context.Background(), S3Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load-fail")
}
