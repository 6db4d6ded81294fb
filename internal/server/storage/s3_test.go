package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	s3API
	objects   map[string][]byte
	headErr   error
	deleteErr error
	putErr    error
	calls     []string
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.calls = append(f.calls, "put")
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.calls = append(f.calls, "head")
	if f.headErr != nil {
		return nil, f.headErr
	}
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.calls = append(f.calls, "delete")
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func newTestStore(f *fakeS3) *S3Store {
	return &S3Store{client: f, bucket: "folio", publicURL: "https://cdn.example.com/folio"}
}

func TestS3Store_PutReturnsPublicURL(t *testing.T) {
	f := newFakeS3()
	s := newTestStore(f)

	u, err := s.Put(context.Background(), "projects/2024/01/02/abc.jpg", "image/jpeg", []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/folio/projects/2024/01/02/abc.jpg", u)
	assert.Equal(t, []byte("jpeg"), f.objects["projects/2024/01/02/abc.jpg"])
}

func TestS3Store_PutError(t *testing.T) {
	f := newFakeS3()
	f.putErr = errors.New("access denied")

	_, err := newTestStore(f).Put(context.Background(), "k.jpg", "image/jpeg", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, f.putErr)
}

func TestS3Store_Delete(t *testing.T) {
	f := newFakeS3()
	f.objects["projects/a.jpg"] = []byte("x")
	s := newTestStore(f)

	require.NoError(t, s.Delete(context.Background(), "https://cdn.example.com/folio/projects/a.jpg"))
	assert.Empty(t, f.objects)
	assert.Equal(t, []string{"head", "delete"}, f.calls)
}

func TestS3Store_Delete_NotFound(t *testing.T) {
	tests := []struct {
		name    string
		headErr error
	}{
		{"typed not found", nil},
		{"api error code", &smithy.GenericAPIError{Code: "NoSuchKey"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeS3()
			f.headErr = tt.headErr

			err := newTestStore(f).Delete(context.Background(), "https://cdn.example.com/folio/projects/gone.jpg")
			assert.ErrorIs(t, err, ErrObjectNotFound)
			assert.NotContains(t, f.calls, "delete")
		})
	}
}

func TestS3Store_Delete_ForeignURL(t *testing.T) {
	f := newFakeS3()
	err := newTestStore(f).Delete(context.Background(), "https://elsewhere.example.com/x.jpg")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Empty(t, f.calls)
}

func TestS3Store_Delete_OtherErrorsSurface(t *testing.T) {
	f := newFakeS3()
	f.headErr = &smithy.GenericAPIError{Code: "AccessDenied"}

	err := newTestStore(f).Delete(context.Background(), "https://cdn.example.com/folio/a.jpg")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrObjectNotFound)

	f = newFakeS3()
	f.objects["a.jpg"] = nil
	f.deleteErr = errors.New("slow down")
	err = newTestStore(f).Delete(context.Background(), "https://cdn.example.com/folio/a.jpg")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrObjectNotFound)
}

func TestNewS3Store_UsesSeams(t *testing.T) {
	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() { loadDefaultAWSConfig, newS3ClientFromConfig = origLoad, origNew })

	var gotRegion string
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		gotRegion = lo.Region
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		for _, fn := range optFns {
			fn(&opts)
		}
		return newFakeS3()
	}

	s, err := NewS3Store(context.Background(), S3Options{
		Region: "eu-west-1", Bucket: "b", BaseEndpoint: "http://minio:9000", PublicURL: "http://minio:9000/b/",
	})
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", gotRegion)
	assert.Equal(t, "http://minio:9000", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)
	assert.Equal(t, "http://minio:9000/b", s.publicURL)
}

func TestNewS3Store_ConfigError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = origLoad })

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no creds")
	}
	_, err := NewS3Store(context.Background(), S3Options{})
	require.Error(t, err)
}
