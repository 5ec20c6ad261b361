package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu          sync.Mutex
	objects     map[string][]byte
	headBuckets int
	bucketErr   error
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: make(map[string][]byte)} }

func (f *fakeS3) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headBuckets++
	return &s3.HeadBucketOutput{}, f.bucketErr
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[aws.ToString(in.Key)] = data
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	data, ok := f.objects[aws.ToString(in.Key)]
	f.mu.Unlock()
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	_, ok := f.objects[aws.ToString(in.Key)]
	f.mu.Unlock()
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.ListObjectsV2Output{}
	for k, v := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{
				Key:          aws.String(k),
				Size:         aws.Int64(int64(len(v))),
				LastModified: aws.Time(time.Unix(0, 0)),
			})
		}
	}
	return out, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range in.Delete.Objects {
		delete(f.objects, aws.ToString(id.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

type fakePresigner struct{ lastTTL time.Duration }

func (p *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	p.lastTTL = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://bucket.example/" + aws.ToString(in.Key) + "?X-Amz-Signature=abc"}, nil
}

func TestS3Store_RoundTrip(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	presigner := &fakePresigner{}
	s := newS3Store(api, presigner, "pdf-files", "gopherlock/")

	require.NoError(t, s.Put(ctx, "uploads/a.pdf", []byte("pdf"), contentTypePDF))
	assert.Contains(t, api.objects, "gopherlock/uploads/a.pdf")

	got, err := s.Get(ctx, "uploads/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf"), got)

	u, err := s.SignedURL(ctx, "uploads/a.pdf", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.example/gopherlock/uploads/a.pdf?X-Amz-Signature=abc", u)
	assert.Equal(t, time.Hour, presigner.lastTTL)

	objs, err := s.List(ctx, UploadsPrefix)
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "uploads/a.pdf", objs[0].Key)

	require.NoError(t, s.Delete(ctx, "uploads/a.pdf"))
	_, err = s.Get(ctx, "uploads/a.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.SignedURL(ctx, "uploads/a.pdf", time.Hour)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 1, api.headBuckets, "bucket is verified once")
}

func TestS3Store_BucketErrorIsSticky(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	api.bucketErr = errors.New("access denied")
	s := newS3Store(api, &fakePresigner{}, "pdf-files", "")

	assert.Error(t, s.Put(ctx, "uploads/a.pdf", nil, ""))
	_, err := s.Get(ctx, "uploads/a.pdf")
	assert.ErrorContains(t, err, "access denied")
	assert.Equal(t, 1, api.headBuckets)
}

func TestNewS3Store_RequiresBucketAndRegion(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3StoreConfig{Region: "us-east-1"})
	assert.Error(t, err)
	_, err = NewS3Store(context.Background(), S3StoreConfig{Bucket: "b"})
	assert.Error(t, err)
}
