package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfoliotree/app/src/pkg/model"
)

func TestLocalBlobStore_PutGetDelete(t *testing.T) {
	store, err := NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	key := BlobKey(3, "Resume.PDF")
	assert.True(t, strings.HasPrefix(key, "portfolios/3/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))

	require.NoError(t, store.Put(ctx, key, strings.NewReader("hello"), 5, "application/pdf"))

	rc, err := store.Get(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(data))

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key), "deleting twice is fine")
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestLocalBlobStore_RejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"../outside", "/etc/passwd", "a/../../b", ""} {
		err := store.Put(ctx, key, strings.NewReader("x"), 1, "")
		assert.ErrorIs(t, err, model.ErrInvalidInput, key)
	}
}

func TestBlobKey_DropsOddExtensions(t *testing.T) {
	assert.False(t, strings.Contains(BlobKey(1, "photo.averyveryverylongext"), "averyvery"))
	assert.NotEqual(t, BlobKey(1, "a.png"), BlobKey(1, "a.png"))
}

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if *in.Bucket != "assets" {
		return nil, errors.New("wrong bucket")
	}
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3BlobStore(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	store := NewS3BlobStoreWithClient(fake, "assets")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "portfolios/1/x.png", strings.NewReader("png"), 3, "image/png"))
	rc, err := store.Get(ctx, "portfolios/1/x.png")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "png", string(data))

	require.NoError(t, store.Delete(ctx, "portfolios/1/x.png"))
	_, err = store.Get(ctx, "portfolios/1/x.png")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
