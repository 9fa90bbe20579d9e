package utils

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"badge-engine/models"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	objects map[string][]byte
	getErr  error
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func TestR2BucketRoundTrip(t *testing.T) {
	fake := &fakeObjects{objects: map[string][]byte{}}
	bucket := &R2Bucket{Client: fake, Bucket: "badges"}

	require.NoError(t, bucket.UploadObject(context.Background(), "seed.json", []byte(`{"badges":[]}`)))
	data, err := bucket.FetchObject(context.Background(), "seed.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"badges":[]}`, string(data))

	_, err = bucket.FetchObject(context.Background(), "missing.json")
	assert.ErrorContains(t, err, "missing.json")
}

func TestR2BucketRejectsOversizedObject(t *testing.T) {
	fake := &fakeObjects{objects: map[string][]byte{
		"big.json": bytes.Repeat([]byte("x"), MaxObjectSize+1),
	}}
	bucket := &R2Bucket{Client: fake, Bucket: "badges"}
	_, err := bucket.FetchObject(context.Background(), "big.json")
	assert.ErrorContains(t, err, "exceeds")
}

func TestWriteAndReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "catalog.json")
	require.NoError(t, WriteFile(path, []byte("hello")))

	data, err := ReadFileLimited(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("DEBUG")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger("loud")
	assert.Error(t, err)
}

func TestOpenDatabaseSQLite(t *testing.T) {
	db, err := OpenDatabase("sqlite", "file::memory:")
	require.NoError(t, err)
	for _, m := range models.AllModels() {
		assert.True(t, db.Migrator().HasTable(m))
	}

	_, err = OpenDatabase("mysql", "")
	assert.True(t, err != nil && strings.Contains(err.Error(), "mysql"))
}
