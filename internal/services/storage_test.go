package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentKey(t *testing.T) {
	key := DocumentKey(42, ".jpg")

	assert.True(t, strings.HasPrefix(key, "documents/42/"), key)
	assert.True(t, strings.HasSuffix(key, ".jpg"), key)
	assert.NotEqual(t, key, DocumentKey(42, ".jpg"))
}

func TestNewStorageService(t *testing.T) {
	svc, err := NewStorageService(StorageOptions{
		Endpoint:  "localhost:3900",
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "documents",
		Region:    "garage",
	})
	require.NoError(t, err)
	assert.Equal(t, "documents", svc.GetBucketName())
}
