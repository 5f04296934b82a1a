package s3blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://s3.example.com", normaliseEndpoint("https://s3.example.com", false))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("minio:9000", true))
}

func TestPublicBaseURL(t *testing.T) {
	cfg := ClientConfig{Bucket: "nft", Region: "us-east-1"}
	assert.Equal(t, "https://nft.s3.us-east-1.amazonaws.com", publicBaseURL(cfg, ""))
	assert.Equal(t, "http://localhost:9000/nft", publicBaseURL(cfg, "http://localhost:9000/"))

	cfg.PublicBaseURL = "https://cdn.example.com/"
	assert.Equal(t, "https://cdn.example.com", publicBaseURL(cfg, "http://localhost:9000"))
}

func TestNew_ValidatesAndBuildsURLs(t *testing.T) {
	_, err := New(context.Background(), ClientConfig{Region: "us-east-1"})
	assert.Error(t, err)
	_, err = New(context.Background(), ClientConfig{Bucket: "nft"})
	assert.Error(t, err)

	c, err := New(context.Background(), ClientConfig{
		Endpoint:       "localhost:9000",
		Region:         "us-east-1",
		Bucket:         "nft",
		AccessKey:      "minio",
		SecretKey:      "minio123",
		ForcePathStyle: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "nft", c.Bucket())

	w := NewWriter(c)
	assert.Equal(t, "http://localhost:9000/nft/images/a.png", w.URL("/images/a.png"))
}
