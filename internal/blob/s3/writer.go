package s3blob

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/nftstore/internal/domain"
)

// partSize is the multipart chunk size; bodies below it go up in one request.
const partSize int64 = 5 * 1024 * 1024

// Writer implements domain.BlobWriter on an S3-compatible bucket.
type Writer struct {
	uploader *manager.Uploader
	bucket   string
	baseURL  string
}

// NewWriter creates a Writer for the client's bucket.
func NewWriter(c *Client) *Writer {
	return &Writer{
		uploader: manager.NewUploader(c.S3(), func(u *manager.Uploader) {
			u.PartSize = partSize
		}),
		bucket:  c.Bucket(),
		baseURL: c.baseURL,
	}
}

// Put uploads data under key.
func (w *Writer) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(key),
		Body:   data,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := w.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("s3blob: upload %s: %w", key, err)
	}
	return nil
}

// URL returns the public URL of key.
func (w *Writer) URL(key string) string {
	return w.baseURL + "/" + strings.TrimLeft(key, "/")
}

var _ domain.BlobWriter = (*Writer)(nil)
