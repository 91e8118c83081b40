package rest

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// Upload stores an object in a bucket. With upsert an existing object at
// the same path is replaced.
func (c *Client) Upload(ctx context.Context, bucket, path string, data []byte, contentType string, upsert bool) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return c.do(ctx, request{
		Method:      http.MethodPost,
		Path:        storagePrefix + bucket + "/" + strings.TrimLeft(path, "/"),
		RawBody:     data,
		ContentType: contentType,
		Headers: map[string]string{
			"x-upsert":      strconv.FormatBool(upsert),
			"Cache-Control": "max-age=3600",
		},
	}, nil)
}

// PublicURL returns the unauthenticated URL of an object in a public bucket.
func (c *Client) PublicURL(bucket, path string) string {
	return c.baseURL + storagePrefix + "public/" + bucket + "/" + strings.TrimLeft(path, "/")
}
