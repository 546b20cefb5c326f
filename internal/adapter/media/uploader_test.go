package media

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/config"
)

type capturePresigner struct {
	in      *s3.PutObjectInput
	expires time.Duration
	err     error
}

func (c *capturePresigner) PresignPutObject(_ context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	c.in = in
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	c.expires = opts.Expires
	if c.err != nil {
		return nil, c.err
	}
	return &v4.PresignedHTTPRequest{
		URL:          "https://bucket.example/" + *in.Key,
		Method:       http.MethodPut,
		SignedHeader: http.Header{"Content-Type": []string{*in.ContentType}},
	}, nil
}

func testMediaConfig() config.MediaConfig {
	return config.MediaConfig{
		Bucket:     "im-media",
		Region:     "us-east-1",
		Endpoint:   "http://127.0.0.1:9000",
		AccessKey:  "minioadmin",
		SecretKey:  "minioadmin",
		PresignTTL: 15 * time.Minute,
		MaxBytes:   1024,
	}
}

func TestUploader_PresignUpload(t *testing.T) {
	p := &capturePresigner{}
	u := newUploader(p, testMediaConfig())
	u.now = func() time.Time { return time.UnixMilli(1_000) }

	up, err := u.PresignUpload(context.Background(), "alice", "image/png", 512)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(up.Key, "messages/alice/"))
	assert.Equal(t, http.MethodPut, up.Method)
	assert.Equal(t, "https://bucket.example/"+up.Key, up.URL)
	assert.Equal(t, int64(1_000)+(15*time.Minute).Milliseconds(), up.ExpiresAt)

	require.NotNil(t, p.in)
	assert.Equal(t, "im-media", *p.in.Bucket)
	assert.Equal(t, "image/png", *p.in.ContentType)
	assert.Equal(t, int64(512), *p.in.ContentLength)
	assert.Equal(t, 15*time.Minute, p.expires)
}

func TestUploader_Rejects(t *testing.T) {
	u := newUploader(&capturePresigner{}, testMediaConfig())

	cases := []struct {
		name        string
		user        string
		contentType string
		size        int64
	}{
		{"no owner", "", "image/png", 10},
		{"bad content type", "alice", ";;", 10},
		{"not media", "alice", "application/pdf", 10},
		{"empty", "alice", "audio/ogg", 0},
		{"too large", "alice", "audio/ogg", 2048},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := u.PresignUpload(context.Background(), tc.user, tc.contentType, tc.size)
			assert.ErrorIs(t, err, ErrInvalidUpload)
		})
	}
}

func TestUploader_PresignFailure(t *testing.T) {
	u := newUploader(&capturePresigner{err: errors.New("signer down")}, testMediaConfig())

	_, err := u.PresignUpload(context.Background(), "alice", "audio/webm", 10)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidUpload)
}

func TestNewUploader_SignsPathStyleURL(t *testing.T) {
	u, err := NewUploader(context.Background(), testMediaConfig())
	require.NoError(t, err)

	up, err := u.PresignUpload(context.Background(), "bob", "audio/webm", 100)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(up.URL, "http://127.0.0.1:9000/im-media/messages/bob/"), up.URL)
	assert.Contains(t, up.URL, "X-Amz-Signature=")
	assert.Contains(t, up.URL, "X-Amz-Expires=900")
}
