package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const defaultWriteTimeout = 2 * time.Minute

var (
	errInvalidBucket   = errors.New("storage: bucket name is required")
	errInvalidObject   = errors.New("storage: object name is required")
	errNilReader       = errors.New("storage: content reader is required")
	errClientClosed    = errors.New("storage: client is closed")
	errMissingProject  = errors.New("storage: public base url is malformed")
	defaultPublicHost  = "https://storage.googleapis.com"
	errContentTypeReq  = errors.New("storage: content type is required")
	errContextRequired = errors.New("storage: context is required")
)

// ObjectInfo describes a stored object and its public address.
type ObjectInfo struct {
	Bucket      string
	Name        string
	Size        int64
	ContentType string
	PublicURL   string
}

// Client writes and deletes objects in a single bucket and composes
// their public URLs.
type Client struct {
	bucket        string
	publicBaseURL string
	writeTimeout  time.Duration
	clientOpts    []option.ClientOption

	mu     sync.Mutex
	gcs    *storage.Client
	closed bool
}

// ClientOption customises client behaviour.
type ClientOption func(*Client)

// WithWriteTimeout bounds individual object writes.
func WithWriteTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.writeTimeout = timeout
		}
	}
}

// WithClientOptions appends options applied when dialing the storage service.
func WithClientOptions(opts ...option.ClientOption) ClientOption {
	return func(c *Client) {
		c.clientOpts = append(c.clientOpts, opts...)
	}
}

// NewClient constructs a storage client bound to the given bucket.
// publicBaseURL overrides the default storage.googleapis.com address, e.g.
// for a CDN fronting the bucket; it may be empty.
func NewClient(bucket, publicBaseURL string, opts ...ClientOption) (*Client, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}
	publicBaseURL = strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")
	if publicBaseURL != "" {
		parsed, err := url.Parse(publicBaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, errMissingProject
		}
	}

	client := &Client{
		bucket:        bucket,
		publicBaseURL: publicBaseURL,
		writeTimeout:  defaultWriteTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Upload streams the content to the bucket under the given object name.
func (c *Client) Upload(ctx context.Context, object, contentType string, content io.Reader) (ObjectInfo, error) {
	if ctx == nil {
		return ObjectInfo{}, errContextRequired
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ObjectInfo{}, errInvalidObject
	}
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ObjectInfo{}, errContentTypeReq
	}
	if content == nil {
		return ObjectInfo{}, errNilReader
	}

	gcs, err := c.service(ctx)
	if err != nil {
		return ObjectInfo{}, err
	}

	writeCtx := ctx
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}

	writer := gcs.Bucket(c.bucket).Object(object).NewWriter(writeCtx)
	writer.ContentType = contentType

	size, err := io.Copy(writer, content)
	if err != nil {
		_ = writer.Close()
		return ObjectInfo{}, fmt.Errorf("storage: write object %s: %w", object, err)
	}
	if err := writer.Close(); err != nil {
		return ObjectInfo{}, fmt.Errorf("storage: finalize object %s: %w", object, err)
	}

	return ObjectInfo{
		Bucket:      c.bucket,
		Name:        object,
		Size:        size,
		ContentType: contentType,
		PublicURL:   c.PublicURL(object),
	}, nil
}

// Delete removes the object. A missing object is not an error.
func (c *Client) Delete(ctx context.Context, object string) error {
	if ctx == nil {
		return errContextRequired
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return errInvalidObject
	}

	gcs, err := c.service(ctx)
	if err != nil {
		return err
	}

	err = gcs.Bucket(c.bucket).Object(object).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: delete object %s: %w", object, err)
	}
	return nil
}

// PublicURL composes the publicly addressable URL for an object.
func (c *Client) PublicURL(object string) string {
	escaped := escapeObjectPath(object)
	if c.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s", c.publicBaseURL, escaped)
	}
	return fmt.Sprintf("%s/%s/%s", defaultPublicHost, c.bucket, escaped)
}

// Close releases the underlying storage client.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	gcs := c.gcs
	c.gcs = nil
	if gcs == nil {
		return nil
	}
	return gcs.Close()
}

func (c *Client) service(ctx context.Context) (*storage.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errClientClosed
	}
	if c.gcs != nil {
		return c.gcs, nil
	}

	gcs, err := storage.NewClient(ctx, c.clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: create client: %w", err)
	}
	c.gcs = gcs
	return gcs, nil
}

func escapeObjectPath(object string) string {
	segments := strings.Split(object, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
