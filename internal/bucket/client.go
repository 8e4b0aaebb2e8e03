package bucket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/edvin/mirrord/internal/model"
)

// ErrMissingCredentials is returned by upload operations when the backend's
// attributes carry no object-store credentials. There is no HTTP fallback
// for uploads.
var ErrMissingCredentials = errors.New("bucket credentials not configured")

// Attribute keys for object-store credentials.
const (
	AttrRegion    = "region"
	AttrAccessKey = "access_key"
	AttrSecretKey = "secret_key"
)

// listTimeout bounds the plain-HTTP listing fallback.
const listTimeout = 10 * time.Second

// Client transfers files between a remote bucket and local disk. Listing
// prefers the object-store protocol and falls back to a plain HTTP GET
// expecting a JSON array; listing is best-effort and never fails hard.
type Client struct {
	logger     zerolog.Logger
	listClient *http.Client
	fileClient *http.Client
}

// NewClient creates a bucket Client.
func NewClient(logger zerolog.Logger) *Client {
	return &Client{
		logger:     logger.With().Str("component", "bucket").Logger(),
		listClient: &http.Client{Timeout: listTimeout},
		fileClient: &http.Client{},
	}
}

type creds struct {
	region    string
	accessKey string
	secretKey string
}

// HasCredentials reports whether attrs carry a full object-store
// credential set.
func HasCredentials(attrs map[string]string) bool {
	_, ok := credsFromAttributes(attrs)
	return ok
}

// credsFromAttributes extracts object-store credentials, reporting whether
// the full set is present.
func credsFromAttributes(attrs map[string]string) (creds, bool) {
	c := creds{
		region:    attrs[AttrRegion],
		accessKey: attrs[AttrAccessKey],
		secretKey: attrs[AttrSecretKey],
	}
	return c, c.region != "" && c.accessKey != "" && c.secretKey != ""
}

// splitBucketURL parses a bucket URL of the form
// scheme://endpoint/bucket[/prefix] into its parts.
func splitBucketURL(bucketURL string) (endpoint, bucketName, prefix string, err error) {
	u, err := url.Parse(bucketURL)
	if err != nil {
		return "", "", "", fmt.Errorf("parse bucket url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", "", fmt.Errorf("bucket url %q is not http(s)", bucketURL)
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return "", "", "", fmt.Errorf("bucket url %q has no bucket name", bucketURL)
	}
	bucketName, prefix, _ = strings.Cut(path, "/")
	return u.Scheme + "://" + u.Host, bucketName, prefix, nil
}

// s3Client returns an S3 client for the bucket endpoint using static
// credentials and path-style addressing.
func (c *Client) s3Client(endpoint string, cr creds) *s3.Client {
	return s3.New(s3.Options{
		BaseEndpoint: aws.String(endpoint),
		Region:       cr.region,
		Credentials:  awscreds.NewStaticCredentialsProvider(cr.accessKey, cr.secretKey, ""),
		UsePathStyle: true,
	})
}

// ListRemote enumerates the bucket's object tree. With full credentials it
// pages through the object-store listing; otherwise, or on any listing
// error, it falls back to a plain HTTP GET expecting a JSON array. A
// non-JSON or non-200 fallback response yields an empty tree, not an error.
func (c *Client) ListRemote(ctx context.Context, bucketURL string, attrs map[string]string) (*model.Folder, error) {
	if cr, ok := credsFromAttributes(attrs); ok {
		tree, err := c.listViaS3(ctx, bucketURL, cr)
		if err == nil {
			return tree, nil
		}
		c.logger.Warn().Err(err).Str("bucket", bucketURL).Msg("object-store listing failed, falling back to HTTP")
	}
	return c.listViaHTTP(ctx, bucketURL), nil
}

func (c *Client) listViaS3(ctx context.Context, bucketURL string, cr creds) (*model.Folder, error) {
	endpoint, bucketName, prefix, err := splitBucketURL(bucketURL)
	if err != nil {
		return nil, err
	}

	client := c.s3Client(endpoint, cr)
	input := &s3.ListObjectsV2Input{Bucket: aws.String(bucketName)}
	if prefix != "" {
		input.Prefix = aws.String(prefix + "/")
	}

	root := model.NewFolder("", "")
	paginator := s3.NewListObjectsV2Paginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects in %s: %w", bucketName, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			// Directory markers carry no content.
			if strings.HasSuffix(key, "/") {
				continue
			}
			if prefix != "" {
				key = strings.TrimPrefix(key, prefix+"/")
			}
			var mod time.Time
			if obj.LastModified != nil {
				mod = *obj.LastModified
			}
			addFile(root, key, aws.ToInt64(obj.Size), mod)
		}
	}
	return root, nil
}

// httpFileEntry is one element of the JSON array the fallback listing
// endpoint returns.
type httpFileEntry struct {
	Key          string    `json:"key"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

func (c *Client) listViaHTTP(ctx context.Context, bucketURL string) *model.Folder {
	root := model.NewFolder("", "")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bucketURL, nil)
	if err != nil {
		return root
	}
	resp, err := c.listClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("bucket", bucketURL).Msg("http listing failed")
		return root
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug().Int("status", resp.StatusCode).Str("bucket", bucketURL).Msg("http listing rejected")
		return root
	}

	var entries []httpFileEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		c.logger.Debug().Err(err).Str("bucket", bucketURL).Msg("http listing is not a JSON array")
		return root
	}

	for _, e := range entries {
		key := e.Key
		if key == "" {
			key = e.Name
		}
		if key == "" || strings.HasSuffix(key, "/") {
			continue
		}
		addFile(root, key, e.Size, e.LastModified)
	}
	return root
}
