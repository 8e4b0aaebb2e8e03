package bucket

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/edvin/mirrord/internal/model"
)

// Download mirrors the remote tree under localRoot, preserving folder
// hierarchy. A file already present locally is counted as skipped and left
// untouched, so re-runs are idempotent. Per-file failures are collected and
// do not abort the walk.
func (c *Client) Download(ctx context.Context, bucketURL string, attrs map[string]string, localRoot string) (model.FileBackupResult, error) {
	var result model.FileBackupResult

	tree, err := c.ListRemote(ctx, bucketURL, attrs)
	if err != nil {
		return result, err
	}

	var s3client *s3.Client
	var bucketName, prefix string
	if cr, ok := credsFromAttributes(attrs); ok {
		if endpoint, name, pfx, err := splitBucketURL(bucketURL); err == nil {
			s3client = c.s3Client(endpoint, cr)
			bucketName = name
			prefix = pfx
		}
	}

	for _, file := range Flatten(tree) {
		result.TotalFiles++

		localPath := filepath.Join(localRoot, filepath.FromSlash(file.Key))
		if _, err := os.Stat(localPath); err == nil {
			result.SkippedFiles++
			continue
		}

		if err := c.downloadFile(ctx, s3client, bucketName, prefix, bucketURL, file.Key, localPath); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", file.Key, err))
			continue
		}
		result.DownloadedFiles++
	}

	c.logger.Info().
		Int("total", result.TotalFiles).
		Int("downloaded", result.DownloadedFiles).
		Int("skipped", result.SkippedFiles).
		Int("errors", len(result.Errors)).
		Str("bucket", bucketURL).
		Msg("file backup finished")
	return result, nil
}

func (c *Client) downloadFile(ctx context.Context, s3client *s3.Client, bucketName, prefix, bucketURL, key, localPath string) error {
	var body io.ReadCloser

	if s3client != nil {
		objectKey := key
		if prefix != "" {
			objectKey = prefix + "/" + key
		}
		out, err := s3client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucketName),
			Key:    aws.String(objectKey),
		})
		if err != nil {
			return fmt.Errorf("get object: %w", err)
		}
		body = out.Body
	} else {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, joinURL(bucketURL, key), nil)
		if err != nil {
			return err
		}
		resp, err := c.fileClient.Do(req)
		if err != nil {
			return fmt.Errorf("fetch file: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("fetch file: status %d", resp.StatusCode)
		}
		body = resp.Body
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		os.Remove(localPath)
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Upload pushes every file under localRoot to the bucket. Uploads always
// overwrite: the local mirror is the source of truth on this path. Files
// that were already present remotely (per a best-effort pre-listing) are
// reported as matched but are overwritten all the same. Object-store
// credentials are required; there is no HTTP fallback for uploads.
func (c *Client) Upload(ctx context.Context, localRoot, bucketURL string, attrs map[string]string) (model.FileUploadResult, error) {
	var result model.FileUploadResult

	cr, ok := credsFromAttributes(attrs)
	if !ok {
		return result, ErrMissingCredentials
	}
	endpoint, bucketName, prefix, err := splitBucketURL(bucketURL)
	if err != nil {
		return result, err
	}
	s3client := c.s3Client(endpoint, cr)

	remote, err := c.listViaS3(ctx, bucketURL, cr)
	var existing map[string]model.FileInfo
	if err != nil {
		existing = map[string]model.FileInfo{}
	} else {
		existing = Flatten(remote)
	}

	err = filepath.WalkDir(localRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(localRoot, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		result.TotalFiles++

		if err := c.putFile(ctx, s3client, bucketName, prefix, key, path); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", key, err))
			return nil
		}
		if _, ok := existing[key]; ok {
			result.MatchedFiles++
		} else {
			result.UploadedFiles++
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("walk local tree: %w", err)
	}

	c.logger.Info().
		Int("total", result.TotalFiles).
		Int("uploaded", result.UploadedFiles).
		Int("matched", result.MatchedFiles).
		Int("errors", len(result.Errors)).
		Str("bucket", bucketURL).
		Msg("file upload finished")
	return result, nil
}

func (c *Client) putFile(ctx context.Context, s3client *s3.Client, bucketName, prefix, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	objectKey := key
	if prefix != "" {
		objectKey = prefix + "/" + key
	}
	_, err = s3client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(objectKey),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
