// Package publish uploads completed artifacts to a blob bucket.
//
// Bucket URLs follow gocloud.dev conventions: file:///srv/wavbatch for a
// local directory or s3://bucket?region=eu-west-1 for S3-compatible storage.
// Uploads are skipped for keys that already exist, so re-running a batch is
// safe.
package publish

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/s3blob"   // s3:// driver

	"wavbatch/internal/layout"
	"wavbatch/internal/logging"
	"wavbatch/internal/services"
)

// Result counts what a publish pass did.
type Result struct {
	Uploaded int
	Skipped  int
	Failed   int
}

// Publisher writes converted files and chunks under a key prefix.
type Publisher struct {
	bucket *blob.Bucket
	prefix string
	logger *slog.Logger
}

// Open connects to the bucket at bucketURL.
func Open(ctx context.Context, bucketURL, prefix string, logger *slog.Logger) (*Publisher, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return &Publisher{
		bucket: bucket,
		prefix: prefix,
		logger: logging.NewComponentLogger(logger, "publish"),
	}, nil
}

// Close releases the bucket connection.
func (p *Publisher) Close() error {
	if p == nil || p.bucket == nil {
		return nil
	}
	return p.bucket.Close()
}

// Key returns the object key for a file at rel below the completed root.
func (p *Publisher) Key(rel string) string {
	return p.prefix + filepath.ToSlash(rel)
}

// PublishBatch uploads converted/ and chunks/ files of completed/<batch>.
// Per-file failures are logged and counted; only a missing or unreadable
// batch directory is returned as an error.
func (p *Publisher) PublishBatch(ctx context.Context, completedRoot, batch string) (Result, error) {
	var result Result
	root := filepath.Join(completedRoot, batch)
	ctx = services.WithBatch(ctx, batch)
	logger := logging.WithContext(ctx, p.logger)

	err := filepath.WalkDir(root, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(completedRoot, file)
		if err != nil {
			return err
		}
		if !publishable(rel) {
			return nil
		}
		key := p.Key(rel)
		exists, err := p.bucket.Exists(ctx, key)
		if err != nil {
			logging.WarnWithContext(logger, "bucket lookup failed", "publish_failed",
				logging.String("key", key),
				logging.Error(err),
				logging.String(logging.FieldImpact, "artifact not published this run"),
			)
			result.Failed++
			return nil
		}
		if exists {
			result.Skipped++
			return nil
		}
		if err := p.upload(ctx, file, key); err != nil {
			logging.WarnWithContext(logger, "artifact upload failed", "publish_failed",
				logging.String("key", key),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check bucket credentials and connectivity"),
				logging.String(logging.FieldImpact, "artifact not published this run"),
			)
			result.Failed++
			return nil
		}
		result.Uploaded++
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("publish batch %s: %w", batch, err)
	}

	logger.Info("batch published",
		logging.String(logging.FieldEventType, "publish_complete"),
		logging.Int("uploaded", result.Uploaded),
		logging.Int("skipped", result.Skipped),
		logging.Int("failed", result.Failed),
	)
	return result, nil
}

func (p *Publisher) upload(ctx context.Context, file, key string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	opts := &blob.WriterOptions{ContentType: contentType(file)}
	w, err := p.bucket.NewWriter(ctx, key, opts)
	if err != nil {
		return fmt.Errorf("create writer for %s: %w", key, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write data to %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}
	return nil
}

// publishable matches <batch>/<stem>/converted/* and <batch>/<stem>/chunks/*.
func publishable(rel string) bool {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 4 {
		return false
	}
	return parts[2] == layout.ConvertedDir || parts[2] == layout.ChunksDir
}

func contentType(file string) string {
	if ct := mime.TypeByExtension(path.Ext(file)); ct != "" {
		return ct
	}
	if strings.EqualFold(path.Ext(file), ".mp3") {
		return "audio/mpeg"
	}
	return "application/octet-stream"
}
