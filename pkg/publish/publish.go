// Package publish mirrors written partitions to object storage.
//
// A mirror replaces the objects under <prefix>/year=Y/month=M/: every local
// part file is uploaded, then objects under that prefix that were not part
// of the upload are deleted. A failure leaves the local partition intact.
package publish

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tripflow/pkg/errors"
	"github.com/ajitpratap0/tripflow/pkg/formats/columnar"
	"github.com/ajitpratap0/tripflow/pkg/logger"
	"github.com/ajitpratap0/tripflow/pkg/models"
)

// Publisher mirrors one promoted partition and returns the object URIs.
type Publisher interface {
	Publish(ctx context.Context, key models.PartitionKey, localDir string, files []string) ([]string, error)
	Close() error
}

// Config selects and configures the object store.
type Config struct {
	Target          string
	Region          string
	Endpoint        string
	CredentialsFile string
	PathStyle       bool
}

// Target is a parsed s3:// or gs:// location.
type Target struct {
	Scheme string
	Bucket string
	Prefix string
}

// ParseTarget parses scheme://bucket/prefix.
func ParseTarget(s string) (Target, error) {
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return Target{}, errors.Newf(errors.ErrorTypeConfig, "publish target %q is not a URI", s)
	}
	switch scheme {
	case "s3", "gs":
	default:
		return Target{}, errors.Newf(errors.ErrorTypeConfig, "unsupported publish scheme %q", scheme)
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Target{}, errors.Newf(errors.ErrorTypeConfig, "publish target %q has no bucket", s)
	}
	return Target{Scheme: scheme, Bucket: bucket, Prefix: strings.Trim(prefix, "/")}, nil
}

// PartitionPrefix is the object prefix holding key, with a trailing slash.
func (t Target) PartitionPrefix(key models.PartitionKey) string {
	return path.Join(t.Prefix, key.SlashDir()) + "/"
}

// URI renders an object key as a URI.
func (t Target) URI(object string) string {
	return t.Scheme + "://" + t.Bucket + "/" + object
}

func (t Target) String() string {
	if t.Prefix == "" {
		return t.Scheme + "://" + t.Bucket
	}
	return t.Scheme + "://" + t.Bucket + "/" + t.Prefix
}

// objectStore is the minimal surface the mirror needs from a bucket.
type objectStore interface {
	put(ctx context.Context, object, localPath, contentType string) error
	list(ctx context.Context, prefix string) ([]string, error)
	remove(ctx context.Context, objects []string) error
	close() error
}

// New builds the publisher for cfg.Target.
func New(ctx context.Context, cfg Config, log *zap.Logger) (Publisher, error) {
	target, err := ParseTarget(cfg.Target)
	if err != nil {
		return nil, err
	}
	var store objectStore
	switch target.Scheme {
	case "s3":
		store, err = newS3Store(ctx, target.Bucket, cfg)
	case "gs":
		store, err = newGCSStore(ctx, target.Bucket, cfg)
	}
	if err != nil {
		return nil, publishError("failed to initialize object store client", err).WithDetail("target", target.String())
	}
	return newMirror(target, store, log), nil
}

// Mirror publishes partitions into a single bucket prefix.
type Mirror struct {
	target Target
	store  objectStore
	logger *zap.Logger
}

func newMirror(target Target, store objectStore, log *zap.Logger) *Mirror {
	return &Mirror{
		target: target,
		store:  store,
		logger: logger.OrNop(log).With(zap.String("component", "publisher"), zap.Stringer("target", target)),
	}
}

// Publish uploads files under localDir and deletes stale objects.
func (m *Mirror) Publish(ctx context.Context, key models.PartitionKey, localDir string, files []string) ([]string, error) {
	prefix := m.target.PartitionPrefix(key)
	contentType := columnar.GetFormatInfo(columnar.Parquet).MIMEType

	keep := make(map[string]struct{}, len(files))
	uris := make([]string, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeCanceled, "publish canceled")
		}
		rel, err := filepath.Rel(localDir, f)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = filepath.Base(f)
		}
		object := prefix + filepath.ToSlash(rel)
		if err := m.store.put(ctx, object, f, contentType); err != nil {
			return nil, publishError("failed to upload part file", err).WithDetail("object", object)
		}
		keep[object] = struct{}{}
		uris = append(uris, m.target.URI(object))
	}

	existing, err := m.store.list(ctx, prefix)
	if err != nil {
		return nil, publishError("failed to list partition objects", err).WithDetail("prefix", prefix)
	}
	var stale []string
	for _, o := range existing {
		if _, ok := keep[o]; !ok {
			stale = append(stale, o)
		}
	}
	if len(stale) > 0 {
		if err := m.store.remove(ctx, stale); err != nil {
			return nil, publishError("failed to delete stale objects", err).WithDetail("prefix", prefix)
		}
	}

	m.logger.Info("partition published",
		zap.String("partition", key.String()),
		zap.Int("uploaded", len(uris)),
		zap.Int("deleted", len(stale)))
	return uris, nil
}

// Close releases the store client.
func (m *Mirror) Close() error {
	return m.store.close()
}

func publishError(msg string, cause error) *errors.Error {
	e := errors.Wrap(cause, errors.ErrorTypePublish, msg)
	if e == nil {
		e = errors.New(errors.ErrorTypePublish, msg)
	}
	e.Op = errors.OpPublish
	return e
}

func openLocal(p string) (*os.File, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	return f, nil
}
