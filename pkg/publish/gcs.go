package publish

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/tripflow/pkg/errors"
)

type gcsStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

func newGCSStore(ctx context.Context, bucket string, cfg Config) (*gcsStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
		if cfg.CredentialsFile == "" {
			// emulators accept anonymous requests
			opts = append(opts, option.WithoutAuthentication())
		}
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &gcsStore{client: client, bucket: client.Bucket(bucket)}, nil
}

func (g *gcsStore) put(ctx context.Context, object, localPath, contentType string) error {
	f, err := openLocal(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := g.bucket.Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (g *gcsStore) list(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	it := g.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

func (g *gcsStore) remove(ctx context.Context, objects []string) error {
	for _, o := range objects {
		err := g.bucket.Object(o).Delete(ctx)
		if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return err
		}
	}
	return nil
}

func (g *gcsStore) close() error {
	return g.client.Close()
}
