package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tripflow/pkg/errors"
	"github.com/ajitpratap0/tripflow/pkg/models"
)

type fakeStore struct {
	mu       sync.Mutex
	objects  map[string]string
	types    map[string]string
	putErr   error
	listErr  error
	closed   bool
	removals int
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]string{}, types: map[string]string{}}
}

func (f *fakeStore) put(_ context.Context, object, localPath, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	b, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[object] = string(b)
	f.types[object] = contentType
	return nil
}

func (f *fakeStore) list(_ context.Context, prefix string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeStore) remove(_ context.Context, objects []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removals++
	for _, o := range objects {
		delete(f.objects, o)
	}
	return nil
}

func (f *fakeStore) close() error {
	f.closed = true
	return nil
}

func (f *fakeStore) keys() []string {
	var out []string
	for k := range f.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func writeParts(t *testing.T, n int) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	var files []string
	for i := 0; i < n; i++ {
		p := filepath.Join(dir, fmt.Sprintf("part-%05d.parquet", i))
		require.NoError(t, os.WriteFile(p, []byte(fmt.Sprintf("part %d", i)), 0o644))
		files = append(files, p)
	}
	return dir, files
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    Target
		wantErr bool
	}{
		{in: "s3://bucket/trips/yellow/", want: Target{Scheme: "s3", Bucket: "bucket", Prefix: "trips/yellow"}},
		{in: "gs://lake", want: Target{Scheme: "gs", Bucket: "lake"}},
		{in: "file:///tmp", wantErr: true},
		{in: "s3://", wantErr: true},
		{in: "bucket/prefix", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTarget(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTargetPrefix(t *testing.T) {
	key := models.PartitionKey{Year: 2024, Month: 3}
	assert.Equal(t, "year=2024/month=3/", Target{Scheme: "gs", Bucket: "b"}.PartitionPrefix(key))
	tg := Target{Scheme: "s3", Bucket: "b", Prefix: "p"}
	assert.Equal(t, "p/year=2024/month=3/", tg.PartitionPrefix(key))
	assert.Equal(t, "s3://b/p/x", tg.URI("p/x"))
	assert.Equal(t, "s3://b/p", tg.String())
}

func TestMirrorUploadsAndDeletesStale(t *testing.T) {
	store := newFakeStore()
	target := Target{Scheme: "s3", Bucket: "b", Prefix: "trips"}
	m := newMirror(target, store, zap.NewNop())
	key := models.PartitionKey{Year: 2024, Month: 3}

	// a previous run left three files plus another month
	store.objects["trips/year=2024/month=3/part-00000.parquet"] = "old"
	store.objects["trips/year=2024/month=3/part-00001.parquet"] = "old"
	store.objects["trips/year=2024/month=3/part-00002.parquet"] = "old"
	store.objects["trips/year=2024/month=4/part-00000.parquet"] = "other"

	dir, files := writeParts(t, 1)
	uris, err := m.Publish(context.Background(), key, dir, files)
	require.NoError(t, err)

	assert.Equal(t, []string{"s3://b/trips/year=2024/month=3/part-00000.parquet"}, uris)
	assert.Equal(t, []string{
		"trips/year=2024/month=3/part-00000.parquet",
		"trips/year=2024/month=4/part-00000.parquet",
	}, store.keys())
	assert.Equal(t, "part 0", store.objects["trips/year=2024/month=3/part-00000.parquet"])
	assert.Equal(t, "application/vnd.apache.parquet", store.types["trips/year=2024/month=3/part-00000.parquet"])

	require.NoError(t, m.Close())
	assert.True(t, store.closed)
}

func TestMirrorEmptyPartitionClearsPrefix(t *testing.T) {
	store := newFakeStore()
	store.objects["year=2024/month=3/part-00000.parquet"] = "old"
	m := newMirror(Target{Scheme: "gs", Bucket: "b"}, store, nil)

	uris, err := m.Publish(context.Background(), models.PartitionKey{Year: 2024, Month: 3}, t.TempDir(), nil)
	require.NoError(t, err)
	assert.Empty(t, uris)
	assert.Empty(t, store.keys())
}

func TestMirrorRepublishIsStable(t *testing.T) {
	store := newFakeStore()
	m := newMirror(Target{Scheme: "gs", Bucket: "b"}, store, nil)
	key := models.PartitionKey{Year: 2023, Month: 12}
	dir, files := writeParts(t, 2)

	first, err := m.Publish(context.Background(), key, dir, files)
	require.NoError(t, err)
	second, err := m.Publish(context.Background(), key, dir, files)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, store.keys(), 2)
	assert.Zero(t, store.removals)
}

func TestMirrorFailures(t *testing.T) {
	key := models.PartitionKey{Year: 2024, Month: 1}
	dir, files := writeParts(t, 1)

	t.Run("upload", func(t *testing.T) {
		store := newFakeStore()
		store.putErr = fmt.Errorf("access denied")
		_, err := newMirror(Target{Scheme: "s3", Bucket: "b"}, store, nil).Publish(context.Background(), key, dir, files)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypePublish))
		var e *errors.Error
		require.True(t, errors.As(err, &e))
		assert.Equal(t, errors.OpPublish, e.Op)
	})

	t.Run("list", func(t *testing.T) {
		store := newFakeStore()
		store.listErr = fmt.Errorf("throttled")
		_, err := newMirror(Target{Scheme: "s3", Bucket: "b"}, store, nil).Publish(context.Background(), key, dir, files)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypePublish))
		assert.Contains(t, err.Error(), "throttled")
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newMirror(Target{Scheme: "s3", Bucket: "b"}, newFakeStore(), nil).Publish(ctx, key, dir, files)
		assert.True(t, errors.IsType(err, errors.ErrorTypeCanceled))
	})
}

func TestNewRejectsBadTarget(t *testing.T) {
	_, err := New(context.Background(), Config{Target: "ftp://x"}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
