package partition

import (
	"io"
	"os"

	"github.com/shirou/gopsutil/v3/disk"
)

// file is the part of *os.File the writer uses.
type file interface {
	io.Writer
	Sync() error
	Close() error
}

func createFile(name string) (file, error) {
	return os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // G304: staging path built by the writer
}

// trackedFile remembers the first write failure and hides Close from the
// Parquet encoder, which would otherwise close the file before it is synced.
type trackedFile struct {
	f   file
	err error
}

func (t *trackedFile) Write(p []byte) (int, error) {
	n, err := t.f.Write(p)
	if err != nil && t.err == nil {
		t.err = err
	}
	return n, err
}

func diskFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// syncDir flushes directory entries so renames survive a crash.
// Best effort: some filesystems refuse to sync directories.
func syncDir(path string) {
	d, err := os.Open(path) //nolint:gosec // G304: directory owned by the writer
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
