package reportsink

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/ajitpratap0/tripflow/pkg/errors"
	"github.com/ajitpratap0/tripflow/pkg/json"
	"github.com/ajitpratap0/tripflow/pkg/models"
)

// JSONLines appends one JSON document per report to a file.
type JSONLines struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// NewJSONLines opens path for appending, creating it and its parent.
func NewJSONLines(path string) (*JSONLines, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ClassifyFS(err), "failed to create report directory")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, errors.ClassifyFS(err), "failed to open report file")
	}
	return &JSONLines{path: path, f: f}, nil
}

// Path returns the report file location.
func (j *JSONLines) Path() string {
	return j.path
}

// Record writes report as a single line.
func (j *JSONLines) Record(_ context.Context, report *models.RunReport) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return errors.New(errors.ErrorTypeIO, "report file is closed")
	}
	if err := json.WriteLine(j.f, report); err != nil {
		return errors.Wrap(err, errors.ClassifyFS(err), "failed to append run report")
	}
	return nil
}

// Close flushes the file to disk.
func (j *JSONLines) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return nil
	}
	f := j.f
	j.f = nil
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, errors.ClassifyFS(err), "failed to sync report file")
	}
	return f.Close()
}

// ReadJSONLines decodes every report in path, oldest first.
func ReadJSONLines(path string) ([]models.RunReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var reports []models.RunReport
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var r models.RunReport
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "malformed report line")
		}
		reports = append(reports, r)
	}
	return reports, sc.Err()
}
