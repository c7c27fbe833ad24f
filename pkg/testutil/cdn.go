package testutil

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// CDN is a fake trip-data host. Unknown objects answer 403, as the real
// CloudFront distribution does.
type CDN struct {
	*httptest.Server

	mu       sync.Mutex
	objects  map[string][]byte
	statuses map[string]int
	truncate map[string]bool
	hits     map[string]int
}

// NewCDN starts a fake host that is closed with the test.
func NewCDN(t testing.TB) *CDN {
	c := &CDN{
		objects:  make(map[string][]byte),
		statuses: make(map[string]int),
		truncate: make(map[string]bool),
		hits:     make(map[string]int),
	}
	c.Server = httptest.NewServer(http.HandlerFunc(c.serve))
	t.Cleanup(c.Close)
	return c
}

// Put publishes an object under name.
func (c *CDN) Put(name string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[name] = data
}

// FailWith makes requests for name answer status.
func (c *CDN) FailWith(name string, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[name] = status
}

// Truncate makes the body for name stop halfway while still advertising
// the full Content-Length.
func (c *CDN) Truncate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.truncate[name] = true
}

// Hits returns the number of requests seen for name.
func (c *CDN) Hits(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits[name]
}

func (c *CDN) serve(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")

	c.mu.Lock()
	c.hits[name]++
	data, ok := c.objects[name]
	status := c.statuses[name]
	short := c.truncate[name]
	c.mu.Unlock()

	switch {
	case status != 0:
		http.Error(w, http.StatusText(status), status)
	case !ok:
		http.Error(w, "AccessDenied", http.StatusForbidden)
	case short:
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data[:len(data)/2])
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		_, _ = w.Write(data)
	}
}
