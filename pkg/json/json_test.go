package json

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type line struct {
	URL   string `json:"url"`
	Count int    `json:"count"`
}

func TestWriteLine(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, WriteLine(&out, line{URL: "https://host/a?b=1&c=<2>", Count: 3}))
	require.NoError(t, WriteLine(&out, line{Count: 4}))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"url":"https://host/a?b=1&c=<2>","count":3}`, lines[0])

	var got line
	require.NoError(t, Unmarshal([]byte(lines[1]), &got))
	assert.Equal(t, 4, got.Count)
}

func TestWriteLineError(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, WriteLine(&out, map[string]float64{"rate": math.Inf(1)}))
	assert.Zero(t, out.Len())
}

type shortWriter struct{ calls int }

func (w *shortWriter) Write(p []byte) (int, error) {
	w.calls++
	return len(p), nil
}

func TestWriteLineSingleWrite(t *testing.T) {
	w := &shortWriter{}
	require.NoError(t, WriteLine(w, line{URL: strings.Repeat("x", 10000)}))
	assert.Equal(t, 1, w.calls)
}

func TestBufferPool(t *testing.T) {
	b := GetBuffer()
	b.WriteString("junk")
	PutBuffer(b)
	assert.Zero(t, GetBuffer().Len())

	big := bytes.NewBuffer(make([]byte, 0, maxPooledBuffer+1))
	PutBuffer(big)
}
