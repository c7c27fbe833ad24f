package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/tripflow/pkg/errors"
)

// Example demonstrates basic error creation and wrapping.
func Example() {
	err := errors.Fetch(errors.ErrorTypeNotFound, "no file published for 2031-01", nil).
		WithDetail("url", "https://example.invalid/yellow_tripdata_2031-01.parquet")

	fmt.Println(err.Error())

	// Output:
	// fetch not_found: no file published for 2031-01
}

// ExampleWrap shows how a decode failure keeps its cause.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeCorruptSource, "truncated parquet footer")

	if errors.IsType(err, errors.ErrorTypeCorruptSource) {
		fmt.Println("corrupt source")
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("caused by unexpected EOF")
	}

	// Output:
	// corrupt source
	// caused by unexpected EOF
}
