// Package reportsink records run reports after each run.
package reportsink

import (
	"context"

	"github.com/ajitpratap0/tripflow/pkg/errors"
	"github.com/ajitpratap0/tripflow/pkg/models"
)

// Sink receives finished run reports. Implementations are safe for
// concurrent use.
type Sink interface {
	Record(ctx context.Context, report *models.RunReport) error
	Close() error
}

type multi []Sink

// Multi fans a report out to every sink. A nil sink is skipped.
func Multi(sinks ...Sink) Sink {
	var m multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m multi) Record(ctx context.Context, report *models.RunReport) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
