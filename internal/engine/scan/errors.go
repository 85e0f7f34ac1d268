package scan

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	// ErrInvalidInput is returned before any work starts when the target,
	// candidates or settings cannot be scanned.
	ErrInvalidInput = eris.New("scan: invalid input")
	// ErrDiscovery is returned when competitor discovery fails under AbortOnFailure.
	ErrDiscovery = eris.New("scan: competitor discovery failed")
	// ErrCanceled is returned when the context ends mid-scan. No result is produced.
	ErrCanceled = eris.New("scan: canceled")
	// ErrAllPointsFailed is returned when no grid point could be scored.
	ErrAllPointsFailed = eris.New("scan: all points failed")
)

// invalid tags err as ErrInvalidInput while keeping the cause matchable.
func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

func canceled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrCanceled, context.Cause(ctx))
}
