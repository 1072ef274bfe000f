package conceptdb

import (
	"errors"
	"fmt"

	"github.com/hupe1980/conceptdb/index/annoy"
	"github.com/hupe1980/conceptdb/record"
)

var (
	// ErrClosed is returned when operations are attempted on a closed library.
	ErrClosed = errors.New("library is closed")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
)

// ErrDimensionMismatch indicates a dimensionality disagreement between the
// encoder and the persisted store or index. This is a configuration error:
// the caller must reopen with a matching encoder.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var rdm *record.ErrDimensionMismatch
	if errors.As(err, &rdm) {
		return &ErrDimensionMismatch{Expected: rdm.Expected, Actual: rdm.Actual, cause: err}
	}
	var adm *annoy.ErrDimensionMismatch
	if errors.As(err, &adm) {
		return &ErrDimensionMismatch{Expected: adm.Expected, Actual: adm.Actual, cause: err}
	}
	if errors.Is(err, annoy.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	}

	return err
}
