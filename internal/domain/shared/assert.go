package shared

import (
	"context"
	"log/slog"
)

// Asserter checks "should never happen" conditions.
//
// In production a failed check is logged and the caller continues with its
// recovery path. In development and test builds the same check returns an
// ErrInvariant error so regressions surface immediately.
type Asserter struct {
	strict bool
	logger *slog.Logger
}

// NewAsserter creates an Asserter. strict selects the failing mode.
func NewAsserter(strict bool, logger *slog.Logger) *Asserter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Asserter{strict: strict, logger: logger}
}

// Check returns nil when cond holds. Otherwise it either logs the anomaly
// (production) or returns it as an invariant error.
func (a *Asserter) Check(ctx context.Context, cond bool, err *DomainError, attrs ...slog.Attr) error {
	if cond {
		return nil
	}
	if a.strict {
		return err
	}

	args := make([]any, 0, len(attrs)+1)
	args = append(args, slog.String("error", err.Error()))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	a.logger.ErrorContext(ctx,
		"debug assertion failed; recovering from undefined state",
		args...,
	)
	return nil
}
