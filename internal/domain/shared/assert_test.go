package shared

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsserter_StrictReturnsInvariantError(t *testing.T) {
	a := NewAsserter(true, nil)

	err := a.Check(context.Background(), false,
		NewDomainError("eligibility", "Admit", ErrInvariant, "negative cooldown"))

	require.Error(t, err)
	assert.True(t, IsInvariant(err))
	assert.Contains(t, err.Error(), "eligibility.Admit")
}

func TestAsserter_ProductionLogsAndRecovers(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	a := NewAsserter(false, log)

	err := a.Check(context.Background(), false,
		NewDomainError("eligibility", "Admit", ErrInvariant, "negative cooldown"),
		slog.Int64("cooldown_ms", -12))

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "debug assertion failed")
	assert.Contains(t, buf.String(), "cooldown_ms=-12")
}

func TestAsserter_PassingCheck(t *testing.T) {
	for _, strict := range []bool{true, false} {
		a := NewAsserter(strict, nil)
		assert.NoError(t, a.Check(context.Background(), true,
			NewDomainError("x", "y", ErrInvariant, "unused")))
	}
}

func TestDomainError_IsMatchesKindAndCause(t *testing.T) {
	cause := errors.New("boom")
	err := WrapError("leveling", "Increment", ErrExternalService, "store failed", cause)

	assert.True(t, errors.Is(err, ErrExternalService))
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsExternalService(err))
	assert.False(t, IsNotFound(err))
}
