package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsType(t *testing.T) {
	base := InvalidArgument("corrmatrix must be square", "corrmatrix: 2x3")
	wrapped := Wrap(base, "building parameters")

	assert.Equal(t, ErrorTypeInvalidArgument, TypeOf(wrapped))
	assert.Equal(t, "building parameters: corrmatrix must be square", wrapped.Error())
	assert.Equal(t, []string{"corrmatrix: 2x3"}, DetailsOf(wrapped))
}

func TestTypeOfThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("run failed: %w", NumericDegeneracy("zero rank"))
	assert.Equal(t, ErrorTypeNumericDegeneracy, TypeOf(err))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(stderrors.New("plain")))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(nil))
}

func TestIsFollowsChain(t *testing.T) {
	sentinel := stderrors.New("boom")
	err := ComputeFailure("worker 3 failed", sentinel)

	assert.True(t, Is(err, sentinel))
	assert.True(t, Is(Wrap(err, "batch aborted"), sentinel))
	assert.False(t, Is(err, stderrors.New("boom")))

	var appErr *AppError
	require.True(t, As(err, &appErr))
	assert.Equal(t, ErrorTypeComputeFailure, appErr.Type)
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "x"))
	assert.Nil(t, Wrapf(nil, "x %d", 1))
}

func TestErrorTypeString(t *testing.T) {
	cases := map[ErrorType]string{
		ErrorTypeInvalidArgument:   "invalid_argument",
		ErrorTypeNumericDegeneracy: "numeric_degeneracy",
		ErrorTypeComputeFailure:    "compute_failure",
		ErrorTypeResourceExhausted: "resource_exhausted",
		ErrorTypeUnknown:           "unknown",
	}
	for typ, want := range cases {
		assert.Equal(t, want, typ.String())
	}
}
