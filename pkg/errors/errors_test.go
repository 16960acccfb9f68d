package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	typed := Clone(ErrValidation, "hours must be positive")
	wrapped := errors.Join(errors.New("context"), typed)

	got := FromError(wrapped)
	assert.Equal(t, "VALIDATION_ERROR", got.Code)
	assert.Equal(t, http.StatusBadRequest, got.Status)
	assert.Equal(t, "hours must be positive", got.Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	got := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.ErrorContains(t, got, "boom")
	assert.Nil(t, FromError(nil))
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrNotFound, "timetable not found")
	assert.Equal(t, "resource not found", ErrNotFound.Message)
	assert.Equal(t, "timetable not found", clone.Message)
	assert.Nil(t, Clone(nil, "x"))
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("db down")
	err := Wrap(cause, ErrInternal.Code, ErrInternal.Status, "failed to load school data")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load school data: db down", err.Error())
}

func TestWithDetailsCopies(t *testing.T) {
	base := Clone(ErrInvalidModel, "2 problems")
	detailed := WithDetails(base, []string{"subject s1 has no hours"})

	assert.Nil(t, base.Details)
	assert.Equal(t, []string{"subject s1 has no hours"}, detailed.Details)
	assert.Equal(t, base.Code, detailed.Code)
	assert.Nil(t, WithDetails(nil, "x"))
}

func TestIsMatchesByCode(t *testing.T) {
	clone := Clone(ErrNotFound, "timetable not found")
	wrapped := Wrap(errors.New("no rows"), ErrNotFound.Code, ErrNotFound.Status, "timetable not found")

	assert.ErrorIs(t, clone, ErrNotFound)
	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.NotErrorIs(t, clone, ErrConflict)
	assert.NotErrorIs(t, errors.New("plain"), ErrNotFound)
}
