package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorMessageIsSorted(t *testing.T) {
	v := &ValidationError{}
	assert.NoError(t, v.OrNil())

	v.Add("quantity", "must be positive")
	v.Add("area_id", "required")

	assert.Equal(t, "validation failed: area_id: required; quantity: must be positive", v.Error())
	assert.Error(t, v.OrNil())
}

func TestCapacityExceededMatchesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("create placement: %w", &CapacityExceededError{AreaID: 3, Remaining: 10, Requested: 15})

	var capErr *CapacityExceededError
	assert.True(t, errors.As(err, &capErr))
	assert.Equal(t, 10.0, capErr.Remaining)
	assert.Equal(t, 15.0, capErr.Requested)
	assert.Contains(t, err.Error(), "remaining 10.00")
}

func TestJobFailedUnwrapsCause(t *testing.T) {
	cause := &ProcessError{Diagnostic: "solver script not found at /x.py", ExitCode: -1}
	err := &JobFailedError{JobID: 1, Message: "optimization run failed", Cause: cause}

	var procErr *ProcessError
	assert.True(t, errors.As(err, &procErr))
	assert.Equal(t, "optimization run failed", err.Error())
	assert.Equal(t, "solver script not found at /x.py", procErr.Error())
}
