package db

import (
	"context"
	"errors"
	"testing"
)

func TestError_WrapsCause(t *testing.T) {
	err := &Error{Op: OpGet, Err: context.DeadlineExceeded}

	if err.Error() != "GET: context deadline exceeded" {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected errors.Is to see the wrapped cause")
	}
}
