package types

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrTimeout", ErrTimeout},
		{"ErrEmpty", ErrEmpty},
		{"ErrFull", ErrFull},
		{"ErrShutdown", ErrShutdown},
		{"ErrClosed", ErrClosed},
		{"ErrInvalidConfig", ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Errorf("expected error, got nil")
			}
			if tt.err.Error() == "" {
				t.Errorf("expected non-empty error message")
			}
		})
	}
}

func TestCombinedTimeoutErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []error
		not  []error
	}{
		{"get timeout", ErrGetTimeout, []error{ErrEmpty, ErrTimeout}, []error{ErrFull}},
		{"put timeout", ErrPutTimeout, []error{ErrFull, ErrTimeout}, []error{ErrEmpty}},
		{"submit timeout", ErrSubmitTimeout, []error{ErrFull, ErrTimeout}, []error{ErrShutdown}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, target := range tt.want {
				if !errors.Is(tt.err, target) {
					t.Errorf("expected %v to match %v", tt.err, target)
				}
			}
			for _, target := range tt.not {
				if errors.Is(tt.err, target) {
					t.Errorf("expected %v not to match %v", tt.err, target)
				}
			}
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	err := InvalidConfig("capacity must be positive, got %d", 0)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if !strings.Contains(err.Error(), "got 0") {
		t.Errorf("expected reason in message, got %q", err.Error())
	}
}

func TestTaskError(t *testing.T) {
	t.Run("without index", func(t *testing.T) {
		cause := errors.New("boom")
		err := NewTaskError(7, cause)

		if err.Index != -1 {
			t.Errorf("expected index -1, got %d", err.Index)
		}
		if err.Error() != "task 7 failed: boom" {
			t.Errorf("unexpected message %q", err.Error())
		}
		if !errors.Is(err, cause) {
			t.Errorf("expected cause to be reachable through Unwrap")
		}
	})

	t.Run("with index", func(t *testing.T) {
		err := &TaskError{TaskID: 3, Index: 2, Cause: ErrTimeout}
		if err.Error() != "task 3 (input 2) failed: operation timeout" {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("extract from wrapped chain", func(t *testing.T) {
		wrapped := fmt.Errorf("map: %w", NewTaskError(9, ErrEmpty))
		te, ok := AsTaskError(wrapped)
		if !ok {
			t.Fatalf("expected TaskError in chain")
		}
		if te.TaskID != 9 {
			t.Errorf("expected task 9, got %d", te.TaskID)
		}

		if _, ok := AsTaskError(ErrEmpty); ok {
			t.Errorf("plain sentinel must not be a TaskError")
		}
	})
}
