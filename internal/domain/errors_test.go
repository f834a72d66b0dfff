package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "customer not found",
			err:  NewNotFoundError(ResourceCustomer, "C1"),
			want: true,
		},
		{
			name: "wrapped not found",
			err:  fmt.Errorf("create order: %w", NewNotFoundError(ResourceProduct, "P1")),
			want: true,
		},
		{
			name: "unavailable",
			err:  NewUnavailableError(ResourceCustomer, errors.New("boom")),
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsNotFound(tt.err)
			if got != tt.want {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewUnavailableError(ResourceProduct, cause)

	if !IsUnavailable(err) {
		t.Fatal("expected unavailable error")
	}
	if IsNotFound(err) {
		t.Fatal("unavailable must not match not found")
	}
	if !errors.Is(err, cause) {
		t.Fatal("unavailable error must unwrap to its cause")
	}
}

func TestErrorMessages(t *testing.T) {
	if got := NewNotFoundError(ResourceCustomer, "C1").Error(); got != "Customer with ID 'C1' not found." {
		t.Errorf("unexpected message: %s", got)
	}
	if got := NewUnavailableError(ResourceProduct, nil).Error(); got != "Product service is currently unavailable." {
		t.Errorf("unexpected message: %s", got)
	}
}

func TestPersistenceError(t *testing.T) {
	cause := errors.New("disk full")
	err := NewPersistenceError("save", cause)

	if !errors.Is(err, ErrPersistence) {
		t.Fatal("expected persistence error")
	}
	if !errors.Is(err, cause) {
		t.Fatal("persistence error must unwrap to its cause")
	}
	if IsNotFound(err) || IsUnavailable(err) {
		t.Fatal("persistence error must be distinct from upstream kinds")
	}
}
