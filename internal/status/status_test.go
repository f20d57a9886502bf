package status

import (
	"errors"
	"fmt"
	"testing"
)

func TestOfPreservesCalErrorStatus(t *testing.T) {
	wrapped := fmt.Errorf("opening plugin: %w", &CalError{Status: CalFileNotFound, Err: errors.New("no such device")})

	if got := Of(wrapped, LibavFailure); got != CalFileNotFound {
		t.Fatalf("Of() = %s, want %s", got, CalFileNotFound)
	}
}

func TestOfCollapsesPlainErrorToFallback(t *testing.T) {
	if got := Of(errors.New("boom"), EncodeFailure); got != EncodeFailure {
		t.Fatalf("Of() = %s, want %s", got, EncodeFailure)
	}
}

func TestOfNilErrorIsOK(t *testing.T) {
	if got := Of(nil, LibavFailure); got != OK {
		t.Fatalf("Of(nil, ...) = %s, want OK", got)
	}
}

func TestCalErrorUnwrap(t *testing.T) {
	inner := errors.New("mmap failed")
	ce := &CalError{Status: CalLibraryFailure, Err: inner}

	if !errors.Is(ce, inner) {
		t.Fatal("errors.Is should see through CalError.Unwrap to the inner error")
	}
}

func TestStatusStringUnknown(t *testing.T) {
	if got := Status(999).String(); got != "Unknown" {
		t.Fatalf("String() for out-of-range status = %q, want %q", got, "Unknown")
	}
}
