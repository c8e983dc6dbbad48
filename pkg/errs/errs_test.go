package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindCodes(t *testing.T) {
	tests := []struct {
		kind Kind
		code int
		tag  string
	}{
		{MalformedVersion, 106, "REQUEST_VALIDATION_ERROR"},
		{RequestValidation, 106, "REQUEST_VALIDATION_ERROR"},
		{StaleDraft, 107, "INVALID_DRAFT_VERSION"},
		{NotFound, 105, "DATA_NOT_FOUND"},
		{InvalidDocumentShape, 108, "INVALID_STORAGE_FORMAT"},
		{PathNotFound, 103, "PATH_NOT_FOUND"},
		{Internal, 202, "SYSTEM_ERROR"},
	}

	for _, tt := range tests {
		if tt.kind.Code() != tt.code {
			t.Errorf("%s: expected code %d, got %d", tt.tag, tt.code, tt.kind.Code())
		}
		if tt.kind.String() != tt.tag {
			t.Errorf("Expected tag %s, got %s", tt.tag, tt.kind.String())
		}
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("loading: %w", NotFoundf("1_0_0", "missing"))

	if KindOf(err) != NotFound {
		t.Errorf("Expected NotFound through wrapping, got %v", KindOf(err))
	}
	if !Is(err, NotFound) {
		t.Error("Expected Is to match wrapped kind")
	}
	if Is(nil, Internal) {
		t.Error("Expected nil error to match no kind")
	}
	if KindOf(errors.New("plain")) != Internal {
		t.Error("Expected untagged errors to be Internal")
	}
}

func TestToPayload(t *testing.T) {
	p := ToPayload(Stale("0.0.0.2", "0.0.0.999"))
	if p.Type != "INVALID_DRAFT_VERSION" || p.Code != 107 || p.Service != Service {
		t.Errorf("Unexpected payload: %+v", p)
	}
	if p.Data != "0.0.0.2" {
		t.Errorf("Expected data 0.0.0.2, got %q", p.Data)
	}

	p = ToPayload(errors.New("disk on fire"))
	if p.Type != "SYSTEM_ERROR" || p.Code != 202 || p.Message != "Error: disk on fire" {
		t.Errorf("Unexpected payload for untagged error: %+v", p)
	}
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("cause")
	err := Wrap(cause, "failed to read %s", "x")

	if !errors.Is(err, cause) {
		t.Error("Expected wrapped cause to be reachable")
	}
	if err.Error() != "failed to read x: cause" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}
