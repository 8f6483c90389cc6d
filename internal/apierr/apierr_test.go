package apierr

import (
	"errors"
	"net/http"
	"testing"
)

func TestStatus_MapsKindsToHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{ParamValidation, http.StatusBadRequest},
		{AssertionFailure, http.StatusNotFound},
		{DownstreamFailure, http.StatusInternalServerError},
		{Internal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		err := New(c.kind, "boom")
		if got := Status(err); got != c.want {
			t.Fatalf("kind %v: want status %d, got %d", c.kind, c.want, got)
		}
	}
}

func TestStatus_NonTaxonomyErrorMapsTo500(t *testing.T) {
	if got := Status(errors.New("plain error")); got != http.StatusInternalServerError {
		t.Fatalf("expected 500 for a non-taxonomy error, got %d", got)
	}
}

func TestWrap_PreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(DownstreamFailure, "upstream failed", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}
	if err.Error() != "upstream failed: root cause" {
		t.Fatalf("unexpected error string: %q", err.Error())
	}
}
