package hostset

import (
	"context"
	"testing"
)

func TestSet_NoopWhenNoRedisConfigured(t *testing.T) {
	s, err := New("")
	if err != nil {
		t.Fatalf("unexpected error building no-op set: %v", err)
	}

	ctx := context.Background()
	if err := s.Add(ctx, "example.com"); err != nil {
		t.Fatalf("expected Add to no-op without error, got %v", err)
	}
	ok, err := s.Contains(ctx, "example.com")
	if err != nil || ok {
		t.Fatalf("expected Contains to report false on a no-op set, got ok=%v err=%v", ok, err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("expected Ping to no-op without error, got %v", err)
	}
}

func TestNew_RejectsInvalidURL(t *testing.T) {
	if _, err := New("not a redis url \x00"); err == nil {
		t.Fatalf("expected an error for an unparsable redis url")
	}
}
