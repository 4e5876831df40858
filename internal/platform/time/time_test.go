package time

import (
	"testing"
	"time"
)

func TestPtr(t *testing.T) {
	if Ptr(time.Time{}) != nil {
		t.Fatalf("zero time must map to nil")
	}
	now := time.Now()
	if p := Ptr(now); p == nil || !p.Equal(now) {
		t.Fatalf("Ptr(now) = %v", p)
	}
}
