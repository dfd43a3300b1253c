package cache

import (
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	c := New()

	if _, ok := c.Get("missing"); ok {
		t.Fatalf("Get on empty cache returned a value")
	}

	c.Set("k", "v1", time.Minute)
	v, ok := c.Get("k")
	if !ok || v.(string) != "v1" {
		t.Fatalf("Get = (%v, %v), want (v1, true)", v, ok)
	}

	c.Set("k", "v2", time.Minute)
	v, _ = c.Get("k")
	if v.(string) != "v2" {
		t.Fatalf("Set did not overwrite: got %v", v)
	}
}

func TestExpiryPurgesOnRead(t *testing.T) {
	c := New()
	current := time.Now()
	c.now = func() time.Time { return current }

	c.Set("k", "v", 6*time.Hour)
	current = current.Add(6*time.Hour + time.Second)

	if _, ok := c.Get("k"); ok {
		t.Fatalf("Get returned an expired entry")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not purged on read, len = %d", c.Len())
	}
}

func TestKeyIsolation(t *testing.T) {
	if Key("base", 1, "resume") == Key("base", 2, "resume") {
		t.Fatalf("identical text for different users produced the same key")
	}
	if Key("base", 1, "resume") == Key("job", 1, "resume") {
		t.Fatalf("different operations produced the same key")
	}
	if Key("job", 1, "resume", "job a") == Key("job", 1, "resume", "job b") {
		t.Fatalf("different job texts produced the same key")
	}
	if Key("base", 1, "resume") != Key("base", 1, "resume") {
		t.Fatalf("key is not deterministic")
	}
}
