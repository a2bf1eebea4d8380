package cache

import (
	"testing"

	"github.com/aslcompile/aslc/core"
)

func TestCompileCachedMissThenHit(t *testing.T) {
	c := NewMemCache()
	fn := core.ConstantExampleFunc()

	doc1, err := CompileCached(c, fn, nil)
	if err != nil {
		t.Fatalf("CompileCached (miss): %v", err)
	}
	if len(c.entries) != 1 {
		t.Fatalf("expected one cache entry after a miss, got %d", len(c.entries))
	}

	doc2, err := CompileCached(c, fn, nil)
	if err != nil {
		t.Fatalf("CompileCached (hit): %v", err)
	}
	if doc1.StartAt != doc2.StartAt {
		t.Fatalf("expected the cached StartAt to match, got %q vs %q", doc1.StartAt, doc2.StartAt)
	}
}

func TestKeyVariesByRole(t *testing.T) {
	fn := core.AddExampleFunc()
	k1 := Key(fn, &core.CompileOptions{Role: "roleA"})
	k2 := Key(fn, &core.CompileOptions{Role: "roleB"})
	if k1 == k2 {
		t.Fatalf("expected distinct cache keys for distinct roles")
	}
}

func TestKeyStableForIdenticalInput(t *testing.T) {
	fn := core.AddExampleFunc()
	opts := &core.CompileOptions{Role: "roleA"}
	if Key(fn, opts) != Key(fn, opts) {
		t.Fatalf("expected Key to be deterministic")
	}
}

func TestNilCacheSkipsMemoization(t *testing.T) {
	fn := core.ConstantExampleFunc()
	if _, err := CompileCached(nil, fn, nil); err != nil {
		t.Fatalf("CompileCached with nil cache: %v", err)
	}
}
