package cache

import (
	"testing"
	"time"

	"github.com/ppiankov/dealdesk/internal/model"
)

func TestSearchKeyNormalizesName(t *testing.T) {
	a := SearchKey("llm", model.EntityCompany, "Acme, Inc.")
	b := SearchKey("llm", model.EntityCompany, "a company called acme inc")
	if a != b {
		t.Errorf("expected equal keys, got %s and %s", a, b)
	}
	if a == SearchKey("directory", model.EntityCompany, "Acme Inc") {
		t.Error("expected searcher to be part of the key")
	}
	if a == SearchKey("llm", model.EntityCoInvestor, "Acme Inc") {
		t.Error("expected entity type to be part of the key")
	}
}

func TestMemoryCacheJSON(t *testing.T) {
	c := New(time.Minute, "")

	want := []model.WebCandidate{{Name: "Acme", Website: "https://acme.example"}}
	if err := SetJSON(c, "k", want, 0); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}

	var got []model.WebCandidate
	if !GetJSON(c, "k", &got) {
		t.Fatal("expected cache hit")
	}
	if len(got) != 1 || got[0].Website != "https://acme.example" {
		t.Errorf("unexpected value %+v", got)
	}

	_ = c.Delete("k")
	if GetJSON(c, "k", &got) {
		t.Error("expected miss after delete")
	}
}

func TestDiskCacheExpiry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	if err := c.Set("fresh", []byte(`{"a":1}`), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Set("stale", []byte(`{"a":2}`), -time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Set("bad", []byte(`not json`), 0); err == nil {
		t.Error("expected non-JSON value to be rejected")
	}

	if v, ok := c.Get("fresh"); !ok || string(v) != `{"a":1}` {
		t.Errorf("expected fresh hit, got %s %v", v, ok)
	}
	if _, ok := c.Get("stale"); ok {
		t.Error("expected stale entry to be expired")
	}
	if err := c.Delete("missing"); err != nil {
		t.Errorf("expected delete of missing key to succeed, got %v", err)
	}
}

func TestLayeredCachePromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	NewDiskCache(dir, time.Hour).Set("k", []byte(`"v"`), 0)

	c := NewLayeredCache(time.Minute, dir, time.Hour)
	if v, ok := c.Get("k"); !ok || string(v) != `"v"` {
		t.Fatalf("expected disk hit, got %s %v", v, ok)
	}
	if _, ok := c.memory.Get("k"); !ok {
		t.Error("expected value promoted to memory")
	}
}
