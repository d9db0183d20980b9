package signature

import (
	"strings"
	"testing"
)

func TestBuildIsOrderIndependent(t *testing.T) {
	t.Parallel()

	a, err := Build("https://geo.example.test/ogc/collections/roads/items?limit=100&f=json", nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	b, err := Build("https://geo.example.test/ogc/collections/roads/items?f=json&limit=100", nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if a.String() != b.String() {
		t.Fatalf("parameter order must not change the key: %s vs %s", a, b)
	}
}

func TestBuildExtraParamsOverrideQuery(t *testing.T) {
	t.Parallel()

	fromQuery, err := Build("https://geo.example.test/items?f=json", nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fromExtra, err := Build("https://geo.example.test/items", map[string]string{"f": "json"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if fromQuery.Hash != fromExtra.Hash {
		t.Fatalf("extra params should normalize into the query: %s vs %s", fromQuery.Hash, fromExtra.Hash)
	}

	overridden, err := Build("https://geo.example.test/items?f=html", map[string]string{"f": "json"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if overridden.Hash != fromQuery.Hash {
		t.Fatalf("extra params must override the URL query")
	}
}

func TestBuildDistinguishesRequests(t *testing.T) {
	t.Parallel()

	a, err := Build("https://geo.example.test/items?limit=100", nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	b, err := Build("https://geo.example.test/items?limit=200", nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if a.Hash == b.Hash {
		t.Fatalf("different parameters must yield different keys")
	}
}

func TestBuildRejectsHostlessURL(t *testing.T) {
	t.Parallel()

	if _, err := Build("/relative/items", nil); err == nil {
		t.Fatalf("expected error for URL without host")
	}
}

func TestKeyStringFormat(t *testing.T) {
	t.Parallel()

	k, err := Build("https://geo.example.test/items", nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.HasPrefix(k.String(), "fetch:geo.example.test:") {
		t.Fatalf("unexpected key format: %s", k)
	}
	if len(k.Hash) != 64 {
		t.Fatalf("expected sha256 hex hash, got %q", k.Hash)
	}
}
