package shared

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/kortschak/kmersig/cache/cachekey"
)

func testKey() cachekey.Key {
	return cachekey.Key{Dataset: "d", Column: "seq", K: 8, OccurrenceBits: 8, MaxRate: 0.1, MaxNrow: 0}
}

func TestSegmentBuildAttachLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg")
	key := testKey()
	members := []uint64{1, 2, 3, 17, 256, 1 << 40}

	if err := Build(path, key, members, 0); err != nil {
		t.Fatal(err)
	}

	seg, err := Attach(path, key)
	if err != nil {
		t.Fatal(err)
	}
	defer seg.Detach()

	if seg.Len() != len(members) {
		t.Fatalf("got Len()=%d, want %d", seg.Len(), len(members))
	}
	for _, k := range members {
		if !seg.Lookup(k) {
			t.Fatalf("expected %d to be a member", k)
		}
	}
	for _, k := range []uint64{4, 18, 999999} {
		if seg.Lookup(k) {
			t.Fatalf("did not expect %d to be a member", k)
		}
	}
}

func TestSegmentAttachRejectsMismatchedKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg")
	key := testKey()
	if err := Build(path, key, []uint64{1, 2, 3}, 0); err != nil {
		t.Fatal(err)
	}

	other := key
	other.MaxRate = 0.9
	if _, err := Attach(path, other); !errors.Is(err, ErrCacheKeyMismatch) {
		t.Fatalf("got %v, want ErrCacheKeyMismatch", err)
	}
}

func TestSegmentMultipleAttach(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg")
	key := testKey()
	if err := Build(path, key, []uint64{5, 6, 7}, 0); err != nil {
		t.Fatal(err)
	}

	a, err := Attach(path, key)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Attach(path, key)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Lookup(5) || !b.Lookup(5) {
		t.Fatal("both attachments should observe the same members")
	}
	if err := a.Detach(); err != nil {
		t.Fatal(err)
	}
	if !b.Lookup(6) {
		t.Fatal("detaching one attachment must not affect another")
	}
	if err := b.Detach(); err != nil {
		t.Fatal(err)
	}
}
