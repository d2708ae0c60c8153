package labels

import (
	"errors"
	"testing"
)

func TestResolveFollowsDeclarationOrder(t *testing.T) {
	all := All()
	if len(all) != 7 {
		t.Fatalf("expected 7 labels, got %d", len(all))
	}
	for i := 0; i < Len; i++ {
		got, err := Resolve(i)
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if got != all[i] {
			t.Fatalf("resolve %d: expected %q got %q", i, all[i], got)
		}
	}
	if all[2] != "黒猫" {
		t.Fatalf("unexpected label at index 2: %q", all[2])
	}
}

func TestResolveRejectsOutOfRange(t *testing.T) {
	for _, id := range []int{-1, Len, Len + 10, -100} {
		label, err := Resolve(id)
		if !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("id %d: expected ErrIndexOutOfRange, got %v", id, err)
		}
		if label != "" {
			t.Fatalf("id %d: expected empty label, got %q", id, label)
		}
	}
}

func TestAllReturnsCopy(t *testing.T) {
	a := All()
	a[0] = "mutated"
	if got, _ := Resolve(0); got == "mutated" {
		t.Fatal("All must not expose the backing table")
	}
}
