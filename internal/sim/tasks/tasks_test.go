package tasks

import "testing"

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		if err != nil {
			t.Fatalf("parse %s: %v", k, err)
		}
		if got != k {
			t.Fatalf("parse %s: got %s", k, got)
		}
	}
	if _, err := ParseKind("FERTILIZE"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestKindsPriorityOrder(t *testing.T) {
	want := []Kind{KindPlow, KindPlant, KindWater, KindHarvest}
	if len(Kinds) != len(want) {
		t.Fatalf("kinds: got %v", Kinds)
	}
	for i := range want {
		if Kinds[i] != want[i] {
			t.Fatalf("kinds[%d]: got %s want %s", i, Kinds[i], want[i])
		}
	}
}
