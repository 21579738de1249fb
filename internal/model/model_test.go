package model

import (
	"math"
	"sort"
	"testing"
)

func TestTaskName(t *testing.T) {
	cases := map[int]string{
		0:  "Draw",
		4:  "Wick",
		6:  "Take-out",
		11: "Through",
		12: "Other",
		-1: "Other",
	}
	for code, want := range cases {
		if got := TaskName(code); got != want {
			t.Errorf("TaskName(%d): want %q, got %q", code, want, got)
		}
	}
	if n := len(TaskNames()); n != 12 {
		t.Errorf("expected 12 task names, got %d", n)
	}
}

func TestKeyOrdering(t *testing.T) {
	keys := []EndKey{
		{GameKey{0, 2, 1}, 1},
		{GameKey{0, 1, 3}, 2},
		{GameKey{0, 1, 3}, 1},
		{GameKey{0, 1, 1}, 8},
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	want := []string{"0_1_1_8", "0_1_3_1", "0_1_3_2", "0_2_1_1"}
	for i, k := range keys {
		if k.String() != want[i] {
			t.Errorf("position %d: want %s, got %s", i, want[i], k.String())
		}
	}
}

func TestPositionMissing(t *testing.T) {
	if (Position{750, 800}).Missing() {
		t.Error("button position should not be missing")
	}
	if !(Position{math.NaN(), 800}).Missing() {
		t.Error("NaN x should be missing")
	}
}

func TestParseGameKey(t *testing.T) {
	k, err := ParseGameKey("3_12_7")
	if err != nil {
		t.Fatalf("ParseGameKey: %v", err)
	}
	if want := (GameKey{CompetitionID: 3, SessionID: 12, GameID: 7}); k != want {
		t.Errorf("got %+v, want %+v", k, want)
	}
	if k.String() != "3_12_7" {
		t.Errorf("round trip = %q", k.String())
	}
	for _, bad := range []string{"", "1_2", "1_2_x", "1_2_3_4"} {
		if _, err := ParseGameKey(bad); err == nil {
			t.Errorf("ParseGameKey(%q) expected error", bad)
		}
	}
}
