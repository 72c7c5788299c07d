package structure

import "testing"

func TestNewSeedsIdentityCamera(t *testing.T) {
	ss := New(10)

	if len(ss.Views) != 1 {
		t.Fatalf("expected exactly the seed view slot, got %d", len(ss.Views))
	}
	if !ss.Views[0].Fixed {
		t.Fatalf("seed view slot must be fixed")
	}
	cam := ss.Views[0].Camera
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			want := 0.0
			if r == c {
				want = 1.0
			}
			if cam.At(r, c) != want {
				t.Fatalf("P1 is not identity at (%d,%d): got %f", r, c, cam.At(r, c))
			}
		}
	}

	for _, v := range ss.SeedToStructure {
		if v != Unset {
			t.Fatalf("expected every SeedToStructure entry to start Unset")
		}
	}
}

func TestRecordInlierMaintainsInverseMapping(t *testing.T) {
	ss := New(5)
	ss.InitPoints(3)

	if err := ss.RecordInlier(0, 4); err != nil {
		t.Fatalf("RecordInlier: %v", err)
	}
	if err := ss.RecordInlier(1, 1); err != nil {
		t.Fatalf("RecordInlier: %v", err)
	}

	if ss.SeedToStructure[ss.InlierToSeed[0]] != 0 {
		t.Fatalf("P3 invariant violated for inlier 0")
	}
	if ss.SeedToStructure[ss.InlierToSeed[1]] != 1 {
		t.Fatalf("P3 invariant violated for inlier 1")
	}
	if ss.SeedToStructure[2] != Unset {
		t.Fatalf("expected feature 2 (never an inlier) to remain Unset")
	}
}

func TestRecordInlierRejectsOutOfRange(t *testing.T) {
	ss := New(3)
	ss.InitPoints(2)

	if err := ss.RecordInlier(5, 0); err == nil {
		t.Fatalf("expected an error for an out-of-range inlier index")
	}
	if err := ss.RecordInlier(0, 99); err == nil {
		t.Fatalf("expected an error for an out-of-range seed feature")
	}
}

func TestReserveViewSlotsGrowsWithoutTouchingSeed(t *testing.T) {
	ss := New(3)
	ss.ReserveViewSlots(4)

	if len(ss.Views) != 5 {
		t.Fatalf("expected 1 seed + 4 reserved slots, got %d", len(ss.Views))
	}
	if ss.Views[0].Camera == nil {
		t.Fatalf("reserving slots must not clear the seed's camera")
	}

	if err := ss.SetViewSlot(2, ss.Views[0].Camera, 640, 480); err != nil {
		t.Fatalf("SetViewSlot: %v", err)
	}
	if ss.Views[2].Width != 640 || ss.Views[2].Height != 480 {
		t.Fatalf("SetViewSlot did not write shape")
	}
}
