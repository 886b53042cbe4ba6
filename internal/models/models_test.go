package models

import "testing"

func TestParseStructure(t *testing.T) {
	tests := []struct {
		in   string
		want Structure
		err  bool
	}{
		{"left", StructureLeft, false},
		{"RIGHT", StructureRight, false},
		{"both", StructureBoth, false},
		{"", StructureUnknown, false},
		{"cerebellum", StructureUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStructure(tt.in)
			if (err != nil) != tt.err {
				t.Fatalf("Expected error %v, got %v", tt.err, err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestPaddingEffective(t *testing.T) {
	p := PaddingSpec{}
	p.Amount[FaceNegY] = 5
	p.Amount[FacePosZ] = 3
	p.Cut[FacePosZ] = true

	if got := p.Effective(FaceNegY); got != 0 {
		t.Errorf("Expected padding on an uncut face to be ignored, got %d", got)
	}
	if got := p.Effective(FacePosZ); got != 3 {
		t.Errorf("Expected 3, got %d", got)
	}
	if !p.Active() {
		t.Error("Expected padding to be active")
	}

	if err := p.Validate([3]int{10, 10, 3}); err == nil {
		t.Error("Expected padding larger than the dimension to be rejected")
	}
	if err := p.Validate([3]int{10, 10, 10}); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestDeriveThresholds(t *testing.T) {
	th := DeriveThresholds(PeakIntensities{Gray: 80, White: 120}, 0)
	if th.WhiteMatter != 100 {
		t.Errorf("Expected white matter threshold 100, got %f", th.WhiteMatter)
	}
	if th.CSF != 40 || th.OuterBoundary.Low != 20 {
		t.Errorf("Unexpected CSF thresholds: %+v", th)
	}
	if th.GrayMatter.High != th.InnerBoundary.Peak {
		t.Errorf("Expected gray matter high to equal the inner peak")
	}

	th = DeriveThresholds(PeakIntensities{Gray: 80, White: 120}, 110)
	if th.WhiteMatter != 110 {
		t.Errorf("Expected override 110, got %f", th.WhiteMatter)
	}
}

func TestPeaksValid(t *testing.T) {
	if (PeakIntensities{Gray: 100, White: 90}).Valid() {
		t.Error("Expected white <= gray to be invalid")
	}
	if (PeakIntensities{}).Valid() {
		t.Error("Expected zero peaks to be invalid")
	}
	if !(PeakIntensities{Gray: 60, White: 110}).Valid() {
		t.Error("Expected ordered peaks to be valid")
	}
}
