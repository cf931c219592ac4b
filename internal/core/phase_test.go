package core

import "testing"

func TestPhase_Order(t *testing.T) {
	for i, phase := range AllPhases() {
		if PhaseOrder(phase) != i {
			t.Fatalf("expected %s order %d, got %d", phase, i, PhaseOrder(phase))
		}
	}
	if PhaseOrder("invalid") != -1 {
		t.Fatalf("expected invalid phase order -1")
	}
}

func TestPhase_Validation(t *testing.T) {
	if len(AllPhases()) != 7 {
		t.Fatalf("expected 7 phases, got %d", len(AllPhases()))
	}
	for _, phase := range AllPhases() {
		if !ValidPhase(phase) {
			t.Fatalf("expected phase %s to be valid", phase)
		}
		if phase.Description() == "Unknown phase" {
			t.Fatalf("expected description for %s", phase)
		}
	}
	if ValidPhase("invalid") {
		t.Fatalf("expected invalid phase to be rejected")
	}
}

func TestPhase_Parse(t *testing.T) {
	p, err := ParsePhase("testing")
	if err != nil {
		t.Fatalf("unexpected error parsing phase: %v", err)
	}
	if p != PhaseTesting {
		t.Fatalf("expected testing phase, got %s", p)
	}

	if _, err := ParsePhase("deploy"); err == nil {
		t.Fatalf("expected error for unknown phase")
	}
}

func TestComplexity_Parse(t *testing.T) {
	for _, c := range AllComplexities() {
		got, err := ParseComplexity(c.String())
		if err != nil || got != c {
			t.Fatalf("ParseComplexity(%q) = %q, %v", c, got, err)
		}
	}
	if _, err := ParseComplexity("trivial"); err == nil {
		t.Fatalf("expected error for unknown complexity")
	}
}
