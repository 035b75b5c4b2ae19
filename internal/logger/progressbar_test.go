package logger

import "testing"

func TestProgressBarPercentageAndRender(t *testing.T) {
	pb := NewProgressBar(4, 10, false)
	pb.Update(2)

	if pb.Percentage() != 50 {
		t.Fatalf("Percentage() = %d, want 50", pb.Percentage())
	}

	rendered := pb.Render()
	if rendered == "" {
		t.Fatal("expected non-empty render")
	}
}

func TestProgressBarClampsOutOfRangeValues(t *testing.T) {
	pb := NewProgressBar(4, 10, false)
	pb.Update(100)
	if pb.Percentage() != 100 {
		t.Fatalf("Percentage() = %d, want 100 after clamping", pb.Percentage())
	}

	pb.Update(-5)
	if pb.Percentage() != 0 {
		t.Fatalf("Percentage() = %d, want 0 after clamping", pb.Percentage())
	}
}
