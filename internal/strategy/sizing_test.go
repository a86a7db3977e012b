package strategy

import (
	"testing"

	"screener-backend/internal/domain"
)

func TestCleanTrendScoreWorkedExample(t *testing.T) {
	// S4: parent {chop=0.1, efficiency=0.8, align=0.8, netChange=+0.05}.
	parent := domain.SymbolTimeframeMetric{Chop: 0.1, Efficiency: 0.8, Align: 0.8, NetChange: 0.05}
	got := cleanTrendScore(parent)
	want := (90.0 + 80.0 + 80.0) / 300.0
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("cleanTrendScore() = %v, want %v", got, want)
	}
}

func TestKSlMultipleWorkedExample(t *testing.T) {
	// S4: kSl = clamp(1.2+0.9*((90+80+80)/300)+0.3*0.8, 1.2, 2.8).
	cleanP := (90.0 + 80.0 + 80.0) / 300.0
	got := kSlMultiple(cleanP, 0.8)
	want := clamp(1.2+0.9*cleanP+0.3*0.8, 1.2, 2.8)
	if got != want {
		t.Fatalf("kSlMultiple() = %v, want %v", got, want)
	}
	if got < 2.1 || got > 2.3 {
		t.Fatalf("kSlMultiple() = %v, want roughly 2.2 per S4's worked example", got)
	}
}

func TestKSlMultipleClampedToBounds(t *testing.T) {
	if got := kSlMultiple(0, 0); got != 1.2 {
		t.Fatalf("kSlMultiple(0,0) = %v, want floor 1.2", got)
	}
	if got := kSlMultiple(10, 10); got != 2.8 {
		t.Fatalf("kSlMultiple(10,10) = %v, want ceiling 2.8", got)
	}
}

func TestSizeScaleNoPenaltyIsFullSize(t *testing.T) {
	if got := sizeScale(0); got != 1 {
		t.Fatalf("sizeScale(0) = %v, want 1", got)
	}
}

func TestSizeScaleFloorsAtPointTwo(t *testing.T) {
	if got := sizeScale(100); got != 0.2 {
		t.Fatalf("sizeScale(100) = %v, want floored to 0.2", got)
	}
	if got := sizeScale(90); got != 0.2 {
		t.Fatalf("sizeScale(90) = %v, want floored to 0.2 (0.1^2=0.01 < 0.2)", got)
	}
}

func TestSizeScaleMonotonicDecreasingInPenalty(t *testing.T) {
	low := sizeScale(10)
	high := sizeScale(40)
	if high >= low {
		t.Fatalf("sizeScale(40)=%v should be less than sizeScale(10)=%v", high, low)
	}
}

func TestTrailMultipleUnreducedWithoutDeterioration(t *testing.T) {
	child := domain.SymbolTimeframeMetric{
		EfficiencyHistory: []float64{0.5, 0.6, 0.7},
		MomentumHistory:   []float64{0.3, 0.4, 0.5},
	}
	cleanP, gateC := 0.5, 0.5
	got := trailMultiple(cleanP, gateC, child)
	want := clamp(2.0+1.2*cleanP-0.6*(1-gateC), 1.6, 3.2)
	if got != want {
		t.Fatalf("trailMultiple() = %v, want %v (no reduction)", got, want)
	}
}

func TestTrailMultipleReducedWhenEfficiencyDeteriorates(t *testing.T) {
	child := domain.SymbolTimeframeMetric{
		EfficiencyHistory: []float64{0.8, 0.6, 0.4, 0.2},
		MomentumHistory:   []float64{0.5, 0.5, 0.5},
	}
	cleanP, gateC := 0.5, 0.5
	base := clamp(2.0+1.2*cleanP-0.6*(1-gateC), 1.6, 3.2)
	got := trailMultiple(cleanP, gateC, child)
	want := clamp(base-0.4, 1.6, 3.2)
	if got != want {
		t.Fatalf("trailMultiple() = %v, want %v (reduced for monotonic decline)", got, want)
	}
}

func TestTrailMultipleReducedWhenMomentumNetDecreasing(t *testing.T) {
	child := domain.SymbolTimeframeMetric{
		EfficiencyHistory: []float64{0.5, 0.6, 0.7},
		MomentumHistory:   []float64{0.9, 0.1},
	}
	cleanP, gateC := 0.5, 0.5
	base := clamp(2.0+1.2*cleanP-0.6*(1-gateC), 1.6, 3.2)
	got := trailMultiple(cleanP, gateC, child)
	want := clamp(base-0.4, 1.6, 3.2)
	if got != want {
		t.Fatalf("trailMultiple() = %v, want %v (reduced for net-decreasing momentum)", got, want)
	}
}

func TestLastNCapsToTail(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5}
	got := lastN(vals, 3)
	if len(got) != 3 || got[0] != 3 || got[2] != 5 {
		t.Fatalf("lastN(_, 3) = %v, want last 3 elements", got)
	}
	if got := lastN(vals, 10); len(got) != 5 {
		t.Fatalf("lastN with n > len should return the full slice, got len %d", len(got))
	}
}
