package strategy

import "screener-backend/internal/domain"

// framework holds the parent/child timeframe pairing selected for a
// candidate.
type framework struct {
	parentLabel string
	childLabel  string
	parent      domain.SymbolTimeframeMetric
	child       domain.SymbolTimeframeMetric
}

// selectFramework implements the parent/child timeframe selection
// cascade. ok is false when no framework qualifies.
func selectFramework(metrics map[string]domain.SymbolTimeframeMetric) (framework, bool) {
	h1, hasH1 := metrics["1h"]
	m30, has30 := metrics["30m"]
	m10, has10 := metrics["10m"]

	if hasH1 && has30 {
		trend := h1.SignedTrend()
		if trend >= 70 && h1.Efficiency*100 >= 55 {
			return framework{parentLabel: "1h", childLabel: "30m", parent: h1, child: m30}, true
		}
	}
	if has30 && has10 {
		return framework{parentLabel: "30m", childLabel: "10m", parent: m30, child: m10}, true
	}
	if hasH1 && has30 {
		return framework{parentLabel: "1h", childLabel: "30m", parent: h1, child: m30}, true
	}
	return framework{}, false
}

// direction decides LONG/SHORT/none from the parent timeframe.
func direction(parent domain.SymbolTimeframeMetric) (domain.Direction, bool) {
	trend := parent.SignedTrend()
	align := parent.Align * 100
	switch {
	case trend >= 65 && align >= 60 && parent.NetChange >= 0:
		return domain.Long, true
	case trend <= -65 && align >= 60 && parent.NetChange <= 0:
		return domain.Short, true
	default:
		return "", false
	}
}

// entryGates evaluates every entry gate. managed reports whether the
// symbol already carries a managed position in this direction.
func entryGates(fw framework, dir domain.Direction, liquidityPenalty float64, managed, canOpen bool) bool {
	if managed || !canOpen {
		return false
	}
	if fw.parent.Efficiency*100 < 45 {
		return false
	}
	if fw.parent.Align*100 < 50 {
		return false
	}
	if liquidityPenalty*100 >= 40 {
		return false
	}
	return trigger(fw.child, dir)
}

func trigger(child domain.SymbolTimeframeMetric, dir domain.Direction) bool {
	momentumSignConsistent := sign(child.NetChange) == dir.Sign() || child.NetChange == 0
	if child.SmallMoveGate >= 0.65 && child.MomentumAtr >= 0.5 && momentumSignConsistent {
		return true
	}
	scores := child.ScoresView()
	if scores.Efficiency >= 55 && (scores.Volume >= 55 || scores.Flow >= 55) {
		return true
	}
	return false
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
