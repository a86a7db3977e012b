// Package scoring implements the Score Fuser: cross-symbol volume
// normalization, multi-timeframe alignment, and the weighted
// core/confirm/final scoring that ranks movers.
package scoring

import (
	"math"
	"sort"

	"screener-backend/internal/metrics"

	"screener-backend/internal/domain"
)

// SymbolInput is what the Movers Pipeline (C7) hands the fuser for one
// surviving symbol.
type SymbolInput struct {
	LastPrice        float64
	LiquidityPenalty float64
	Metrics          map[string]domain.SymbolTimeframeMetric
}

var mtfWeights = map[string]float64{"10m": 1, "30m": 1, "1h": 1.5, "2h": 1.5}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
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

// Fuse computes cross-symbol scores and assembles the final
// MoversResult from per-symbol, per-timeframe metrics.
func Fuse(inputs map[string]SymbolInput) domain.MoversResult {
	volStats := computeVolumeStats(inputs)

	// finalized holds the fully-scored metric per (symbol, timeframe),
	// so later passes (gainers/losers, aggregated top) don't recompute.
	finalized := make(map[string]map[string]domain.SymbolTimeframeMetric, len(inputs))

	for symbol, in := range inputs {
		scored := make(map[string]domain.SymbolTimeframeMetric, len(in.Metrics))
		for _, tf := range metrics.Timeframes {
			m, ok := in.Metrics[tf.Label]
			if !ok {
				continue
			}
			scored[tf.Label] = m
		}

		for label, m := range scored {
			stats := volStats[label]
			volZ := clamp(safeDivStat(m.TotalQuoteVolume, stats), -3, 3)
			m.VolumeBoost = sigmoid(volZ)
			gVol := clamp(volZ/3, 0, 1)
			m.ActiveFlow = clamp(m.FlowImmediateBase*gVol, 0, 1)

			m.Align = alignment(label, m.NetChange, scored)
			m.MtfConsistency = mtfConsistency(label, m.NetChange, scored)

			core := weightedAvg([]weighted{
				{m.Efficiency, 1},
				{1 - m.Chop, 1},
				{m.MomentumAtr, 1},
				{m.Align, 1},
				{m.MtfConsistency, 0.8},
			})
			m.CoreScore = m.SmallMoveGate * core

			m.ConfirmScore = weightedAvg([]weighted{
				{m.VolumeBoost, 0.5},
				{m.ActiveFlow, 0.3},
				{m.FlowPersistence, 0.2},
			})

			m.FinalScore = clamp(0.67*m.CoreScore+0.33*m.ConfirmScore-in.LiquidityPenalty, 0, 1)
			scored[label] = m
		}
		finalized[symbol] = scored
	}

	snapshots := buildSnapshots(inputs, finalized)
	aggregated := buildAggregatedTop(inputs, finalized)

	return domain.MoversResult{
		Snapshots:     snapshots,
		AggregatedTop: aggregated,
		Metrics:       finalized,
	}
}

type volumeStats struct {
	mean float64
	std  float64
}

func computeVolumeStats(inputs map[string]SymbolInput) map[string]volumeStats {
	byTf := make(map[string][]float64)
	for _, in := range inputs {
		for label, m := range in.Metrics {
			byTf[label] = append(byTf[label], m.TotalQuoteVolume)
		}
	}

	out := make(map[string]volumeStats, len(byTf))
	for label, values := range byTf {
		n := float64(len(values))
		if n == 0 {
			out[label] = volumeStats{mean: 0, std: 1}
			continue
		}
		var mean float64
		for _, v := range values {
			mean += v
		}
		mean /= n

		var variance float64
		for _, v := range values {
			d := v - mean
			variance += d * d
		}
		if n > 1 {
			variance /= n - 1
		}
		std := math.Sqrt(variance)
		if std < 1e-9 {
			std = 1
		}
		out[label] = volumeStats{mean: mean, std: std}
	}
	return out
}

func safeDivStat(v float64, s volumeStats) float64 {
	return (v - s.mean) / s.std
}

// alignment compares the timeframe's sign against every other
// timeframe of the same symbol.
func alignment(label string, netChange float64, scored map[string]domain.SymbolTimeframeMetric) float64 {
	base := sign(netChange)
	var sum float64
	var n int
	for otherLabel, other := range scored {
		if otherLabel == label {
			continue
		}
		otherSign := sign(other.NetChange)
		if otherSign == 0 {
			continue
		}
		n++
		if otherSign == base {
			sum += 1
		} else {
			sum += -0.5
		}
	}
	if n == 0 {
		return 0.5
	}
	return clamp((sum+0.5*float64(n))/(1.5*float64(n)), 0, 1)
}

// mtfConsistency is the weighted sign agreement of the other
// timeframes, times their mean momentum.
func mtfConsistency(label string, netChange float64, scored map[string]domain.SymbolTimeframeMetric) float64 {
	base := sign(netChange)

	var weightedAgree, weightSum, momentumSum float64
	var n int
	for otherLabel, other := range scored {
		if otherLabel == label {
			continue
		}
		w := mtfWeights[otherLabel]
		if w == 0 {
			w = 1
		}
		agree := 0.0
		if sign(other.NetChange) == base && sign(other.NetChange) != 0 {
			agree = 1
		}
		weightedAgree += w * agree
		weightSum += w
		momentumSum += other.MomentumAtr
		n++
	}
	if n == 0 || weightSum == 0 {
		return 0
	}
	agreement := clamp(weightedAgree/weightSum, 0, 1)
	meanMomentum := clamp(momentumSum/float64(n), 0, 1)
	return agreement * meanMomentum
}

type weighted struct {
	value  float64
	weight float64
}

func weightedAvg(items []weighted) float64 {
	var sum, weightSum float64
	for _, it := range items {
		sum += it.value * it.weight
		weightSum += it.weight
	}
	if weightSum == 0 {
		return 0
	}
	return sum / weightSum
}

func buildSnapshots(inputs map[string]SymbolInput, finalized map[string]map[string]domain.SymbolTimeframeMetric) map[string]domain.MoversSnapshot {
	snapshots := make(map[string]domain.MoversSnapshot, len(metrics.Timeframes))

	for _, tf := range metrics.Timeframes {
		entries := make([]domain.MoversEntry, 0, len(finalized))
		changes := make(map[string]float64)
		var window domain.Window

		for symbol, scored := range finalized {
			m, ok := scored[tf.Label]
			if !ok {
				continue
			}
			in := inputs[symbol]
			entries = append(entries, domain.MoversEntry{
				Symbol:        symbol,
				LastPrice:     in.LastPrice,
				ChangePercent: m.ChangePercent,
				FlowPercent:   flowPercent(m.FlowRatio),
				FlowLabel:     &m.FlowLabel,
				Scores:        m.ScoresView(),
			})
			changes[symbol] = m.ChangePercent

			if window.Start == 0 || m.WindowStart < window.Start {
				window.Start = m.WindowStart
			}
			if m.WindowEnd > window.End {
				window.End = m.WindowEnd
			}
		}

		gainers := append([]domain.MoversEntry(nil), entries...)
		sort.Slice(gainers, func(i, j int) bool { return gainers[i].ChangePercent > gainers[j].ChangePercent })
		if len(gainers) > 10 {
			gainers = gainers[:10]
		}

		losers := append([]domain.MoversEntry(nil), entries...)
		sort.Slice(losers, func(i, j int) bool { return losers[i].ChangePercent < losers[j].ChangePercent })
		if len(losers) > 10 {
			losers = losers[:10]
		}

		snapshots[tf.Label] = domain.MoversSnapshot{
			Timeframe:  tf.Label,
			TopGainers: gainers,
			TopLosers:  losers,
			Changes:    changes,
			Window:     window,
		}
	}
	return snapshots
}

func flowPercent(ratio *float64) *float64 {
	if ratio == nil {
		return nil
	}
	pct := *ratio * 100
	return &pct
}

func buildAggregatedTop(inputs map[string]SymbolInput, finalized map[string]map[string]domain.SymbolTimeframeMetric) []domain.AggregatedMoversEntry {
	best := make([]domain.AggregatedMoversEntry, 0, len(finalized))

	for symbol, scored := range finalized {
		var bestLabel string
		var bestMetric domain.SymbolTimeframeMetric
		found := false
		for label, m := range scored {
			if !found || m.FinalScore > bestMetric.FinalScore {
				bestLabel = label
				bestMetric = m
				found = true
			}
		}
		if !found {
			continue
		}

		in := inputs[symbol]
		changes := make(map[string]float64, len(scored))
		for label, m := range scored {
			changes[label] = m.ChangePercent
		}

		best = append(best, domain.AggregatedMoversEntry{
			Entry: domain.MoversEntry{
				Symbol:        symbol,
				LastPrice:     in.LastPrice,
				ChangePercent: bestMetric.ChangePercent,
				FlowPercent:   flowPercent(bestMetric.FlowRatio),
				FlowLabel:     &bestMetric.FlowLabel,
				Scores:        bestMetric.ScoresView(),
			},
			Timeframe:        bestLabel,
			Window:           domain.Window{Start: bestMetric.WindowStart, End: bestMetric.WindowEnd},
			Changes:          changes,
			Metrics:          bestMetric,
			LiquidityPenalty: in.LiquidityPenalty,
		})
	}

	sort.Slice(best, func(i, j int) bool { return best[i].Metrics.FinalScore > best[j].Metrics.FinalScore })
	if len(best) > 20 {
		best = best[:20]
	}
	return best
}
