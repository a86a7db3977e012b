package domain

import "time"

// Direction is the side of a managed position.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Sign returns +1 for LONG, -1 for SHORT.
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

// PositionLeg is one side (long or short) of an exchange-reported
// position for a symbol.
type PositionLeg struct {
	Quantity      float64
	EntryPrice    float64
	UnrealizedPnl float64
}

// PositionSummary is the exchange's view of a symbol's position(s).
// Under dual-side mode a symbol may carry both Long and Short legs
// simultaneously.
type PositionSummary struct {
	Symbol        string
	Net           float64
	Long          *PositionLeg
	Short         *PositionLeg
	UnrealizedPnl float64
}

// QuantityEpsilon is the "effectively zero" threshold for quantities;
// below this a leg is treated as flat.
const QuantityEpsilon = 1e-6

// Leg returns the position leg for the given direction, or nil if the
// exchange reports none or a quantity below QuantityEpsilon.
func (p PositionSummary) Leg(dir Direction) *PositionLeg {
	var leg *PositionLeg
	if dir == Long {
		leg = p.Long
	} else {
		leg = p.Short
	}
	if leg == nil || leg.Quantity <= QuantityEpsilon {
		return nil
	}
	return leg
}

// TimeStopStage tracks the two-stage time-stop escalation of §4.9.
type TimeStopStage int

const (
	TimeStopNone TimeStopStage = iota
	TimeStopTightened
)

// ManagedPositionState is owned exclusively by the Strategy Engine. The
// Executor is the source of truth for what is actually open on the
// exchange; this struct tracks the Strategy Engine's own bookkeeping
// for a position it opened (or reconciled onto).
type ManagedPositionState struct {
	Symbol         string
	Direction      Direction
	ParentTimeframe string
	ChildTimeframe  string

	EntryPrice      float64
	BaseQuantity    float64
	TotalQuantity   float64

	KSl              float64
	InitialSlDistance float64 // immutable once set at entry
	SlDistance       float64
	StopPrice        float64
	TrailAtrMultiple float64

	CleanScore float64 // cleanP
	GateScore  float64 // gateC (child.smallMoveGate at entry)

	OpenedAt time.Time

	AddCount int // monotone, [0,2]
	BeMoved  bool

	HighestObserved float64
	LowestObserved  float64
	TrailPrice      *float64

	PartialOneTaken bool
	PartialTwoTaken bool

	TimeStopStage     TimeStopStage
	TimeStopTimestamp *time.Time

	StructureBreakCounter int

	ParentAtr    float64
	ChildAtr     float64
	RiskAmount   float64
	ParentMinutes int
	ChildMinutes  int

	MaxR float64

	// Snapshots holds the metrics used for gating/sizing decisions at
	// entry time and is refreshed each cycle; live ticks mutate the
	// LatestClose/HighestClose/LowestClose/CloseHistory fields of the
	// child snapshot in place.
	Snapshots map[string]SymbolTimeframeMetric

	LastPrice float64
}

// R computes the favorable excursion expressed in units of the original
// stop distance: R = dir * (price - entry) / initialSlDistance.
func (s *ManagedPositionState) R(price float64) float64 {
	if s.InitialSlDistance <= 0 {
		return 0
	}
	return s.Direction.Sign() * (price - s.EntryPrice) / s.InitialSlDistance
}

// UpdateMaxR recomputes R at price and raises MaxR if it improved.
func (s *ManagedPositionState) UpdateMaxR(price float64) float64 {
	r := s.R(price)
	if r > s.MaxR {
		s.MaxR = r
	}
	return r
}
