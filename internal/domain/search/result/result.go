package result

import (
	"cmp"
	"math"
	"slices"
	"time"
)

// Scoring defaults.
const (
	DefaultHalfLifeHours = 36.0
	DefaultRecencyBias   = 0.35
	MaxRecencyBias       = 0.9
	maxRecencyWeight     = 1.2
)

// Raw is one decoded backend hit before scoring.
type Raw struct {
	ID      string
	Payload Payload
	Score   float64
}

// Point is a normalized, scored hit.
type Point struct {
	id            string
	kind          Kind
	payload       Payload
	vectorScore   float64
	timestamp     int64
	recencyWeight float64
	bias          float64
}

// ID returns the backend point identifier.
func (p *Point) ID() string { return p.id }

// Kind returns article or chunk.
func (p *Point) Kind() Kind { return p.kind }

// Payload returns the backend field map.
func (p *Point) Payload() Payload { return p.payload }

// VectorScore returns the non-negative relevance score.
func (p *Point) VectorScore() float64 { return p.vectorScore }

// Timestamp returns the epoch seconds used for recency, 0 when undated.
func (p *Point) Timestamp() int64 { return p.timestamp }

// RecencyWeight returns the half-life decay weight.
func (p *Point) RecencyWeight() float64 { return p.recencyWeight }

// CombinedScore blends relevance and recency with the scorer's bias.
func (p *Point) CombinedScore() float64 {
	return combine(p.vectorScore, p.recencyWeight, p.bias)
}

// Scorer computes recency weights and combined scores.
type Scorer struct {
	halfLifeHours float64
	recencyBias   float64
}

// NewScorer creates a Scorer. Bias is clamped to [0, 0.9].
func NewScorer(halfLifeHours, recencyBias float64) Scorer {
	return Scorer{halfLifeHours: halfLifeHours, recencyBias: clamp(recencyBias, 0, MaxRecencyBias)}
}

// DefaultScorer uses a 36h half-life and 0.35 bias.
func DefaultScorer() Scorer {
	return NewScorer(DefaultHalfLifeHours, DefaultRecencyBias)
}

// RecencyBias returns the clamped bias.
func (s Scorer) RecencyBias() float64 { return s.recencyBias }

// RecencyWeight decays by half every half-life. Undated hits weigh 0,
// hits at or after now weigh 1.
func (s Scorer) RecencyWeight(ts int64, now time.Time) float64 {
	if ts == 0 {
		return 0
	}
	ageSeconds := max(now.Unix()-ts, 0)
	if ageSeconds == 0 || s.halfLifeHours <= 0 {
		return 1
	}
	ageHours := float64(ageSeconds) / 3600
	return math.Exp(-math.Ln2 * ageHours / s.halfLifeHours)
}

// Combine blends a relevance score with a recency weight.
func (s Scorer) Combine(vectorScore, recencyWeight float64) float64 {
	return combine(vectorScore, recencyWeight, s.recencyBias)
}

// Score normalizes one raw hit. Non-finite or negative scores become 0.
func (s Scorer) Score(r Raw, now time.Time) Point {
	payload := r.Payload
	if payload == nil {
		payload = Payload{}
	}
	vs := r.Score
	if math.IsNaN(vs) || math.IsInf(vs, 0) || vs < 0 {
		vs = 0
	}
	ts := payload.Timestamp()
	return Point{
		id:            r.ID,
		kind:          KindOf(payload),
		payload:       payload,
		vectorScore:   vs,
		timestamp:     ts,
		recencyWeight: s.RecencyWeight(ts, now),
		bias:          s.recencyBias,
	}
}

// ScoreAll normalizes a batch of raw hits, preserving order.
func (s Scorer) ScoreAll(raws []Raw, now time.Time) []Point {
	out := make([]Point, len(raws))
	for i, r := range raws {
		out[i] = s.Score(r, now)
	}
	return out
}

// SortByRelevance orders by combined score desc, then timestamp desc.
func SortByRelevance(points []Point) {
	slices.SortStableFunc(points, func(a, b Point) int {
		if c := cmp.Compare(b.CombinedScore(), a.CombinedScore()); c != 0 {
			return c
		}
		return cmp.Compare(b.timestamp, a.timestamp)
	})
}

// SortByRecency orders by timestamp desc.
func SortByRecency(points []Point) {
	slices.SortStableFunc(points, func(a, b Point) int {
		return cmp.Compare(b.timestamp, a.timestamp)
	})
}

// OfKind keeps the points of one kind.
func OfKind(points []Point, k Kind) []Point {
	out := make([]Point, 0, len(points))
	for _, p := range points {
		if p.kind == k {
			out = append(out, p)
		}
	}
	return out
}

func combine(vectorScore, recencyWeight, bias float64) float64 {
	b := clamp(bias, 0, MaxRecencyBias)
	return (1-b)*max(vectorScore, 0) + b*clamp(recencyWeight, 0, maxRecencyWeight)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
