package result

import (
	"math"
	"testing"
	"time"
)

const eps = 1e-9

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func hoursAgo(h float64) int64 {
	return now.Add(-time.Duration(h * float64(time.Hour))).Unix()
}

func TestRecencyWeight(t *testing.T) {
	s := DefaultScorer()
	tests := []struct {
		name string
		ts   int64
		want float64
	}{
		{"undated", 0, 0},
		{"now", now.Unix(), 1},
		{"future", now.Add(time.Hour).Unix(), 1},
		{"one half-life", hoursAgo(36), 0.5},
		{"two half-lives", hoursAgo(72), 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.RecencyWeight(tt.ts, now)
			if math.Abs(got-tt.want) > eps {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecencyWeight_CustomHalfLife(t *testing.T) {
	s := NewScorer(12, DefaultRecencyBias)
	if got := s.RecencyWeight(hoursAgo(12), now); math.Abs(got-0.5) > eps {
		t.Errorf("got %v, want 0.5", got)
	}
}

func TestCombine(t *testing.T) {
	s := DefaultScorer()
	tests := []struct {
		name   string
		vs, rw float64
		want   float64
	}{
		{"blend", 0.8, 0.5, 0.65*0.8 + 0.35*0.5},
		{"negative relevance", -1, 1, 0.35},
		{"recency capped", 0, 5, 0.35 * 1.2},
		{"negative recency", 1, -1, 0.65},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Combine(tt.vs, tt.rw); math.Abs(got-tt.want) > eps {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewScorer_ClampsBias(t *testing.T) {
	if b := NewScorer(36, 2).RecencyBias(); b != MaxRecencyBias {
		t.Errorf("high bias: got %v", b)
	}
	if b := NewScorer(36, -1).RecencyBias(); b != 0 {
		t.Errorf("low bias: got %v", b)
	}
}

func TestScore_NormalizesHit(t *testing.T) {
	s := DefaultScorer()
	p := s.Score(Raw{
		ID:      "a1",
		Payload: Payload{"indexed_at_ts": float64(hoursAgo(36)), "title": "t"},
		Score:   0.9,
	}, now)

	if p.ID() != "a1" || p.Kind() != KindArticle {
		t.Errorf("id/kind: %q %q", p.ID(), p.Kind())
	}
	if p.Timestamp() != hoursAgo(36) {
		t.Errorf("timestamp should fall back to indexed_at_ts, got %d", p.Timestamp())
	}
	want := s.Combine(p.VectorScore(), p.RecencyWeight())
	if math.Abs(p.CombinedScore()-want) > eps {
		t.Errorf("combined %v not recomputable (%v)", p.CombinedScore(), want)
	}
}

func TestScore_Total(t *testing.T) {
	s := DefaultScorer()
	raws := []Raw{
		{},
		{ID: "nan", Score: math.NaN()},
		{ID: "inf", Score: math.Inf(1)},
		{ID: "neg", Score: -0.4},
		{ID: "bad-ts", Payload: Payload{"published_at_ts": "not a number"}},
	}
	for _, p := range s.ScoreAll(raws, now) {
		if p.VectorScore() != 0 {
			t.Errorf("%q: expected zero vector score, got %v", p.ID(), p.VectorScore())
		}
		if p.Timestamp() != 0 || p.RecencyWeight() != 0 {
			t.Errorf("%q: expected undated point", p.ID())
		}
		if p.Payload() == nil {
			t.Errorf("%q: nil payload", p.ID())
		}
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(Payload{"chunk_ix": float64(0)}) != KindChunk {
		t.Error("chunk_ix marks a chunk even at index 0")
	}
	if KindOf(Payload{"content": "full body"}) != KindArticle {
		t.Error("content alone must not mark a chunk")
	}
}

func TestTimestamp_PrefersPublished(t *testing.T) {
	p := Payload{"published_at_ts": float64(200), "indexed_at_ts": float64(100)}
	if p.Timestamp() != 200 {
		t.Errorf("got %d", p.Timestamp())
	}
	p = Payload{"published_at_ts": float64(0), "indexed_at_ts": float64(100)}
	if p.Timestamp() != 100 {
		t.Errorf("zero published should fall back, got %d", p.Timestamp())
	}
}

func TestSortByRelevance(t *testing.T) {
	s := DefaultScorer()
	points := s.ScoreAll([]Raw{
		{ID: "low", Score: 0.1, Payload: Payload{"published_at_ts": float64(hoursAgo(1))}},
		{ID: "old", Score: 0.9, Payload: Payload{"published_at_ts": float64(1)}},
		{ID: "new", Score: 0.9, Payload: Payload{"published_at_ts": float64(2)}},
	}, now)
	SortByRelevance(points)

	got := []string{points[0].ID(), points[1].ID(), points[2].ID()}
	want := []string{"new", "old", "low"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSortByRecency(t *testing.T) {
	points := DefaultScorer().ScoreAll([]Raw{
		{ID: "a", Score: 1, Payload: Payload{"published_at_ts": float64(10)}},
		{ID: "b", Payload: Payload{"published_at_ts": float64(30)}},
		{ID: "c", Payload: Payload{}},
	}, now)
	SortByRecency(points)
	if points[0].ID() != "b" || points[1].ID() != "a" || points[2].ID() != "c" {
		t.Errorf("unexpected order %s %s %s", points[0].ID(), points[1].ID(), points[2].ID())
	}
}
