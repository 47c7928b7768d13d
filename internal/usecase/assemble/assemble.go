// Package assemble shapes scored points into the per-intent response.
// Assembly never fails: an unknown intent yields an empty hit list.
package assemble

import (
	"strings"

	"github.com/kailas-cloud/newsrank/internal/domain/search/filter"
	"github.com/kailas-cloud/newsrank/internal/domain/search/plan"
	"github.com/kailas-cloud/newsrank/internal/domain/search/result"
)

// Input is everything a plan's responses produced.
type Input struct {
	Plan    plan.Plan
	Primary []result.Point
	Context []result.Point
	// Listing ranks primary points by recency only. Pure listing intents
	// always do; set it when a search degraded to a listing.
	Listing bool
}

// Assemble builds the response for in.Plan.Intent.
func Assemble(in Input) Response {
	pl := in.Plan
	listing := in.Listing || pl.Intent.IsPureListing()
	rng := pl.Filters.Range()
	primary := dedupe(in.Primary)
	k := max(pl.TopK, 1)

	switch pl.Intent {
	case plan.LatestBySite:
		arts := inRange(result.OfKind(primary, result.KindArticle), rng)
		groups := map[string][]Item{}
		for site, pts := range bySite(arts) {
			result.SortByRecency(pts)
			groups[site] = items(head(pts, max(pl.PerSite, 1)), ArticleFields)
		}
		return Response{Intent: pl.Intent, Groups: groups}

	case plan.SearchArticles, plan.FilterOnlyArticles:
		return Response{Intent: pl.Intent, Hits: articleHits(primary, rng, listing, k)}

	case plan.SearchChunks, plan.FilterOnlyChunks:
		chunks := inRange(result.OfKind(primary, result.KindChunk), rng)
		if pl.ExactPhrase && pl.QueryText != "" {
			chunks = containing(chunks, pl.QueryText)
		}
		rank(chunks, listing)
		return Response{Intent: pl.Intent, Hits: items(head(chunks, k), ChunkFields)}

	case plan.CompareViewpoints:
		arts := inRange(result.OfKind(primary, result.KindArticle), rng)
		rank(arts, listing)
		groups := map[string][]Item{}
		for site, pts := range bySite(arts) {
			groups[site] = items(head(pts, k), ArticleFields)
		}
		return Response{Intent: pl.Intent, Groups: groups, Context: contextFor(in.Context, rng, k)}

	case plan.Summarize, plan.Backgrounder:
		return Response{
			Intent:  pl.Intent,
			Hits:    articleHits(primary, rng, listing, k),
			Context: contextFor(in.Context, rng, k),
		}
	}
	return Response{Intent: pl.Intent, Hits: []Item{}}
}

func articleHits(points []result.Point, rng filter.Range, listing bool, k int) []Item {
	arts := inRange(result.OfKind(points, result.KindArticle), rng)
	rank(arts, listing)
	return items(head(arts, k), ArticleFields)
}

func contextFor(points []result.Point, rng filter.Range, k int) *Bundle {
	if len(points) == 0 {
		return nil
	}
	return BuildContext(inRange(dedupe(points), rng), k)
}

func rank(points []result.Point, listing bool) {
	if listing {
		result.SortByRecency(points)
		return
	}
	result.SortByRelevance(points)
}

// dedupe keeps the first point per ID; fan-out requests may overlap.
func dedupe(points []result.Point) []result.Point {
	seen := make(map[string]struct{}, len(points))
	out := make([]result.Point, 0, len(points))
	for i := range points {
		id := points[i].ID()
		if id != "" {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
		}
		out = append(out, points[i])
	}
	return out
}

func inRange(points []result.Point, rng filter.Range) []result.Point {
	if rng.IsEmpty() {
		return points
	}
	out := points[:0]
	for i := range points {
		if rng.Contains(points[i].Timestamp()) {
			out = append(out, points[i])
		}
	}
	return out
}

// containing keeps chunks whose content holds needle, case-insensitively.
func containing(points []result.Point, needle string) []result.Point {
	needle = strings.ToLower(needle)
	out := points[:0]
	for i := range points {
		content := strings.ToLower(points[i].Payload().String(result.FieldContent))
		if strings.Contains(content, needle) {
			out = append(out, points[i])
		}
	}
	return out
}

// bySite groups points by their site, preserving order. Points without a
// site are dropped.
func bySite(points []result.Point) map[string][]result.Point {
	out := map[string][]result.Point{}
	for i := range points {
		site := points[i].Payload().FirstString(result.FieldSite)
		if site == "" {
			continue
		}
		out[site] = append(out[site], points[i])
	}
	return out
}

func head(points []result.Point, n int) []result.Point {
	if len(points) > n {
		return points[:n]
	}
	return points
}
