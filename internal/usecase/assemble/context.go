package assemble

import (
	"cmp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/newsrank/internal/domain/search/result"
)

// Context bundle sizing.
const (
	SnippetLimit       = 320
	ChunksPerArticle   = 3
	MinContextArticles = 5
	charsPerToken      = 4
	ellipsis           = "…"
)

// Bundle groups the best chunks per article for summarization consumers.
type Bundle struct {
	TotalChunks int              `json:"total_chunks"`
	TotalTokens int              `json:"total_tokens"`
	UniqueSites []string         `json:"unique_sites,omitempty"`
	Articles    []ArticleContext `json:"articles"`
}

// ArticleContext is one article and its selected chunks.
type ArticleContext struct {
	ID          string         `json:"id,omitempty"`
	Site        string         `json:"site,omitempty"`
	URL         string         `json:"url,omitempty"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Author      string         `json:"author,omitempty"`
	PublishedAt string         `json:"published_at,omitempty"`
	Chunks      []ChunkContext `json:"chunks,omitempty"`

	timestamp int64
	best      float64
}

// ChunkContext is one snippet within an article.
type ChunkContext struct {
	ChunkIx *int    `json:"chunk_ix,omitempty"`
	Score   float64 `json:"score"`
	Recency float64 `json:"recency"`
	Snippet string  `json:"snippet"`
	Tokens  int     `json:"-"`
}

// BuildContext groups chunk points by article (article_id, then doc_id, then
// url), keeps the top chunks of each and the top max(limit, 5) articles by
// (timestamp desc, best combined score desc). Returns nil when nothing qualifies.
func BuildContext(points []result.Point, limit int) *Bundle {
	groups := map[string][]result.Point{}
	var order []string
	for i := range points {
		p := &points[i]
		if p.Kind() != result.KindChunk || strings.TrimSpace(p.Payload().String(result.FieldContent)) == "" {
			continue
		}
		key := p.Payload().FirstString(result.FieldArticleID, result.FieldDocID, result.FieldURL)
		if key == "" {
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], *p)
	}
	if len(order) == 0 {
		return nil
	}

	articles := make([]ArticleContext, 0, len(order))
	for _, key := range order {
		chunks := groups[key]
		result.SortByRelevance(chunks)
		if len(chunks) > ChunksPerArticle {
			chunks = chunks[:ChunksPerArticle]
		}
		articles = append(articles, newArticleContext(key, chunks))
	}

	slices.SortStableFunc(articles, func(a, b ArticleContext) int {
		if c := cmp.Compare(b.timestamp, a.timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.best, a.best)
	})
	if n := max(limit, MinContextArticles); len(articles) > n {
		articles = articles[:n]
	}

	bundle := &Bundle{Articles: articles}
	sites := map[string]struct{}{}
	for _, a := range articles {
		bundle.TotalChunks += len(a.Chunks)
		for _, c := range a.Chunks {
			bundle.TotalTokens += c.Tokens
		}
		if a.Site != "" {
			sites[a.Site] = struct{}{}
		}
	}
	for s := range sites {
		bundle.UniqueSites = append(bundle.UniqueSites, s)
	}
	slices.Sort(bundle.UniqueSites)
	return bundle
}

// newArticleContext takes metadata from the best chunk, preferring
// article-level title and description.
func newArticleContext(id string, chunks []result.Point) ArticleContext {
	best := &chunks[0]
	meta := best.Payload()
	a := ArticleContext{
		ID:          id,
		Site:        meta.FirstString(result.FieldSite),
		URL:         meta.FirstString(result.FieldURL),
		Title:       meta.FirstString(result.FieldArticleTitle, result.FieldTitle),
		Description: meta.FirstString(result.FieldArticleDescription, result.FieldDescription),
		Author:      meta.FirstString(result.FieldAuthor),
		PublishedAt: meta.FirstString(result.FieldPublishedAt),
		timestamp:   best.Timestamp(),
		best:        best.CombinedScore(),
	}
	for i := range chunks {
		c := &chunks[i]
		snippet := Snippet(c.Payload().String(result.FieldContent))
		cc := ChunkContext{
			Score:   round(c.CombinedScore()),
			Recency: round(c.RecencyWeight()),
			Snippet: snippet,
			Tokens:  EstimateTokens(snippet),
		}
		if ix, ok := c.Payload().ChunkIx(); ok {
			cc.ChunkIx = &ix
		}
		a.Chunks = append(a.Chunks, cc)
	}
	return a
}

// Snippet collapses whitespace and cuts text longer than SnippetLimit runes
// at the last word boundary, marking the cut with an ellipsis.
func Snippet(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(s) <= SnippetLimit {
		return s
	}
	runes := []rune(s)
	cut := runes[:SnippetLimit]
	if runes[SnippetLimit] != ' ' {
		if i := lastSpace(cut); i > 0 {
			cut = cut[:i]
		}
	}
	return strings.TrimRightFunc(string(cut), unicode.IsSpace) + ellipsis
}

// EstimateTokens approximates the token count as a quarter of the rune count.
func EstimateTokens(snippet string) int {
	return max(utf8.RuneCountInString(snippet)/charsPerToken, 1)
}

func lastSpace(rs []rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == ' ' {
			return i
		}
	}
	return -1
}
