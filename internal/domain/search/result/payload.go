package result

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Well-known payload fields.
const (
	FieldID                 = "id"
	FieldDocID              = "doc_id"
	FieldArticleID          = "article_id"
	FieldArticleTitle       = "article_title"
	FieldArticleDescription = "article_description"
	FieldTitle              = "title"
	FieldDescription        = "description"
	FieldSite               = "site"
	FieldURL                = "url"
	FieldAuthor             = "author"
	FieldLang               = "lang"
	FieldContent            = "content"
	FieldChunkIx            = "chunk_ix"
	FieldPublishedAt        = "published_at"
	FieldPublishedAtTS      = "published_at_ts"
	FieldIndexedAt          = "indexed_at"
	FieldIndexedAtTS        = "indexed_at_ts"
)

// Payload is the opaque field map a backend returns for one hit.
type Payload map[string]any

// Has reports whether the field is present, even when null.
func (p Payload) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// String returns the field as text. Numbers are formatted, nil is empty.
func (p Payload) String(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the field as an integer when it holds a finite number or numeric string.
func (p Payload) Int64(key string) (int64, bool) {
	f, ok := p.Float64(key)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// Float64 returns the field as a finite float.
func (p Payload) Float64(key string) (float64, bool) {
	var f float64
	switch v := p[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Timestamp prefers the published epoch, then the indexed epoch, else 0.
func (p Payload) Timestamp() int64 {
	if ts, ok := p.Int64(FieldPublishedAtTS); ok && ts != 0 {
		return ts
	}
	if ts, ok := p.Int64(FieldIndexedAtTS); ok && ts != 0 {
		return ts
	}
	return 0
}

// ChunkIx returns the chunk sequence index.
func (p Payload) ChunkIx() (int, bool) {
	n, ok := p.Int64(FieldChunkIx)
	return int(n), ok
}

// FirstString returns the first non-blank field among keys.
func (p Payload) FirstString(keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(p.String(k)); s != "" {
			return s
		}
	}
	return ""
}

// Kind is the structural class of a hit.
type Kind string

// Hit kinds.
const (
	KindArticle Kind = "article"
	KindChunk   Kind = "chunk"
)

// KindOf classifies a payload. Only the chunk sequence field discriminates:
// articles may carry full content too.
func KindOf(p Payload) Kind {
	if p.Has(FieldChunkIx) {
		return KindChunk
	}
	return KindArticle
}
