package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Filter field names, shared by both backend payload schemas.
const (
	FieldSite      = "site"
	FieldBaseURL   = "base_url"
	FieldURL       = "url"
	FieldLang      = "lang"
	FieldAuthor    = "author"
	FieldArticleID = "article_id"
	FieldDateFrom  = "date_from"
	FieldDateTo    = "date_to"
)

// Filters is the set of retrieval constraints attached to a plan.
// A nil list or empty date string means "no constraint".
type Filters struct {
	Site      []string `json:"site,omitempty"`
	BaseURL   []string `json:"base_url,omitempty"`
	URL       []string `json:"url,omitempty"`
	Lang      []string `json:"lang,omitempty"`
	Author    []string `json:"author,omitempty"`
	ArticleID []string `json:"article_id,omitempty"`
	DateFrom  string   `json:"date_from,omitempty"`
	DateTo    string   `json:"date_to,omitempty"`
}

// List is one match-any constraint: the payload field and its accepted values.
type List struct {
	Field  string
	Values []string
}

// FromMap reads filters from a loosely typed object. Unknown keys are ignored,
// scalar values become single-element lists. The result is sanitized.
func FromMap(raw map[string]any) Filters {
	if raw == nil {
		return Filters{}
	}
	f := Filters{
		Site:      toList(raw[FieldSite]),
		BaseURL:   toList(raw[FieldBaseURL]),
		URL:       toList(raw[FieldURL]),
		Lang:      toList(raw[FieldLang]),
		Author:    toList(raw[FieldAuthor]),
		ArticleID: toList(raw[FieldArticleID]),
		DateFrom:  toScalar(raw[FieldDateFrom]),
		DateTo:    toScalar(raw[FieldDateTo]),
	}
	return f.Sanitize()
}

// Sanitize trims every value, drops empty strings and omits empty lists.
// It never fails and is idempotent.
func (f Filters) Sanitize() Filters {
	return Filters{
		Site:      cleanList(f.Site),
		BaseURL:   cleanList(f.BaseURL),
		URL:       cleanList(f.URL),
		Lang:      cleanList(f.Lang),
		Author:    cleanList(f.Author),
		ArticleID: cleanList(f.ArticleID),
		DateFrom:  strings.TrimSpace(f.DateFrom),
		DateTo:    strings.TrimSpace(f.DateTo),
	}
}

// Lists returns the non-empty match-any constraints in a stable order.
func (f Filters) Lists() []List {
	all := []List{
		{Field: FieldSite, Values: f.Site},
		{Field: FieldBaseURL, Values: f.BaseURL},
		{Field: FieldURL, Values: f.URL},
		{Field: FieldLang, Values: f.Lang},
		{Field: FieldAuthor, Values: f.Author},
		{Field: FieldArticleID, Values: f.ArticleID},
	}
	out := all[:0]
	for _, l := range all {
		if len(l.Values) > 0 {
			out = append(out, l)
		}
	}
	return out
}

// WithSite returns a copy constrained to a single site. An empty site leaves
// the site constraint unset.
func (f Filters) WithSite(site string) Filters {
	out := f
	out.Site = nil
	if site = strings.TrimSpace(site); site != "" {
		out.Site = []string{site}
	}
	return out
}

// IsEmpty reports whether no constraint is set.
func (f Filters) IsEmpty() bool {
	return len(f.Lists()) == 0 && f.DateFrom == "" && f.DateTo == ""
}

// Range returns the parsed date bounds. Unparseable bounds are dropped.
func (f Filters) Range() Range {
	var r Range
	if ts, ok := ParseBound(f.DateFrom, false); ok {
		r.From, r.HasFrom = ts, true
	}
	if ts, ok := ParseBound(f.DateTo, true); ok {
		r.To, r.HasTo = ts, true
	}
	return r
}

// Range is an inclusive epoch-seconds interval with optional ends.
type Range struct {
	From    int64
	To      int64
	HasFrom bool
	HasTo   bool
}

// IsEmpty reports whether neither bound is set.
func (r Range) IsEmpty() bool { return !r.HasFrom && !r.HasTo }

// Contains checks ts against the bounds. A zero timestamp means the hit has no
// date at all and is kept.
func (r Range) Contains(ts int64) bool {
	if ts == 0 {
		return true
	}
	if r.HasFrom && ts < r.From {
		return false
	}
	if r.HasTo && ts > r.To {
		return false
	}
	return true
}

var bareDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ParseBound converts a date or date-time string into epoch seconds.
// A bare YYYY-MM-DD is a UTC day boundary: the start of the day, or its last
// millisecond when endOfDay is set. Anything else goes through general parsing,
// with zone-less values read as UTC.
func ParseBound(value string, endOfDay bool) (int64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if bareDate.MatchString(value) {
		day, err := time.ParseInLocation(time.DateOnly, value, time.UTC)
		if err != nil {
			return 0, false
		}
		if endOfDay {
			day = day.Add(24*time.Hour - time.Millisecond)
		}
		return day.Unix(), true
	}
	t, err := ParseTime(value)
	if err != nil {
		return 0, false
	}
	return t.Unix(), true
}

// ParseTime parses a date-time string in any common layout, defaulting to UTC.
func ParseTime(value string) (time.Time, error) {
	t, err := dateparse.ParseIn(strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", value, err)
	}
	return t.UTC(), nil
}

func cleanList(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func toList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return cleanList(t)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := toScalar(item); s != "" {
				out = append(out, s)
			}
		}
		return cleanList(out)
	default:
		return cleanList([]string{toScalar(t)})
	}
}

func toScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if !t {
			return ""
		}
		return "true"
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
