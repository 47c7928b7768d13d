// Package request describes backend calls produced by the planner.
// Descriptors are plain data: building one never performs I/O.
package request

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kailas-cloud/newsrank/internal/domain/search/filter"
	"github.com/kailas-cloud/newsrank/internal/domain/search/plan"
)

// Role places a descriptor within a fan-out set.
type Role string

// Descriptor roles.
const (
	// Primary requests feed hits or groups.
	Primary Role = "primary"
	// Context requests feed the chunk context bundle.
	Context Role = "context"
)

// Operation is the backend call kind.
type Operation string

// Operations.
const (
	OpSearch Operation = "search"
	OpScroll Operation = "scroll"
	OpLatest Operation = "latest"
)

// Query is the backend-agnostic input of a single request.
type Query struct {
	Index   plan.ReturnIndex
	Filters filter.Filters
	Text    string
	Phrase  bool
	Vector  []float32
	Limit   int
	Sort    plan.Sort
	Fields  []string
}

// Descriptor is one executable backend request.
type Descriptor struct {
	Role      Role              `json:"role"`
	Backend   string            `json:"backend"`
	Operation Operation         `json:"operation"`
	Index     plan.ReturnIndex  `json:"index"`
	Site      string            `json:"site,omitempty"`
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Header    map[string]string `json:"header,omitempty"`
	Body      any               `json:"body"`
	Limit     int               `json:"limit"`
}

var secretHeaders = map[string]struct{}{
	"authorization": {},
	"api-key":       {},
}

// MarshalJSON masks credential headers so descriptors can be shown to clients.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	type plain Descriptor
	out := plain(d)
	if len(d.Header) > 0 {
		out.Header = make(map[string]string, len(d.Header))
		for k, v := range d.Header {
			if _, secret := secretHeaders[strings.ToLower(k)]; secret {
				v = "***"
			}
			out.Header[k] = v
		}
	}
	return json.Marshal(out) //nolint:wrapcheck // plain struct encoding
}

// NewJSON creates a POST descriptor with a JSON content type.
func NewJSON(backend string, op Operation, url string, body any) Descriptor {
	return Descriptor{
		Backend:   backend,
		Operation: op,
		Method:    http.MethodPost,
		URL:       url,
		Header:    map[string]string{"Content-Type": "application/json"},
		Body:      body,
	}
}

// Response pairs a descriptor with the raw body it returned.
type Response struct {
	Descriptor Descriptor
	Body       []byte
}
