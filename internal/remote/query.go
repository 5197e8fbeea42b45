package remote

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MuhammadAbdiel/aora-app/internal/models"
)

// QueryMethod names a supported document query predicate.
type QueryMethod string

const (
	QueryEqual     QueryMethod = "equal"
	QueryOrderDesc QueryMethod = "orderDesc"
	QuerySearch    QueryMethod = "search"
	QueryLimit     QueryMethod = "limit"
)

const (
	// DefaultListLimit is applied when a listing carries no limit query.
	DefaultListLimit = 25
	// MaxListLimit is the largest page a listing may request.
	MaxListLimit = 100
)

// Query is a single predicate applied to a document listing.
type Query struct {
	Method    QueryMethod `json:"method"`
	Attribute string      `json:"attribute,omitempty"`
	Values    []string    `json:"values,omitempty"`
	Limit     int         `json:"limit,omitempty"`
}

// Equal matches documents whose attribute equals one of values.
func Equal(attribute string, values ...string) Query {
	return Query{Method: QueryEqual, Attribute: attribute, Values: values}
}

// OrderDesc sorts documents by attribute, largest first.
func OrderDesc(attribute string) Query {
	return Query{Method: QueryOrderDesc, Attribute: attribute}
}

// Search matches documents whose attribute contains text, case-insensitively.
func Search(attribute, text string) Query {
	return Query{Method: QuerySearch, Attribute: attribute, Values: []string{text}}
}

// Limit caps the number of documents returned.
func Limit(n int) Query {
	return Query{Method: QueryLimit, Limit: n}
}

// Plan is a validated, normalized set of queries.
type Plan struct {
	Equal     map[string][]string
	Search    map[string]string
	OrderDesc []string
	Limit     int
}

// Compile validates queries and folds them into a Plan.
func Compile(queries []Query) (Plan, error) {
	plan := Plan{
		Equal:  make(map[string][]string),
		Search: make(map[string]string),
		Limit:  DefaultListLimit,
	}

	for _, q := range queries {
		switch q.Method {
		case QueryEqual:
			if q.Attribute == "" || len(q.Values) == 0 {
				return Plan{}, fmt.Errorf("%w: equal requires an attribute and a value", ErrInvalidArgument)
			}
			plan.Equal[q.Attribute] = append(plan.Equal[q.Attribute], q.Values...)
		case QuerySearch:
			if q.Attribute == "" || len(q.Values) != 1 {
				return Plan{}, fmt.Errorf("%w: search requires an attribute and one term", ErrInvalidArgument)
			}
			plan.Search[q.Attribute] = q.Values[0]
		case QueryOrderDesc:
			if q.Attribute == "" {
				return Plan{}, fmt.Errorf("%w: orderDesc requires an attribute", ErrInvalidArgument)
			}
			plan.OrderDesc = append(plan.OrderDesc, q.Attribute)
		case QueryLimit:
			if q.Limit <= 0 || q.Limit > MaxListLimit {
				return Plan{}, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidArgument, MaxListLimit)
			}
			plan.Limit = q.Limit
		default:
			return Plan{}, fmt.Errorf("%w: unsupported query method %q", ErrInvalidArgument, q.Method)
		}
	}

	return plan, nil
}

// Apply filters, orders and truncates docs in memory according to the plan.
func (p Plan) Apply(docs []models.Document) []models.Document {
	matched := make([]models.Document, 0, len(docs))
	for _, doc := range docs {
		if p.matches(doc) {
			matched = append(matched, doc)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		for _, attr := range p.OrderDesc {
			a, b := attributeValue(matched[i], attr), attributeValue(matched[j], attr)
			if a != b {
				return a > b
			}
		}
		// Unordered listings keep insertion order, which is creation order.
		return false
	})

	if len(matched) > p.Limit {
		matched = matched[:p.Limit]
	}
	return matched
}

func (p Plan) matches(doc models.Document) bool {
	for attr, values := range p.Equal {
		got := attributeValue(doc, attr)
		found := false
		for _, v := range values {
			if got == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for attr, text := range p.Search {
		if !strings.Contains(strings.ToLower(attributeValue(doc, attr)), strings.ToLower(text)) {
			return false
		}
	}
	return true
}

// attributeValue returns a comparable string form of a document attribute. System
// timestamps use a fixed-width layout so that lexical order equals time order.
func attributeValue(doc models.Document, attr string) string {
	switch attr {
	case "$id":
		return doc.ID
	case models.FieldCreatedAt:
		return doc.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000000Z")
	case "$updatedAt":
		return doc.UpdatedAt.UTC().Format("2006-01-02T15:04:05.000000000Z")
	}
	v, ok := doc.Data[attr]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
