package strapi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Filter is one filters[...] condition. Field may be a dotted path into a
// relation, for example "author.name".
type Filter struct {
	Field    string
	Operator string
	Value    string
}

// QueryParams renders Strapi REST query parameters.
type QueryParams struct {
	Page             int
	PageSize         int
	Start            int
	Limit            int
	Sort             []string
	Fields           []string
	Populate         []string
	Filters          []Filter
	Locale           string
	Status           string
	PublicationState string
	Extra            url.Values
}

// NewQueryParams creates empty query params.
func NewQueryParams() *QueryParams {
	return &QueryParams{}
}

// WithFilter appends a filter condition.
func (q *QueryParams) WithFilter(field, operator, value string) *QueryParams {
	if !strings.HasPrefix(operator, "$") {
		operator = "$" + operator
	}

	q.Filters = append(q.Filters, Filter{Field: field, Operator: operator, Value: value})

	return q
}

// WithPopulate sets the relations to populate. "*" populates everything.
func (q *QueryParams) WithPopulate(fields ...string) *QueryParams {
	q.Populate = append(q.Populate, fields...)

	return q
}

// WithSort appends sort expressions such as "publishedAt:desc".
func (q *QueryParams) WithSort(fields ...string) *QueryParams {
	q.Sort = append(q.Sort, fields...)

	return q
}

// WithPage sets page-based pagination.
func (q *QueryParams) WithPage(page, pageSize int) *QueryParams {
	q.Page = page
	q.PageSize = pageSize

	return q
}

// Clone returns an independent copy.
func (q *QueryParams) Clone() *QueryParams {
	if q == nil {
		return NewQueryParams()
	}

	clone := *q
	clone.Sort = append([]string(nil), q.Sort...)
	clone.Fields = append([]string(nil), q.Fields...)
	clone.Populate = append([]string(nil), q.Populate...)
	clone.Filters = append([]Filter(nil), q.Filters...)

	if q.Extra != nil {
		clone.Extra = url.Values{}
		for key, values := range q.Extra {
			clone.Extra[key] = append([]string(nil), values...)
		}
	}

	return &clone
}

// ToValues converts the params to url.Values in Strapi bracket syntax.
func (q *QueryParams) ToValues() url.Values {
	values := url.Values{}
	if q == nil {
		return values
	}

	setPositive(values, "pagination[page]", q.Page)
	setPositive(values, "pagination[pageSize]", q.PageSize)
	setPositive(values, "pagination[start]", q.Start)
	setPositive(values, "pagination[limit]", q.Limit)

	for i, sort := range q.Sort {
		values.Set(fmt.Sprintf("sort[%d]", i), sort)
	}

	for i, field := range q.Fields {
		values.Set(fmt.Sprintf("fields[%d]", i), field)
	}

	switch {
	case len(q.Populate) == 1 && q.Populate[0] == "*":
		values.Set("populate", "*")
	default:
		for i, field := range q.Populate {
			values.Set(fmt.Sprintf("populate[%d]", i), field)
		}
	}

	for _, filter := range q.Filters {
		key := "filters"
		for _, part := range strings.Split(filter.Field, ".") {
			key += "[" + part + "]"
		}

		values.Add(key+"["+filter.Operator+"]", filter.Value)
	}

	if q.Locale != "" {
		values.Set("locale", q.Locale)
	}

	if q.Status != "" {
		values.Set("status", q.Status)
	}

	if q.PublicationState != "" {
		values.Set("publicationState", q.PublicationState)
	}

	for key, extra := range q.Extra {
		for _, value := range extra {
			values.Add(key, value)
		}
	}

	return values
}

func setPositive(values url.Values, key string, value int) {
	if value > 0 {
		values.Set(key, strconv.Itoa(value))
	}
}
