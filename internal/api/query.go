package api

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/marketplace/internal/apperr"
)

// Query reads optional typed parameters from a URL query, collecting a field
// error for every value that does not parse. Absent parameters yield nil.
type Query struct {
	values url.Values
	fields []apperr.FieldError
}

func NewQuery(values url.Values) *Query {
	return &Query{values: values}
}

func (q *Query) fail(name, message string) {
	q.fields = append(q.fields, apperr.FieldError{Field: name, Message: message})
}

func (q *Query) String(name string) *string {
	v := strings.TrimSpace(q.values.Get(name))
	if v == "" {
		return nil
	}
	return &v
}

func (q *Query) Strings(name string) []string {
	var out []string
	for _, raw := range q.values[name] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (q *Query) Int(name string) *int {
	v := q.values.Get(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		q.fail(name, "must be an integer")
		return nil
	}
	return &n
}

func (q *Query) Float(name string) *float64 {
	v := q.values.Get(name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		q.fail(name, "must be a number")
		return nil
	}
	return &f
}

func (q *Query) Bool(name string) *bool {
	v := q.values.Get(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		q.fail(name, "must be true or false")
		return nil
	}
	return &b
}

func (q *Query) Decimal(name string) *decimal.Decimal {
	v := q.values.Get(name)
	if v == "" {
		return nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		q.fail(name, "must be a decimal number")
		return nil
	}
	return &d
}

// Time accepts RFC 3339 timestamps or plain dates.
func (q *Query) Time(name string) *time.Time {
	v := q.values.Get(name)
	if v == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	q.fail(name, "must be an RFC 3339 timestamp or YYYY-MM-DD date")
	return nil
}

// Err returns the collected parse failures as one Validation error.
func (q *Query) Err() error {
	if len(q.fields) == 0 {
		return nil
	}
	return apperr.Validation(q.fields...)
}
