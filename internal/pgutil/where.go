// Package pgutil holds small helpers shared by the Postgres repositories.
package pgutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Where accumulates AND-joined predicates with positional arguments.
// Each condition uses ? for its argument, rewritten to $n on Add.
type Where struct {
	conds []string
	args  []any
}

// Add appends cond, binding one argument per ? in order.
func (w *Where) Add(cond string, args ...any) {
	var b strings.Builder
	next := 0
	for _, r := range cond {
		if r == '?' && next < len(args) {
			w.args = append(w.args, args[next])
			fmt.Fprintf(&b, "$%d", len(w.args))
			next++
			continue
		}
		b.WriteRune(r)
	}
	w.conds = append(w.conds, b.String())
}

// Arg binds a value that is referenced outside the WHERE clause and returns its placeholder.
func (w *Where) Arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

// SQL returns " WHERE a AND b" or an empty string when there are no predicates.
func (w *Where) SQL() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func (w *Where) Args() []any {
	return w.args
}

// Clone copies the builder so a count query and a page query can diverge.
func (w *Where) Clone() *Where {
	return &Where{
		conds: append([]string(nil), w.conds...),
		args:  append([]any(nil), w.args...),
	}
}

// EscapeLike escapes LIKE wildcards in user input.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

func pqCode(err error) (string, string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint
	}
	return "", ""
}

// IsUniqueViolation reports whether err is a unique constraint failure and
// returns the violated constraint name.
func IsUniqueViolation(err error) (string, bool) {
	code, constraint := pqCode(err)
	return constraint, code == codeUniqueViolation
}

func IsForeignKeyViolation(err error) bool {
	code, _ := pqCode(err)
	return code == codeForeignKeyViolation
}

func IsCheckViolation(err error) (string, bool) {
	code, constraint := pqCode(err)
	return constraint, code == codeCheckViolation
}
