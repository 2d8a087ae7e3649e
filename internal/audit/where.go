package audit

import (
	"fmt"
	"strings"
	"time"
)

// whereBuilder assembles a parameterized WHERE clause. Column names are
// compile-time constants; only values travel as arguments.
type whereBuilder struct {
	conditions []string
	args       []any
}

func newWhereBuilder() *whereBuilder {
	return &whereBuilder{}
}

func (wb *whereBuilder) next() string {
	return fmt.Sprintf("$%d", len(wb.args)+1)
}

// eq adds "column = value". Empty values are skipped.
func (wb *whereBuilder) eq(column, value string) {
	if value == "" {
		return
	}
	wb.conditions = append(wb.conditions, column+" = "+wb.next())
	wb.args = append(wb.args, value)
}

// timeRange adds an inclusive lower and exclusive upper bound. Zero times are skipped.
func (wb *whereBuilder) timeRange(column string, since, until time.Time) {
	if !since.IsZero() {
		wb.conditions = append(wb.conditions, column+" >= "+wb.next())
		wb.args = append(wb.args, since)
	}
	if !until.IsZero() {
		wb.conditions = append(wb.conditions, column+" < "+wb.next())
		wb.args = append(wb.args, until)
	}
}

// build returns the clause with a leading space, or "" when empty.
func (wb *whereBuilder) build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}
