// Package database builds parameterized list queries for the repositories.
// Identifiers are quoted through pgx so filter fields and sort columns coming
// from request options can never inject SQL.
package database

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ConditionType is the SQL comparison applied by a Condition.
type ConditionType string

const (
	Equal              ConditionType = "="
	NotEqual           ConditionType = "!="
	GreaterThan        ConditionType = ">"
	GreaterThanOrEqual ConditionType = ">="
	LessThan           ConditionType = "<"
	LessThanOrEqual    ConditionType = "<="
	ILike              ConditionType = "ILIKE"
	In                 ConditionType = "IN"
)

// unset marks Limit/Offset as "not requested" so that explicit zero values
// still produce a clause.
const unset = -1

// Condition is a single WHERE predicate.
type Condition struct {
	Field string
	Type  ConditionType
	Value any
}

// WhereCond builds a predicate on a column.
func WhereCond(field string, condType ConditionType, value any) Condition {
	return Condition{Field: field, Type: condType, Value: value}
}

// ListQueryOptions collects everything needed to render a list query.
type ListQueryOptions struct {
	Table      string
	Columns    []string
	RawColumns []string
	Conditions []Condition
	OrderBy    string
	OrderDir   string
	Limit      int
	Offset     int
}

// ListQueryOption mutates ListQueryOptions.
type ListQueryOption func(*ListQueryOptions)

// NewListQueryOptions applies opts over a defaulted options struct for table.
func NewListQueryOptions(table string, opts ...ListQueryOption) *ListQueryOptions {
	o := &ListQueryOptions{
		Table:  table,
		Limit:  unset,
		Offset: unset,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithColumns sets the selected columns. Without it the query selects *.
func WithColumns(cols ...string) ListQueryOption {
	return func(o *ListQueryOptions) { o.Columns = cols }
}

// WithRawColumn appends a column expression verbatim, such as
// "EXTRACT(EPOCH FROM execution_interval)::bigint AS interval_seconds".
// The expression must be a compile-time literal, never request input.
func WithRawColumn(expr string) ListQueryOption {
	return func(o *ListQueryOptions) { o.RawColumns = append(o.RawColumns, expr) }
}

// WithCondition appends a WHERE predicate. Predicates combine with AND.
func WithCondition(cond Condition) ListQueryOption {
	return func(o *ListQueryOptions) { o.Conditions = append(o.Conditions, cond) }
}

// WithOrderBy sets the sort column and direction ("ASC" or "DESC").
func WithOrderBy(column, direction string) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.OrderBy = column
		o.OrderDir = direction
	}
}

// WithLimit sets the row limit. Zero is honored; negative values are ignored.
func WithLimit(limit int) ListQueryOption {
	return func(o *ListQueryOptions) {
		if limit >= 0 {
			o.Limit = limit
		}
	}
}

// WithOffset sets the row offset. Zero is honored; negative values are ignored.
func WithOffset(offset int) ListQueryOption {
	return func(o *ListQueryOptions) {
		if offset >= 0 {
			o.Offset = offset
		}
	}
}

// BuildListQuery renders options into a query string and its positional args.
func BuildListQuery(options *ListQueryOptions) (string, []any) {
	if options == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(selectList(options.Columns, options.RawColumns))
	sb.WriteString(" FROM ")
	sb.WriteString(quoteIdent(options.Table))

	var args []any
	if clause, condArgs := whereClause(options.Conditions); clause != "" {
		sb.WriteString(" ")
		sb.WriteString(clause)
		args = condArgs
	}

	if options.OrderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(quoteQualifiedIdent(options.OrderBy))
		if dir := strings.ToUpper(options.OrderDir); dir == "ASC" || dir == "DESC" {
			sb.WriteString(" ")
			sb.WriteString(dir)
		}
	}
	if options.Limit != unset {
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)+1))
		args = append(args, options.Limit)
	}
	if options.Offset != unset {
		sb.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)+1))
		args = append(args, options.Offset)
	}

	return sb.String(), args
}

func selectList(columns, rawColumns []string) string {
	if len(columns) == 0 && len(rawColumns) == 0 {
		return "*"
	}
	quoted := make([]string, 0, len(columns)+len(rawColumns))
	for _, col := range columns {
		quoted = append(quoted, quoteQualifiedIdent(col))
	}
	quoted = append(quoted, rawColumns...)
	return strings.Join(quoted, ", ")
}

func whereClause(conditions []Condition) (string, []any) {
	var (
		predicates []string
		args       []any
	)
	for _, cond := range conditions {
		if cond.Field == "" {
			continue
		}
		field := quoteIdent(cond.Field)

		if cond.Type == In {
			placeholders, inArgs := expandSlice(cond.Value, len(args)+1)
			if len(inArgs) == 0 {
				continue
			}
			predicates = append(predicates,
				fmt.Sprintf("%s IN (%s)", field, strings.Join(placeholders, ", ")))
			args = append(args, inArgs...)
			continue
		}

		predicates = append(predicates,
			fmt.Sprintf("%s %s $%d", field, cond.Type, len(args)+1))
		args = append(args, cond.Value)
	}

	if len(predicates) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(predicates, " AND "), args
}

// expandSlice turns a slice value into one placeholder per element, starting
// at placeholder number start. Non-slice or empty values expand to nothing.
func expandSlice(value any, start int) ([]string, []any) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice || rv.Len() == 0 {
		return nil, nil
	}
	placeholders := make([]string, rv.Len())
	args := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		placeholders[i] = fmt.Sprintf("$%d", start+i)
		args[i] = rv.Index(i).Interface()
	}
	return placeholders, args
}

func quoteIdent(ident string) string {
	return pgx.Identifier{ident}.Sanitize()
}

// quoteQualifiedIdent quotes identifiers that may be qualified, like
// "jobs.created_at".
func quoteQualifiedIdent(ident string) string {
	return pgx.Identifier(strings.Split(ident, ".")).Sanitize()
}
