package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildListQuery_SelectStar(t *testing.T) {
	query, args := BuildListQuery(NewListQueryOptions("agents"))

	assert.Equal(t, `SELECT * FROM "agents"`, query)
	assert.Empty(t, args)
}

func TestBuildListQuery_Columns(t *testing.T) {
	query, args := BuildListQuery(NewListQueryOptions("agents",
		WithColumns("id", "name", "enabled"),
	))

	assert.Equal(t, `SELECT "id", "name", "enabled" FROM "agents"`, query)
	assert.Empty(t, args)
}

func TestBuildListQuery_QualifiedColumn(t *testing.T) {
	query, _ := BuildListQuery(NewListQueryOptions("jobs",
		WithColumns("jobs.id", "jobs.owner_id"),
	))

	assert.Equal(t, `SELECT "jobs"."id", "jobs"."owner_id" FROM "jobs"`, query)
}

func TestBuildListQuery_RawColumn(t *testing.T) {
	query, _ := BuildListQuery(NewListQueryOptions("jobs",
		WithColumns("id"),
		WithRawColumn("EXTRACT(EPOCH FROM execution_interval)::bigint AS interval_seconds"),
	))

	assert.Equal(t,
		`SELECT "id", EXTRACT(EPOCH FROM execution_interval)::bigint AS interval_seconds FROM "jobs"`,
		query)
}

func TestBuildListQuery_Conditions(t *testing.T) {
	query, args := BuildListQuery(NewListQueryOptions("rules",
		WithCondition(WhereCond("owner_id", Equal, "owner-1")),
		WithCondition(WhereCond("enabled", Equal, true)),
	))

	assert.Equal(t, `SELECT * FROM "rules" WHERE "owner_id" = $1 AND "enabled" = $2`, query)
	assert.Equal(t, []any{"owner-1", true}, args)
}

func TestBuildListQuery_ComparisonOperators(t *testing.T) {
	tests := []struct {
		name string
		op   ConditionType
		want string
	}{
		{"not equal", NotEqual, `"n" != $1`},
		{"greater than", GreaterThan, `"n" > $1`},
		{"greater or equal", GreaterThanOrEqual, `"n" >= $1`},
		{"less than", LessThan, `"n" < $1`},
		{"less or equal", LessThanOrEqual, `"n" <= $1`},
		{"ilike", ILike, `"n" ILIKE $1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := BuildListQuery(NewListQueryOptions("t",
				WithCondition(WhereCond("n", tt.op, 5)),
			))
			assert.Equal(t, `SELECT * FROM "t" WHERE `+tt.want, query)
			assert.Equal(t, []any{5}, args)
		})
	}
}

func TestBuildListQuery_InCondition(t *testing.T) {
	query, args := BuildListQuery(NewListQueryOptions("agents",
		WithCondition(WhereCond("name", In, []string{"a", "b", "c"})),
	))

	assert.Equal(t, `SELECT * FROM "agents" WHERE "name" IN ($1, $2, $3)`, query)
	assert.Equal(t, []any{"a", "b", "c"}, args)
}

func TestBuildListQuery_InCondition_EmptySliceSkipped(t *testing.T) {
	query, args := BuildListQuery(NewListQueryOptions("agents",
		WithCondition(WhereCond("name", In, []string{})),
		WithCondition(WhereCond("enabled", Equal, true)),
	))

	assert.Equal(t, `SELECT * FROM "agents" WHERE "enabled" = $1`, query)
	assert.Equal(t, []any{true}, args)
}

func TestBuildListQuery_OrderLimitOffset(t *testing.T) {
	query, args := BuildListQuery(NewListQueryOptions("jobs",
		WithCondition(WhereCond("owner_id", Equal, "owner-1")),
		WithOrderBy("created_at", "desc"),
		WithLimit(25),
		WithOffset(50),
	))

	assert.Equal(t,
		`SELECT * FROM "jobs" WHERE "owner_id" = $1 ORDER BY "created_at" DESC LIMIT $2 OFFSET $3`,
		query)
	assert.Equal(t, []any{"owner-1", 25, 50}, args)
}

func TestBuildListQuery_InvalidOrderDirectionDropped(t *testing.T) {
	query, _ := BuildListQuery(NewListQueryOptions("jobs",
		WithOrderBy("created_at", "SIDEWAYS; DROP TABLE jobs"),
	))

	assert.Equal(t, `SELECT * FROM "jobs" ORDER BY "created_at"`, query)
}

func TestBuildListQuery_ZeroLimitAndOffsetHonored(t *testing.T) {
	query, args := BuildListQuery(NewListQueryOptions("jobs",
		WithLimit(0),
		WithOffset(0),
	))

	assert.Equal(t, `SELECT * FROM "jobs" LIMIT $1 OFFSET $2`, query)
	assert.Equal(t, []any{0, 0}, args)

	// negative values leave the clause out
	query, args = BuildListQuery(NewListQueryOptions("jobs",
		WithLimit(-1),
		WithOffset(-1),
	))
	assert.Equal(t, `SELECT * FROM "jobs"`, query)
	assert.Empty(t, args)
}

func TestBuildListQuery_IdentifierQuotingBlocksInjection(t *testing.T) {
	query, _ := BuildListQuery(NewListQueryOptions("jobs",
		WithCondition(WhereCond(`owner_id" = '' OR 1=1 --`, Equal, "x")),
	))

	// The hostile field name ends up quoted as one identifier with the
	// embedded double quote escaped, not as executable SQL.
	assert.Contains(t, query, `"owner_id"" = '' OR 1=1 --" = $1`)
}

func TestBuildListQuery_NilOptions(t *testing.T) {
	query, args := BuildListQuery(nil)
	assert.Empty(t, query)
	assert.Nil(t, args)
}

func TestBuildListQuery_EmptyFieldSkipped(t *testing.T) {
	query, args := BuildListQuery(NewListQueryOptions("jobs",
		WithCondition(WhereCond("", Equal, "x")),
	))

	assert.Equal(t, `SELECT * FROM "jobs"`, query)
	assert.Empty(t, args)
}
