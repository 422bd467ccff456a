package errors

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapDBError_Nil(t *testing.T) {
	assert.Nil(t, MapDBError(nil))
}

func TestMapDBError_ContextErrors(t *testing.T) {
	assert.Equal(t, ErrCodeTimeout, GetCode(MapDBError(context.DeadlineExceeded)))
	assert.Equal(t, ErrCodeCanceled, GetCode(MapDBError(context.Canceled)))
}

func TestMapDBError_NoRows(t *testing.T) {
	assert.True(t, IsNotFound(MapDBError(pgx.ErrNoRows)))
}

func TestMapDBError_UniqueViolation(t *testing.T) {
	tests := []struct {
		name      string
		pgErr     *pgconn.PgError
		wantField string
	}{
		{
			name: "column name metadata",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "agents_name_key",
				ColumnName:     "name",
			},
			wantField: "name",
		},
		{
			name: "field parsed from detail",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "agents_name_key",
				Detail:         `Key (name)=(mailchimp) already exists.`,
			},
			wantField: "name",
		},
		{
			name: "multi-column detail",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "t_a_b_key",
				Detail:         `Key (a, b)=(x, y) already exists.`,
			},
			wantField: "a, b",
		},
		{
			name: "field inferred from constraint name",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "agents_name_key",
			},
			wantField: "name",
		},
		{
			name: "ambiguous multi-column constraint gives no field",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "t_a_b_key",
			},
			wantField: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			assert.True(t, IsConflict(err))
			assert.Equal(t, tt.wantField, GetField(err))
		})
	}
}

func TestMapDBError_ForeignKeyViolation(t *testing.T) {
	tests := []struct {
		name         string
		pgErr        *pgconn.PgError
		wantContains string
	}{
		{
			name: "parent still referenced",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.ForeignKeyViolation,
				ConstraintName: "rules_agent_id_fkey",
				Detail:         `Key (id)=(a1) is still referenced from table "rules".`,
			},
			wantContains: "in use by Rule",
		},
		{
			name: "missing parent",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.ForeignKeyViolation,
				ConstraintName: "rules_agent_id_fkey",
				Detail:         `Key (agent_id)=(a1) is not present in table "agents".`,
			},
			wantContains: "does not exist",
		},
		{
			name: "table name fallback",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.ForeignKeyViolation,
				ConstraintName: "rules_agent_id_fkey",
				TableName:      "rules",
			},
			wantContains: "Rule",
		},
		{
			name: "constraint name fallback",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.ForeignKeyViolation,
				ConstraintName: "rules_agent_id_fkey",
			},
			wantContains: "agent",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			assert.True(t, IsForeignKey(err))

			var appErr *AppError
			assert.True(t, errors.As(err, &appErr))
			assert.Contains(t, appErr.Message, tt.wantContains)
		})
	}
}

func TestMapDBError_NotNullAndCheckViolations(t *testing.T) {
	notNull := MapDBError(&pgconn.PgError{
		Code:       pgerrcode.NotNullViolation,
		ColumnName: "name",
	})
	assert.True(t, IsValidation(notNull))
	assert.Equal(t, "name", GetField(notNull))

	noColumn := MapDBError(&pgconn.PgError{Code: pgerrcode.NotNullViolation})
	assert.True(t, IsValidation(noColumn))
	assert.Empty(t, GetField(noColumn))

	check := MapDBError(&pgconn.PgError{
		Code:       pgerrcode.CheckViolation,
		ColumnName: "execution_interval",
	})
	assert.True(t, IsValidation(check))
	assert.Equal(t, "execution_interval", GetField(check))
}

func TestMapDBError_UnknownPgErrorBecomesInternal(t *testing.T) {
	err := MapDBError(&pgconn.PgError{Code: "99999", Message: "weird"})
	assert.True(t, IsInternal(err))
}

func TestMapDBError_PassesThroughNonDBErrors(t *testing.T) {
	plain := errors.New("network down")
	assert.Same(t, plain, MapDBError(plain))
}

func TestInferFieldFromConstraint(t *testing.T) {
	tests := []struct {
		constraint string
		want       string
	}{
		{"agents_name_key", "name"},
		{"agents_name_unique", "name"},
		{"t_a_b_key", ""},
		{"t_lower_key", ""},
		{"t_key", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, inferFieldFromConstraint(tt.constraint),
			"constraint %q", tt.constraint)
	}
}

func TestInferForeignKeyMessage(t *testing.T) {
	assert.Contains(t, inferForeignKeyMessage("rules_agent_id_fkey"), "agent")
	assert.Contains(t, inferForeignKeyMessage("rules_job_id_fkey"), "Job")
	assert.Contains(t, inferForeignKeyMessage("rule_targets_rule_id_fkey"), "Rule")
	assert.Contains(t, inferForeignKeyMessage("unknown_fkey"), "in use")
}

func TestMapTableToDomain(t *testing.T) {
	assert.Equal(t, "Agent", mapTableToDomain("agents"))
	assert.Equal(t, "Rule", mapTableToDomain("rules"))
	assert.Equal(t, "Job", mapTableToDomain("jobs"))
	assert.Equal(t, "Agent", mapTableToDomain("  AGENTS  "))
	assert.Equal(t, "Unknown Table", mapTableToDomain("unknown_table"))
}
