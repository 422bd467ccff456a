package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/automaton-hq/automaton/internal/data/database"
	"github.com/automaton-hq/automaton/internal/data/pgxutil"
	"github.com/automaton-hq/automaton/internal/domain/model"
	"github.com/automaton-hq/automaton/internal/domain/params"
)

// RuleRepo provides database operations for rules.
type RuleRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewRuleRepo creates a new RuleRepo with real time provider.
func NewRuleRepo(db *sql.DB) *RuleRepo {
	return &RuleRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewRuleRepoWithTimeProvider creates a new RuleRepo with a custom time provider (useful for tests).
func NewRuleRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *RuleRepo {
	return &RuleRepo{DB: db, timeProvider: tp}
}

const ruleColumns = `
  id,
  owner_id,
  agent_id,
  parameters,
  condition,
  target,
  EXTRACT(EPOCH FROM execution_interval)::bigint AS interval_seconds,
  enabled,
  job_id,
  created_at,
  updated_at
`

// Create inserts a new rule. The rule starts without a job; callers resolve a
// job and set it via SetJobID.
func (r *RuleRepo) Create(ctx context.Context, req *model.CreateRuleRequest) (*model.Rule, error) {
	if req == nil {
		return nil, errors.New("create rule request is required")
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	paramsJSON, err := params.ToJSON(req.Parameters)
	if err != nil {
		return nil, fmt.Errorf("encode rule parameters: %w", err)
	}

	createdAt := r.timeProvider.Now().UTC()
	var out model.Rule
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO rules (
				owner_id, agent_id, parameters, condition, target, execution_interval, enabled, created_at
			) VALUES (
				$1, $2, $3, $4, $5, make_interval(secs => $6), $7, $8
			) RETURNING `+ruleColumns,
			req.OwnerID,
			req.AgentID,
			paramsJSON,
			req.Condition,
			nullableJSON(req.Target),
			req.ExecutionInterval.Seconds(),
			enabled,
			createdAt,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = collectRule(rows)
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}
	return &out, nil
}

// GetByID retrieves a rule by ID.
func (r *RuleRepo) GetByID(ctx context.Context, id string) (*model.Rule, error) {
	var out model.Rule
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = $1`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = collectRule(rows)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to get rule by ID: %w", err)
	}
	return &out, nil
}

// List retrieves rules with optional filters and pagination.
func (r *RuleRepo) List(ctx context.Context, opts model.RuleListOptions) ([]*model.Rule, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := max(opts.Offset, 0)

	queryOpts := []database.ListQueryOption{
		database.WithColumns(
			"id", "owner_id", "agent_id", "parameters", "condition", "target",
			"enabled", "job_id", "created_at", "updated_at",
		),
		database.WithRawColumn("EXTRACT(EPOCH FROM execution_interval)::bigint AS interval_seconds"),
		database.WithLimit(limit),
		database.WithOffset(offset),
		database.WithOrderBy("created_at", sortDirDesc),
	}
	if opts.OwnerID != nil {
		queryOpts = append(queryOpts, database.WithCondition(
			database.WhereCond("owner_id", database.Equal, *opts.OwnerID),
		))
	}
	if opts.AgentID != nil {
		queryOpts = append(queryOpts, database.WithCondition(
			database.WhereCond("agent_id", database.Equal, *opts.AgentID),
		))
	}
	if opts.Enabled != nil {
		queryOpts = append(queryOpts, database.WithCondition(
			database.WhereCond("enabled", database.Equal, *opts.Enabled),
		))
	}

	query, args := database.BuildListQuery(database.NewListQueryOptions("rules", queryOpts...))

	var rowsOut []*model.Rule
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		collected, err := pgx.CollectRows(rows, rowToRule)
		if err != nil {
			return err
		}
		rowsOut = collected
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return rowsOut, nil
}

// Update updates fields of a rule.
func (r *RuleRepo) Update(
	ctx context.Context,
	id string,
	req model.UpdateRuleRequest,
) (*model.Rule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	setClause, args, err := r.buildUpdateClause(req)
	if err != nil {
		return nil, err
	}

	var out model.Rule
	err = pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		args = append(args, id)
		query := "UPDATE rules SET " + setClause + " WHERE id = $" + strconv.Itoa(len(args)) +
			" RETURNING " + ruleColumns
		rows, qerr := conn.Query(ctx, query, args...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		out, qerr = collectRule(rows)
		return qerr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}
	return &out, nil
}

// SetJobID points a rule at the job serving it, or clears the link when jobID
// is nil.
func (r *RuleRepo) SetJobID(ctx context.Context, ruleID string, jobID *string) error {
	now := r.timeProvider.Now().UTC()
	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx,
			`UPDATE rules SET job_id = $2, updated_at = $3 WHERE id = $1`,
			ruleID, jobID, now)
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set rule job: %w", err)
	}
	if rows == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Delete deletes a rule by ID.
func (r *RuleRepo) Delete(ctx context.Context, id string) (bool, error) {
	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM rules WHERE id = $1`, id)
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete rule: %w", err)
	}
	return rows > 0, nil
}

// buildUpdateClause builds the SQL SET clause and args for updating a rule.
func (r *RuleRepo) buildUpdateClause(req model.UpdateRuleRequest) (string, []any, error) {
	setParts := make([]string, 0, 7)
	args := make([]any, 0, 8)
	nextIdx := func() int { return len(args) + 1 }

	if req.AgentID != nil {
		setParts = append(setParts, fmt.Sprintf("agent_id = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*req.AgentID))
	}
	if req.Parameters != nil {
		paramsJSON, err := params.ToJSON(req.Parameters)
		if err != nil {
			return "", nil, fmt.Errorf("encode rule parameters: %w", err)
		}
		setParts = append(setParts, fmt.Sprintf("parameters = $%d", nextIdx()))
		args = append(args, paramsJSON)
	}
	if req.Condition != nil {
		setParts = append(setParts, fmt.Sprintf("condition = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*req.Condition))
	}
	if req.Target != nil {
		setParts = append(setParts, fmt.Sprintf("target = $%d", nextIdx()))
		args = append(args, []byte(req.Target))
	}
	if req.ExecutionInterval != nil {
		setParts = append(setParts, fmt.Sprintf("execution_interval = make_interval(secs => $%d)", nextIdx()))
		args = append(args, req.ExecutionInterval.Seconds())
	}
	if req.Enabled != nil {
		setParts = append(setParts, fmt.Sprintf("enabled = $%d", nextIdx()))
		args = append(args, *req.Enabled)
	}

	setParts = append(setParts, fmt.Sprintf("updated_at = $%d", nextIdx()))
	args = append(args, r.timeProvider.Now().UTC())

	return strings.Join(setParts, ", "), args, nil
}

// ruleRow matches the rules table schema so pgx.RowToStructByName can scan it.
type ruleRow struct {
	ID              string         `db:"id"`
	OwnerID         string         `db:"owner_id"`
	AgentID         string         `db:"agent_id"`
	Parameters      []byte         `db:"parameters"`
	Condition       sql.NullString `db:"condition"`
	Target          []byte         `db:"target"`
	IntervalSeconds sql.NullInt64  `db:"interval_seconds"`
	Enabled         bool           `db:"enabled"`
	JobID           sql.NullString `db:"job_id"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (row *ruleRow) toModel() (model.Rule, error) {
	rule := model.Rule{
		ID:      row.ID,
		OwnerID: row.OwnerID,
		Source: model.RuleSource{
			AgentID: row.AgentID,
		},
		Enabled:   row.Enabled,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if len(row.Parameters) > 0 {
		p, err := params.FromJSON(row.Parameters)
		if err != nil {
			return model.Rule{}, fmt.Errorf("decode rule parameters: %w", err)
		}
		rule.Source.Parameters = p
	}
	if row.Condition.Valid {
		rule.Condition = row.Condition.String
	}
	if len(row.Target) > 0 {
		rule.Target = json.RawMessage(row.Target)
	}
	if row.IntervalSeconds.Valid {
		rule.ExecutionInterval = time.Duration(row.IntervalSeconds.Int64) * time.Second
	}
	if row.JobID.Valid {
		id := row.JobID.String
		rule.JobID = &id
	}
	return rule, nil
}

// rowToRule maps a pgx row to *model.Rule using pgx v5 generics.
func rowToRule(row pgx.CollectableRow) (*model.Rule, error) {
	dbRow, err := pgx.RowToStructByName[ruleRow](row)
	if err != nil {
		return nil, fmt.Errorf("scan rule row: %w", err)
	}
	rule, err := dbRow.toModel()
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func collectRule(rows pgx.Rows) (model.Rule, error) {
	dbRow, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[ruleRow])
	if err != nil {
		return model.Rule{}, err
	}
	return dbRow.toModel()
}

// nullableJSON returns nil for empty raw JSON so the column stores NULL.
func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
