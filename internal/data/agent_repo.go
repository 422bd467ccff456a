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
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/automaton-hq/automaton/internal/data/database"
	"github.com/automaton-hq/automaton/internal/data/pgxutil"
	"github.com/automaton-hq/automaton/internal/domain/model"
	apperrors "github.com/automaton-hq/automaton/internal/errors"
)

const (
	sortDirAsc  = "ASC"
	sortDirDesc = "DESC"
)

// AgentRepo provides database operations for the agent registry.
type AgentRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewAgentRepo creates a new AgentRepo with real time provider.
func NewAgentRepo(db *sql.DB) *AgentRepo {
	return &AgentRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewAgentRepoWithTimeProvider creates a new AgentRepo with a custom time provider (useful for tests).
func NewAgentRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *AgentRepo {
	return &AgentRepo{DB: db, timeProvider: tp}
}

const agentColumns = `id, name, description, schema, enabled, created_at, updated_at`

// Create registers a new agent.
func (r *AgentRepo) Create(ctx context.Context, req *model.CreateAgentRequest) (*model.Agent, error) {
	if req == nil {
		return nil, errors.New("create agent request is required")
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	createdAt := r.timeProvider.Now().UTC()
	var out model.Agent
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, `
			INSERT INTO agents (name, description, schema, enabled, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+agentColumns,
			req.Name,
			req.Description,
			nullableJSON(req.Schema),
			enabled,
			createdAt,
		)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		out, qerr = collectAgent(rows)
		return qerr
	}); err != nil {
		return nil, r.mapWriteErr(err, false)
	}
	return &out, nil
}

// GetByID retrieves an agent by ID.
func (r *AgentRepo) GetByID(ctx context.Context, id string) (*model.Agent, error) {
	return r.getByQuery(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`,
		"failed to get agent by ID", id)
}

// GetByName retrieves an agent by name.
func (r *AgentRepo) GetByName(ctx context.Context, name string) (*model.Agent, error) {
	return r.getByQuery(ctx, `SELECT `+agentColumns+` FROM agents WHERE name = $1`,
		"failed to get agent by name", name)
}

// List retrieves agents with optional filters and pagination.
func (r *AgentRepo) List(ctx context.Context, opts model.AgentListOptions) ([]*model.Agent, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := max(opts.Offset, 0)

	queryOpts := []database.ListQueryOption{
		database.WithColumns("id", "name", "description", "schema", "enabled", "created_at", "updated_at"),
		database.WithLimit(limit),
		database.WithOffset(offset),
		database.WithOrderBy("name", sortDirAsc),
	}
	if opts.Enabled != nil {
		queryOpts = append(queryOpts, database.WithCondition(
			database.WhereCond("enabled", database.Equal, *opts.Enabled),
		))
	}

	query, args := database.BuildListQuery(database.NewListQueryOptions("agents", queryOpts...))

	var out []*model.Agent
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, query, args...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		collected, qerr := pgx.CollectRows(rows, rowToAgent)
		if qerr != nil {
			return qerr
		}
		out = collected
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return out, nil
}

// Update updates fields of an agent.
func (r *AgentRepo) Update(
	ctx context.Context,
	id string,
	req model.UpdateAgentRequest,
) (*model.Agent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	setClause, args := r.buildUpdateClause(req)

	var out model.Agent
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		args = append(args, id)
		query := "UPDATE agents SET " + setClause + " WHERE id = $" + strconv.Itoa(len(args)) +
			" RETURNING " + agentColumns
		rows, qerr := conn.Query(ctx, query, args...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		out, qerr = collectAgent(rows)
		return qerr
	})
	if err != nil {
		return nil, r.mapWriteErr(err, true)
	}
	return &out, nil
}

// Delete deletes an agent by ID.
func (r *AgentRepo) Delete(ctx context.Context, id string) (bool, error) {
	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, qerr := conn.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
		if qerr != nil {
			return qerr
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		// Agents referenced by rules or jobs cannot be deleted; surface the
		// foreign key violation as a structured conflict error.
		return false, fmt.Errorf("failed to delete agent: %w", apperrors.MapDBError(err))
	}
	return rows > 0, nil
}

// buildUpdateClause builds the SQL SET clause and args for updating an agent.
func (r *AgentRepo) buildUpdateClause(req model.UpdateAgentRequest) (string, []any) {
	setParts := make([]string, 0, 5)
	args := make([]any, 0, 6)
	nextIdx := func() int { return len(args) + 1 }

	if req.Name != nil {
		setParts = append(setParts, fmt.Sprintf("name = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*req.Name))
	}
	if req.Description != nil {
		setParts = append(setParts, fmt.Sprintf("description = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*req.Description))
	}
	if req.Schema != nil {
		setParts = append(setParts, fmt.Sprintf("schema = $%d", nextIdx()))
		args = append(args, []byte(req.Schema))
	}
	if req.Enabled != nil {
		setParts = append(setParts, fmt.Sprintf("enabled = $%d", nextIdx()))
		args = append(args, *req.Enabled)
	}

	setParts = append(setParts, fmt.Sprintf("updated_at = $%d", nextIdx()))
	args = append(args, r.timeProvider.Now().UTC())

	return strings.Join(setParts, ", "), args
}

// agentRow matches the agents table schema so pgx.RowToStructByName can scan it.
type agentRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description sql.NullString `db:"description"`
	Schema      []byte         `db:"schema"`
	Enabled     bool           `db:"enabled"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (row *agentRow) toModel() model.Agent {
	agent := model.Agent{
		ID:        row.ID,
		Name:      row.Name,
		Enabled:   row.Enabled,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.Description.Valid {
		agent.Description = row.Description.String
	}
	if len(row.Schema) > 0 {
		agent.Schema = json.RawMessage(row.Schema)
	}
	return agent
}

// rowToAgent maps a pgx row to *model.Agent using pgx v5 generics.
func rowToAgent(row pgx.CollectableRow) (*model.Agent, error) {
	dbRow, err := pgx.RowToStructByName[agentRow](row)
	if err != nil {
		return nil, fmt.Errorf("scan agent row: %w", err)
	}
	agent := dbRow.toModel()
	return &agent, nil
}

func collectAgent(rows pgx.Rows) (model.Agent, error) {
	dbRow, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[agentRow])
	if err != nil {
		return model.Agent{}, err
	}
	return dbRow.toModel(), nil
}

// getByQuery is a helper function to execute a query and return a single agent.
func (r *AgentRepo) getByQuery(
	ctx context.Context,
	q string,
	errMsg string,
	args ...any,
) (*model.Agent, error) {
	var agent model.Agent
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, q, args...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		agent, qerr = collectAgent(rows)
		return qerr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	return &agent, nil
}

func (r *AgentRepo) mapWriteErr(err error, includeNotFound bool) error {
	if err == nil {
		return nil
	}
	if includeNotFound && errors.Is(err, pgx.ErrNoRows) {
		return ErrAgentNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAgentNameExists
	}
	return err
}
