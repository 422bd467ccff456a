package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/automaton-hq/automaton/internal/core"
	"github.com/automaton-hq/automaton/internal/data/database"
	"github.com/automaton-hq/automaton/internal/data/pgxutil"
	"github.com/automaton-hq/automaton/internal/domain/model"
	"github.com/automaton-hq/automaton/internal/domain/params"
)

// pgxQuerier is the query surface shared by *pgx.Conn and pgx.Tx, so repo
// methods can run either on a fresh pool connection or inside an existing
// transaction.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// JobRepo provides database operations for polling jobs. A repo returned by
// WithAgentLock is bound to the lock transaction and runs every query on it.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider

	bound pgxQuerier
}

// NewJobRepo creates a new JobRepo with real time provider.
func NewJobRepo(db *sql.DB) *JobRepo {
	return &JobRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewJobRepoWithTimeProvider creates a JobRepo with a custom TimeProvider (useful for testing).
func NewJobRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *JobRepo {
	return &JobRepo{DB: db, timeProvider: tp}
}

// withConn runs fn on the bound transaction when there is one, otherwise on a
// connection checked out of the pool.
func (r *JobRepo) withConn(ctx context.Context, fn func(q pgxQuerier) error) error {
	if r.bound != nil {
		return fn(r.bound)
	}
	return pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return fn(conn)
	})
}

// fnvHash computes FNV-1a 64-bit hash of the given string for use as advisory lock key.
func fnvHash(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	// Advisory locks accept BIGINT; constrain the unsigned hash into int64 range before casting.
	u := h.Sum64()
	if u > uint64(math.MaxInt64) {
		u %= uint64(math.MaxInt64)
	}
	return int64(u) // #nosec G115 -- value is explicitly bounded to <= MaxInt64 before casting to int64.
}

const jobColumns = `
  id,
  owner_id,
  source_agent_id,
  source_parameters,
  EXTRACT(EPOCH FROM execution_interval)::bigint AS interval_seconds,
  rule_ids,
  last_polled_at,
  created_at,
  updated_at
`

// Create inserts a new job with an empty rule list.
func (r *JobRepo) Create(ctx context.Context, spec model.NewJob) (*model.Job, error) {
	if spec.OwnerID == "" {
		return nil, errors.New("owner_id is required")
	}
	if spec.SourceAgentID == "" {
		return nil, errors.New("source_agent_id is required")
	}
	if spec.ExecutionInterval <= 0 {
		return nil, errors.New("execution_interval must be positive")
	}

	paramsJSON, err := params.ToJSON(spec.SourceParameters)
	if err != nil {
		return nil, fmt.Errorf("encode job parameters: %w", err)
	}

	createdAt := r.timeProvider.Now().UTC()
	var out model.Job
	if err := r.withConn(ctx, func(q pgxQuerier) error {
		rows, qerr := q.Query(ctx, `
			INSERT INTO jobs (
				owner_id, source_agent_id, source_parameters, execution_interval, rule_ids, created_at
			) VALUES (
				$1, $2, $3, make_interval(secs => $4), '{}'::uuid[], $5
			) RETURNING `+jobColumns,
			spec.OwnerID,
			spec.SourceAgentID,
			paramsJSON,
			spec.ExecutionInterval.Seconds(),
			createdAt,
		)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		out, qerr = collectJob(rows)
		return qerr
	}); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return &out, nil
}

// GetByID retrieves a job by ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	var out model.Job
	err := r.withConn(ctx, func(q pgxQuerier) error {
		rows, qerr := q.Query(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		out, qerr = collectJob(rows)
		return qerr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job by ID: %w", err)
	}
	return &out, nil
}

// FindBySourceAgent returns one page of the agent's jobs in creation order,
// starting after the keyset cursor in p. Creation order keeps candidate scans
// deterministic, so the oldest matching job always wins; the id tiebreak
// makes the cursor stable for jobs created in the same instant.
func (r *JobRepo) FindBySourceAgent(
	ctx context.Context,
	p core.FindJobsParams,
) ([]*model.Job, error) {
	if p.SourceAgentID == "" {
		return nil, errors.New("source_agent_id is required")
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 500
	}

	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE source_agent_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2`
	args := []any{p.SourceAgentID, limit}
	if p.AfterID != "" {
		query = `
			SELECT ` + jobColumns + `
			FROM jobs
			WHERE source_agent_id = $1
			  AND (created_at, id) > ($3, $4::uuid)
			ORDER BY created_at ASC, id ASC
			LIMIT $2`
		args = append(args, p.AfterCreatedAt.UTC(), p.AfterID)
	}

	var out []*model.Job
	err := r.withConn(ctx, func(q pgxQuerier) error {
		rows, qerr := q.Query(ctx, query, args...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		collected, qerr := pgx.CollectRows(rows, rowToJob)
		if qerr != nil {
			return qerr
		}
		out = collected
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find jobs by source agent: %w", err)
	}
	return out, nil
}

// AttachRule adds a rule to the job's rule list. Attaching an already attached
// rule is a no-op.
func (r *JobRepo) AttachRule(ctx context.Context, jobID, ruleID string) (*model.Job, error) {
	return r.updateRuleList(ctx, jobID, ruleID, `
		UPDATE jobs
		SET rule_ids = array_append(rule_ids, $2::uuid), updated_at = $3
		WHERE id = $1 AND NOT ($2::uuid = ANY(rule_ids))
		RETURNING `+jobColumns)
}

// DetachRule removes a rule from the job's rule list. Detaching a rule that is
// not attached is a no-op.
func (r *JobRepo) DetachRule(ctx context.Context, jobID, ruleID string) (*model.Job, error) {
	return r.updateRuleList(ctx, jobID, ruleID, `
		UPDATE jobs
		SET rule_ids = array_remove(rule_ids, $2::uuid), updated_at = $3
		WHERE id = $1
		RETURNING `+jobColumns)
}

func (r *JobRepo) updateRuleList(
	ctx context.Context,
	jobID, ruleID string,
	query string,
) (*model.Job, error) {
	now := r.timeProvider.Now().UTC()
	var out model.Job
	err := r.withConn(ctx, func(q pgxQuerier) error {
		rows, qerr := q.Query(ctx, query, jobID, ruleID, now)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		out, qerr = collectJob(rows)
		return qerr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// no row matched: either the job is gone or the membership
			// condition made the update a no-op
			return r.ruleListNoop(ctx, jobID)
		}
		return nil, fmt.Errorf("failed to update job rule list: %w", err)
	}
	return &out, nil
}

// ruleListNoop fetches the job after a no-op membership update, distinguishing
// "already in desired state" from "job not found".
func (r *JobRepo) ruleListNoop(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := r.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// List retrieves jobs with optional filters and pagination.
func (r *JobRepo) List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := max(opts.Offset, 0)

	queryOpts := []database.ListQueryOption{
		database.WithColumns(
			"id", "owner_id", "source_agent_id", "source_parameters",
			"rule_ids", "last_polled_at", "created_at", "updated_at",
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
	if opts.SourceAgentID != nil {
		queryOpts = append(queryOpts, database.WithCondition(
			database.WhereCond("source_agent_id", database.Equal, *opts.SourceAgentID),
		))
	}

	query, args := database.BuildListQuery(database.NewListQueryOptions("jobs", queryOpts...))

	var out []*model.Job
	if err := r.withConn(ctx, func(q pgxQuerier) error {
		rows, qerr := q.Query(ctx, query, args...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		collected, qerr := pgx.CollectRows(rows, rowToJob)
		if qerr != nil {
			return qerr
		}
		out = collected
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return out, nil
}

// Delete deletes a job by ID.
func (r *JobRepo) Delete(ctx context.Context, id string) (bool, error) {
	var rows int64
	err := r.withConn(ctx, func(q pgxQuerier) error {
		ct, qerr := q.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
		if qerr != nil {
			return qerr
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete job: %w", err)
	}
	return rows > 0, nil
}

// WithAgentLock runs fn while holding a transaction-scoped advisory lock keyed
// on the agent ID. Serializes concurrent job matching for the same agent so
// two callers cannot both miss an existing job and create duplicates. Blocks
// until the lock is granted or ctx is done.
//
// fn receives a repository bound to the lock transaction, so the locked body
// runs entirely on the connection that holds the lock. A saturated pool can
// therefore never wedge a lock holder waiting for a second connection, and
// fn's writes commit or roll back together with the lock.
func (r *JobRepo) WithAgentLock(
	ctx context.Context,
	agentID string,
	fn func(ctx context.Context, jobs core.JobRepository) error,
) error {
	lockKey := fnvHash("job-match:" + agentID)

	return pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", lockKey); err != nil {
				return fmt.Errorf("acquire advisory lock for agent %s: %w", agentID, err)
			}
			locked := &JobRepo{DB: r.DB, timeProvider: r.timeProvider, bound: tx}
			return fn(ctx, locked)
		},
	})
}

// FindDuePolls selects jobs whose interval has elapsed and stamps them polled.
// Uses FOR UPDATE SKIP LOCKED so concurrent pollers never pick the same job.
// Jobs with no attached rules are skipped; they are the reaper's concern.
func (r *JobRepo) FindDuePolls(
	ctx context.Context,
	p core.FindDuePollsParams,
) ([]*model.Job, error) {
	if p.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", p.BatchSize)
	}

	now := p.Now
	if now.IsZero() {
		now = r.timeProvider.Now()
	}

	var out []*model.Job
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			rows, qerr := tx.Query(ctx, `
				SELECT `+jobColumns+`
				FROM jobs
				WHERE cardinality(rule_ids) > 0
				  AND (last_polled_at IS NULL OR last_polled_at + execution_interval <= $1)
				ORDER BY
					CASE WHEN last_polled_at IS NULL THEN 0 ELSE 1 END,
					last_polled_at ASC,
					created_at ASC
				LIMIT $2
				FOR UPDATE SKIP LOCKED`,
				now.UTC(), p.BatchSize)
			if qerr != nil {
				return qerr
			}
			collected, qerr := pgx.CollectRows(rows, rowToJob)
			if qerr != nil {
				return qerr
			}
			if len(collected) == 0 {
				out = nil
				return nil
			}

			ids := make([]string, len(collected))
			for i, job := range collected {
				ids[i] = job.ID
			}
			if _, qerr = tx.Exec(ctx, `
				UPDATE jobs SET last_polled_at = $1, updated_at = $1
				WHERE id = ANY($2::uuid[])`,
				now.UTC(), ids); qerr != nil {
				return fmt.Errorf("stamp polled jobs: %w", qerr)
			}

			stamped := now.UTC()
			for _, job := range collected {
				t := stamped
				job.LastPolledAt = &t
			}
			out = collected
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query due jobs: %w", err)
	}
	return out, nil
}

// DeleteOrphanedJobs deletes jobs with no attached rules that were last
// updated before cutoff. Processes up to batchSize jobs per call to prevent
// long locks. Returns the number of jobs deleted.
func (r *JobRepo) DeleteOrphanedJobs(
	ctx context.Context,
	cutoff time.Time,
	batchSize int,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	var deleted int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, qerr := conn.Exec(ctx, `
			DELETE FROM jobs
			WHERE id IN (
				SELECT id FROM jobs
				WHERE cardinality(rule_ids) = 0 AND updated_at < $1
				ORDER BY updated_at ASC
				LIMIT $2
				FOR UPDATE SKIP LOCKED
			)`,
			cutoff.UTC(), batchSize)
		if qerr != nil {
			return qerr
		}
		deleted = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete orphaned jobs: %w", err)
	}
	return deleted, nil
}

// jobRow matches the jobs table schema so pgx.RowToStructByName can scan it.
type jobRow struct {
	ID               string        `db:"id"`
	OwnerID          string        `db:"owner_id"`
	SourceAgentID    string        `db:"source_agent_id"`
	SourceParameters []byte        `db:"source_parameters"`
	IntervalSeconds  sql.NullInt64 `db:"interval_seconds"`
	RuleIDs          []string      `db:"rule_ids"`
	LastPolledAt     sql.NullTime  `db:"last_polled_at"`
	CreatedAt        time.Time     `db:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at"`
}

func (row *jobRow) toModel() (model.Job, error) {
	job := model.Job{
		ID:            row.ID,
		OwnerID:       row.OwnerID,
		SourceAgentID: row.SourceAgentID,
		RuleIDs:       row.RuleIDs,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if job.RuleIDs == nil {
		job.RuleIDs = []string{}
	}
	if len(row.SourceParameters) > 0 {
		p, err := params.FromJSON(row.SourceParameters)
		if err != nil {
			return model.Job{}, fmt.Errorf("decode job parameters: %w", err)
		}
		job.SourceParameters = p
	}
	if row.IntervalSeconds.Valid {
		job.ExecutionInterval = time.Duration(row.IntervalSeconds.Int64) * time.Second
	}
	if row.LastPolledAt.Valid {
		t := row.LastPolledAt.Time
		job.LastPolledAt = &t
	}
	return job, nil
}

// rowToJob maps a pgx row to *model.Job using pgx v5 generics.
func rowToJob(row pgx.CollectableRow) (*model.Job, error) {
	dbRow, err := pgx.RowToStructByName[jobRow](row)
	if err != nil {
		return nil, fmt.Errorf("scan job row: %w", err)
	}
	job, err := dbRow.toModel()
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func collectJob(rows pgx.Rows) (model.Job, error) {
	dbRow, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[jobRow])
	if err != nil {
		return model.Job{}, err
	}
	return dbRow.toModel()
}
