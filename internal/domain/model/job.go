package model

import (
	"time"

	"github.com/automaton-hq/automaton/internal/domain/params"
)

// Job is a unit of polling work shared by one or more rules with equivalent
// sources. RuleIDs lists the rules currently served by the job; a job with no
// rules is an orphan eligible for reaping.
type Job struct {
	ID                string        `json:"id"                 db:"id"`
	OwnerID           string        `json:"owner_id"           db:"owner_id"`
	SourceAgentID     string        `json:"source_agent_id"    db:"source_agent_id"`
	SourceParameters  params.Map    `json:"source_parameters,omitempty"`
	ExecutionInterval time.Duration `json:"execution_interval"`
	RuleIDs           []string      `json:"rule_ids"           db:"rule_ids"`
	LastPolledAt      *time.Time    `json:"last_polled_at,omitempty" db:"last_polled_at"`
	CreatedAt         time.Time     `json:"created_at"         db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"         db:"updated_at"`
}

// NewJob describes a job to be created. The created job starts with an empty
// rule list; callers attach rules after creation.
type NewJob struct {
	OwnerID           string
	SourceAgentID     string
	SourceParameters  params.Map
	ExecutionInterval time.Duration
}

// PollRequest is the message pushed onto the poll queue for each due job.
type PollRequest struct {
	JobID            string     `json:"job_id"`
	SourceAgentID    string     `json:"source_agent_id"`
	SourceParameters params.Map `json:"source_parameters,omitempty"`
	RuleIDs          []string   `json:"rule_ids"`
	RequestedAt      time.Time  `json:"requested_at"`
}

// JobListOptions represents options for listing jobs.
type JobListOptions struct {
	OwnerID       *string `json:"owner_id,omitempty"`
	SourceAgentID *string `json:"source_agent_id,omitempty"`
	Limit         int     `json:"limit,omitempty"`
	Offset        int     `json:"offset,omitempty"`
}
