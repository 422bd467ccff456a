// Package model defines the core data types used throughout the automaton
// rule and job system.
package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/automaton-hq/automaton/internal/domain/params"
)

// RuleSource describes the agent a rule draws events from and the parameters
// that configure it.
type RuleSource struct {
	AgentID    string     `json:"agent_id"`
	Parameters params.Map `json:"parameters,omitempty"`
}

// Rule binds a source agent to a target action on an execution interval.
// Rules with equivalent sources share a polling job; JobID records the job
// currently serving this rule.
type Rule struct {
	ID                string          `json:"id"                 db:"id"`
	OwnerID           string          `json:"owner_id"           db:"owner_id"`
	Source            RuleSource      `json:"source"`
	Condition         string          `json:"condition,omitempty"  db:"condition"`
	Target            json.RawMessage `json:"target,omitempty"     db:"target"`
	ExecutionInterval time.Duration   `json:"execution_interval"`
	Enabled           bool            `json:"enabled"            db:"enabled"`
	JobID             *string         `json:"job_id,omitempty"   db:"job_id"`
	CreatedAt         time.Time       `json:"created_at"         db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"         db:"updated_at"`
}

// CreateRuleRequest represents a request to create a new rule.
type CreateRuleRequest struct {
	OwnerID           string          `json:"owner_id"`
	AgentID           string          `json:"agent_id"`
	Parameters        params.Map      `json:"parameters,omitempty"`
	Condition         string          `json:"condition,omitempty"`
	Target            json.RawMessage `json:"target,omitempty"`
	ExecutionInterval time.Duration   `json:"execution_interval"`
	Enabled           *bool           `json:"enabled,omitempty"`
}

// Normalize normalizes the CreateRuleRequest fields.
func (r *CreateRuleRequest) Normalize() {
	r.OwnerID = strings.TrimSpace(r.OwnerID)
	r.AgentID = strings.TrimSpace(r.AgentID)
	r.Condition = strings.TrimSpace(r.Condition)
}

// Validate validates the CreateRuleRequest fields.
func (r *CreateRuleRequest) Validate() error {
	if r.OwnerID == "" {
		return errors.New("owner_id is required")
	}
	if r.AgentID == "" {
		return errors.New("agent_id is required")
	}
	if _, err := uuid.Parse(r.AgentID); err != nil {
		return errors.New("agent_id must be a valid UUID")
	}
	if r.ExecutionInterval <= 0 {
		return errors.New("execution_interval must be positive")
	}
	return nil
}

// UpdateRuleRequest represents a request to update an existing rule.
// Nil fields are left unchanged.
type UpdateRuleRequest struct {
	AgentID           *string         `json:"agent_id,omitempty"`
	Parameters        params.Map      `json:"parameters,omitempty"`
	Condition         *string         `json:"condition,omitempty"`
	Target            json.RawMessage `json:"target,omitempty"`
	ExecutionInterval *time.Duration  `json:"execution_interval,omitempty"`
	Enabled           *bool           `json:"enabled,omitempty"`
}

// HasUpdates reports whether any field is set in UpdateRuleRequest.
func (r *UpdateRuleRequest) HasUpdates() bool {
	return r.AgentID != nil || r.Parameters != nil || r.Condition != nil ||
		r.Target != nil || r.ExecutionInterval != nil || r.Enabled != nil
}

// ChangesSource reports whether the update touches any field the job matcher
// keys on. A rule whose source changed must be re-matched to a job.
func (r *UpdateRuleRequest) ChangesSource() bool {
	return r.AgentID != nil || r.Parameters != nil || r.ExecutionInterval != nil
}

// Validate validates UpdateRuleRequest, ensuring at least one field is set and
// values are sane.
func (r *UpdateRuleRequest) Validate() error {
	if !r.HasUpdates() {
		return errors.New("at least one field must be updated")
	}
	if r.AgentID != nil {
		if _, err := uuid.Parse(strings.TrimSpace(*r.AgentID)); err != nil {
			return errors.New("agent_id must be a valid UUID")
		}
	}
	if r.ExecutionInterval != nil && *r.ExecutionInterval <= 0 {
		return errors.New("execution_interval must be positive")
	}
	return nil
}

// RuleListOptions represents options for listing rules.
type RuleListOptions struct {
	OwnerID *string `json:"owner_id,omitempty"`
	AgentID *string `json:"agent_id,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
	Limit   int     `json:"limit,omitempty"`
	Offset  int     `json:"offset,omitempty"`
}
