package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Agent is a registered event source that jobs poll against. Names are unique.
type Agent struct {
	ID          string          `json:"id"          db:"id"`
	Name        string          `json:"name"        db:"name"`
	Description string          `json:"description,omitempty" db:"description"`
	Schema      json.RawMessage `json:"schema,omitempty"      db:"schema"`
	Enabled     bool            `json:"enabled"     db:"enabled"`
	CreatedAt   time.Time       `json:"created_at"  db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"  db:"updated_at"`
}

// CreateAgentRequest represents a request to register a new agent.
type CreateAgentRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema,omitempty"`
	Enabled     *bool           `json:"enabled,omitempty"`
}

// Normalize normalizes the CreateAgentRequest fields.
func (r *CreateAgentRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
}

// Validate validates the CreateAgentRequest fields.
func (r *CreateAgentRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if len(r.Name) > 255 {
		return errors.New("name must be at most 255 characters")
	}
	return nil
}

// UpdateAgentRequest represents a request to update an agent. Nil fields are
// left unchanged.
type UpdateAgentRequest struct {
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema,omitempty"`
	Enabled     *bool           `json:"enabled,omitempty"`
}

// HasUpdates reports whether any field is set in UpdateAgentRequest.
func (r *UpdateAgentRequest) HasUpdates() bool {
	return r.Name != nil || r.Description != nil || r.Schema != nil || r.Enabled != nil
}

// Validate validates the UpdateAgentRequest fields.
func (r *UpdateAgentRequest) Validate() error {
	if !r.HasUpdates() {
		return errors.New("at least one field must be updated")
	}
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return errors.New("name cannot be empty")
		}
		if len(name) > 255 {
			return errors.New("name must be at most 255 characters")
		}
	}
	return nil
}

// AgentListOptions represents options for listing agents.
type AgentListOptions struct {
	Enabled *bool `json:"enabled,omitempty"`
	Limit   int   `json:"limit,omitempty"`
	Offset  int   `json:"offset,omitempty"`
}
