// Package testutil provides testing utilities and helpers for the automaton trigger system.
package testutil

import (
	"encoding/json"
	"time"

	"github.com/automaton-hq/automaton/internal/domain/model"
	"github.com/automaton-hq/automaton/internal/domain/params"
)

// RuleRequestBuilder provides a fluent interface for building CreateRuleRequest objects for testing.
type RuleRequestBuilder struct {
	req *model.CreateRuleRequest
}

// NewRuleRequest creates a new RuleRequestBuilder with sensible defaults.
// The agent ID must be supplied because rules only validate against
// registered agents.
func NewRuleRequest(ownerID, agentID string) *RuleRequestBuilder {
	return &RuleRequestBuilder{
		req: &model.CreateRuleRequest{
			OwnerID:           ownerID,
			AgentID:           agentID,
			Parameters:        params.Map{"region": "us-east"},
			Target:            json.RawMessage(`{"channel": "email"}`),
			ExecutionInterval: 5 * time.Minute,
		},
	}
}

// WithParameters sets the source parameters.
func (b *RuleRequestBuilder) WithParameters(p params.Map) *RuleRequestBuilder {
	b.req.Parameters = p
	return b
}

// WithCondition sets the JMESPath condition.
func (b *RuleRequestBuilder) WithCondition(condition string) *RuleRequestBuilder {
	b.req.Condition = condition
	return b
}

// WithTarget sets the target action payload.
func (b *RuleRequestBuilder) WithTarget(target json.RawMessage) *RuleRequestBuilder {
	b.req.Target = target
	return b
}

// WithInterval sets the execution interval.
func (b *RuleRequestBuilder) WithInterval(interval time.Duration) *RuleRequestBuilder {
	b.req.ExecutionInterval = interval
	return b
}

// WithEnabled sets the enabled flag.
func (b *RuleRequestBuilder) WithEnabled(enabled bool) *RuleRequestBuilder {
	b.req.Enabled = &enabled
	return b
}

// Build returns the constructed CreateRuleRequest.
func (b *RuleRequestBuilder) Build() *model.CreateRuleRequest {
	return b.req
}

// AgentRequestBuilder provides a fluent interface for building CreateAgentRequest objects for testing.
type AgentRequestBuilder struct {
	req *model.CreateAgentRequest
}

// NewAgentRequest creates a new AgentRequestBuilder with sensible defaults.
func NewAgentRequest(name string) *AgentRequestBuilder {
	return &AgentRequestBuilder{
		req: &model.CreateAgentRequest{
			Name:        name,
			Description: "test agent",
			Schema:      json.RawMessage(`{"type": "object"}`),
		},
	}
}

// WithDescription sets the agent description.
func (b *AgentRequestBuilder) WithDescription(description string) *AgentRequestBuilder {
	b.req.Description = description
	return b
}

// WithSchema sets the parameter schema.
func (b *AgentRequestBuilder) WithSchema(schema json.RawMessage) *AgentRequestBuilder {
	b.req.Schema = schema
	return b
}

// WithEnabled sets the enabled flag.
func (b *AgentRequestBuilder) WithEnabled(enabled bool) *AgentRequestBuilder {
	b.req.Enabled = &enabled
	return b
}

// Build returns the constructed CreateAgentRequest.
func (b *AgentRequestBuilder) Build() *model.CreateAgentRequest {
	return b.req
}

// JobSpecBuilder provides a fluent interface for building NewJob specs for testing.
type JobSpecBuilder struct {
	spec model.NewJob
}

// NewJobSpec creates a new JobSpecBuilder with sensible defaults.
func NewJobSpec(ownerID, agentID string) *JobSpecBuilder {
	return &JobSpecBuilder{
		spec: model.NewJob{
			OwnerID:           ownerID,
			SourceAgentID:     agentID,
			SourceParameters:  params.Map{"region": "us-east"},
			ExecutionInterval: 5 * time.Minute,
		},
	}
}

// WithParameters sets the source parameters.
func (b *JobSpecBuilder) WithParameters(p params.Map) *JobSpecBuilder {
	b.spec.SourceParameters = p
	return b
}

// WithInterval sets the execution interval.
func (b *JobSpecBuilder) WithInterval(interval time.Duration) *JobSpecBuilder {
	b.spec.ExecutionInterval = interval
	return b
}

// Build returns the constructed NewJob spec.
func (b *JobSpecBuilder) Build() model.NewJob {
	return b.spec
}

// Common test request presets

// ConditionalRuleRequest creates a rule request carrying a JMESPath condition.
func ConditionalRuleRequest(ownerID, agentID string) *model.CreateRuleRequest {
	return NewRuleRequest(ownerID, agentID).
		WithCondition("status == 'down'").
		Build()
}

// DisabledRuleRequest creates a rule request that starts disabled.
func DisabledRuleRequest(ownerID, agentID string) *model.CreateRuleRequest {
	return NewRuleRequest(ownerID, agentID).
		WithEnabled(false).
		Build()
}

// FastIntervalRuleRequest creates a rule request with a short execution interval.
func FastIntervalRuleRequest(ownerID, agentID string) *model.CreateRuleRequest {
	return NewRuleRequest(ownerID, agentID).
		WithInterval(time.Minute).
		Build()
}

// DisabledAgentRequest creates an agent request that starts disabled.
func DisabledAgentRequest(name string) *model.CreateAgentRequest {
	return NewAgentRequest(name).
		WithEnabled(false).
		Build()
}
