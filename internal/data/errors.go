package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrRuleNotFound is returned when a rule is not found.
	ErrRuleNotFound = errors.New("rule not found")
	// ErrJobNotFound is returned when a job is not found.
	ErrJobNotFound = errors.New("job not found")
	// ErrAgentNotFound is returned when an agent is not found.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrAgentNameExists is returned when attempting to create/update an agent with a duplicate name.
	ErrAgentNameExists = errors.New("agent name already exists")
)
