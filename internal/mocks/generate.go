// Package mocks provides mock implementations for testing the automaton trigger system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=rule_repository_mock.go github.com/automaton-hq/automaton/internal/core RuleRepository

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/automaton-hq/automaton/internal/core JobRepository

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=agent_repository_mock.go github.com/automaton-hq/automaton/internal/core AgentRepository

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=poll_repository_mock.go github.com/automaton-hq/automaton/internal/core PollRepository

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=reaper_repository_mock.go github.com/automaton-hq/automaton/internal/core ReaperRepository

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=poll_queue_mock.go github.com/automaton-hq/automaton/internal/core PollQueue

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=cache_repository_mock.go github.com/automaton-hq/automaton/internal/core CacheRepository

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=condition_evaluator_mock.go github.com/automaton-hq/automaton/internal/core ConditionEvaluator
