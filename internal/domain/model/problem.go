package model

import (
	"time"
)

type ProblemDifficulty string
type ProblemStatus string
type TestCaseStatus string

const (
	DifficultyEasy   ProblemDifficulty = "Easy"
	DifficultyMedium ProblemDifficulty = "Medium"
	DifficultyHard   ProblemDifficulty = "Hard"

	StatusFree    ProblemStatus = "free"
	StatusPremium ProblemStatus = "premium"

	TestCaseActive   TestCaseStatus = "active"
	TestCaseInactive TestCaseStatus = "inactive"
	TestCasePending  TestCaseStatus = "pending"
)

type Problem struct {
	ID             string            `json:"id"`
	Slug           string            `json:"slug"` // unique, immutable after creation
	Title          string            `json:"title"`
	Difficulty     ProblemDifficulty `json:"difficulty"`
	Status         ProblemStatus     `json:"status"`
	IsBlocked      bool              `json:"is_blocked"`
	TestCaseIDs    []string          `json:"test_case_ids,omitempty"`
	DefaultCodeIDs []string          `json:"default_code_ids,omitempty"`
	SolvedCount    int               `json:"solved_count"`
	MemoryLimitKb  int               `json:"memory"`
	TimeLimitMs    int               `json:"time"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	TestCases      []TestCase        `json:"test_cases,omitempty"` // admin view only
}

type TestCase struct {
	ID        string         `json:"id"`
	ProblemID string         `json:"problem_id"`
	Input     string         `json:"input"`
	Output    string         `json:"output"`
	Index     int            `json:"index"`
	Status    TestCaseStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}
