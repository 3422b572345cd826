package model

import "time"

// Submission is append-only: one row per execution call, never updated.
type Submission struct {
	ID            string           `json:"id"`
	UserID        string           `json:"user_id"`
	ProblemID     string           `json:"problem_id"`
	Language      string           `json:"language"`
	Code          string           `json:"code"`
	Results       []TestCaseResult `json:"results"`
	Passed        bool             `json:"passed"`
	IsRunOnly     bool             `json:"is_run_only"`
	ExecutionTime float64          `json:"execution_time"` // ms, summed over executed test cases
	ContestID     *string          `json:"contest_id,omitempty"`
	SubmittedAt   time.Time        `json:"submitted_at"`
}

// TestCaseResult is embedded in a Submission and not addressable on its own.
type TestCaseResult struct {
	TestCaseIndex  int    `json:"test_case_index"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	ActualOutput   string `json:"actual_output"`
	Stderr         string `json:"stderr"`
	Passed         bool   `json:"passed"`
}
