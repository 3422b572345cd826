// Package sandbox talks to the external code execution service. The wire
// format is the Piston v2 execute API.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultUA = "codejudge/v1"

var ErrSandboxFailure = errors.New("sandbox execution failed")

//go:generate mockgen -destination=mocks/mock_executor.go -package=mocks codejudge/internal/app/sandbox Executor

// Executor runs one program against one stdin.
type Executor interface {
	Execute(ctx context.Context, req Request) (*Result, error)
}

type Request struct {
	Language string
	FileName string
	Source   string
	Stdin    string
}

// ExitKilled is reported when the sandbox gave no exit code, which it does
// when it kills the program with a signal.
const ExitKilled = -1

type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Signal   string
	Time     float64 // ms as reported by the sandbox
}

type executeFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type executeRequest struct {
	Language string        `json:"language"`
	Version  string        `json:"version"`
	Files    []executeFile `json:"files"`
	Stdin    string        `json:"stdin"`
}

type executeResponse struct {
	Run struct {
		Stdout string  `json:"stdout"`
		Stderr string  `json:"stderr"`
		Code   *int    `json:"code"`
		Signal *string `json:"signal"`
		Time   float64 `json:"time"`
	} `json:"run"`
	Message string `json:"message,omitempty"`
}

type Client struct {
	r   *resty.Client
	url string
}

// New builds a client posting to url. A zero timeout leaves requests bounded
// only by the caller's context.
func New(url string, timeout time.Duration) *Client {
	r := resty.New().
		SetHeader("User-Agent", DefaultUA).
		SetHeader("Content-Type", "application/json")
	if timeout > 0 {
		r.SetTimeout(timeout)
	}
	return &Client{r: r, url: url}
}

func (c *Client) Execute(ctx context.Context, req Request) (*Result, error) {
	body := &executeRequest{
		Language: req.Language,
		Version:  "*",
		Files:    []executeFile{{Name: req.FileName, Content: req.Source}},
		Stdin:    req.Stdin,
	}

	out := &executeResponse{}
	res, err := c.r.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(out).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSandboxFailure, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: status %d: %s", ErrSandboxFailure, res.StatusCode(), res.String())
	}
	if out.Message != "" && out.Run.Code == nil {
		return nil, fmt.Errorf("%w: %s", ErrSandboxFailure, out.Message)
	}

	result := &Result{
		Stdout: out.Run.Stdout,
		Stderr: out.Run.Stderr,
		Time:   out.Run.Time,
	}
	if out.Run.Signal != nil {
		result.Signal = *out.Run.Signal
	}
	switch {
	case out.Run.Code == nil || result.Signal != "":
		result.ExitCode = ExitKilled
		if out.Run.Code != nil && *out.Run.Code != 0 {
			result.ExitCode = *out.Run.Code
		}
	default:
		result.ExitCode = *out.Run.Code
	}
	return result, nil
}
