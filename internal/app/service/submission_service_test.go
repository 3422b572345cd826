package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codejudge/internal/app/runner"
	"codejudge/internal/app/sandbox"
	"codejudge/internal/app/sandbox/mocks"
	"codejudge/internal/common"
	"codejudge/internal/domain/model"

	gomock "go.uber.org/mock/gomock"
)

const squareJS = "function square(n) {\n  return n * n;\n}"

type submissionFixture struct {
	svc      *SubmissionService
	problems *fakeProblemRepo
	users    *fakeUserRepo
	subs     *fakeSubmissionRepo
	tx       *fakeTxRunner
	exec     *mocks.MockExecutor
}

func newSubmissionFixture(t *testing.T) *submissionFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &submissionFixture{
		problems: newFakeProblemRepo(),
		users:    newFakeUserRepo("u1", "u2"),
		subs:     newFakeSubmissionRepo(),
		tx:       &fakeTxRunner{},
		exec:     mocks.NewMockExecutor(ctrl),
	}
	f.svc = NewSubmissionService(f.subs, f.problems, f.users, runner.NewDefaultRegistry(), f.exec, f.tx)
	f.svc.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	return f
}

// addProblem stores problem id with one active test case per (input, output) pair,
// using the given indices in insertion order.
func (f *submissionFixture) addProblem(id string, indices []int, inputs, outputs []string) {
	f.problems.problems[id] = &model.Problem{ID: id, Slug: id, Title: id}
	for i, idx := range indices {
		f.problems.testCases[id] = append(f.problems.testCases[id], model.TestCase{
			ID:        id + "-tc-" + inputs[i],
			ProblemID: id,
			Input:     inputs[i],
			Output:    outputs[i],
			Index:     idx,
			Status:    model.TestCaseActive,
		})
	}
}

// answer makes the sandbox print stdout[stdin] with exit code 0 and 5ms per run.
func (f *submissionFixture) answer(stdout map[string]string, times int) {
	f.exec.EXPECT().
		Execute(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req sandbox.Request) (*sandbox.Result, error) {
			return &sandbox.Result{Stdout: stdout[req.Stdin] + "\n", ExitCode: 0, Time: 5}, nil
		}).
		Times(times)
}

func squaresProblem(f *submissionFixture) {
	f.addProblem("p1", []int{0, 1, 2}, []string{"2", "3", "4"}, []string{"4", "9", "16"})
}

func TestExecuteWrongAnswerOnLastCase(t *testing.T) {
	f := newSubmissionFixture(t)
	squaresProblem(f)
	f.answer(map[string]string{"2": "4", "3": "9", "4": "15"}, 3)

	out, err := f.svc.Execute(context.Background(), ExecuteRequest{
		ProblemID: "p1", Language: "javascript", Code: squareJS, UserID: "u1",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(out.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out.Results))
	}
	if !out.Results[0].Passed || !out.Results[1].Passed {
		t.Fatalf("expected first two cases to pass: %+v", out.Results)
	}
	if out.Results[2].Passed || out.Results[2].ActualOutput != "15" || out.Results[2].ExpectedOutput != "16" {
		t.Fatalf("unexpected last result: %+v", out.Results[2])
	}
	if out.Passed {
		t.Fatalf("aggregate must fail")
	}

	u, _ := f.users.FindByID(context.Background(), "u1")
	if u.ProblemsSolved != 0 {
		t.Fatalf("solved counter changed: %d", u.ProblemsSolved)
	}
	if f.subs.count() != 1 {
		t.Fatalf("expected submission persisted, got %d", f.subs.count())
	}
}

func TestExecuteSolveIsCountedOnce(t *testing.T) {
	f := newSubmissionFixture(t)
	squaresProblem(f)
	f.answer(map[string]string{"2": "4", "3": "9", "4": "16"}, 6)

	req := ExecuteRequest{ProblemID: "p1", Language: "js", Code: squareJS, UserID: "u1"}
	for i := 0; i < 2; i++ {
		out, err := f.svc.Execute(context.Background(), req)
		if err != nil {
			t.Fatalf("Execute #%d: %v", i+1, err)
		}
		if !out.Passed {
			t.Fatalf("Execute #%d should pass: %+v", i+1, out.Results)
		}
	}

	u, _ := f.users.FindByID(context.Background(), "u1")
	if u.ProblemsSolved != 1 {
		t.Fatalf("problems_solved = %d, want 1", u.ProblemsSolved)
	}
	if len(u.SolvedProblems) != 1 || u.SolvedProblems[0] != "p1" {
		t.Fatalf("solved problems = %v", u.SolvedProblems)
	}
	p, _ := f.problems.FindProblemByID(context.Background(), "p1")
	if p.SolvedCount != 1 {
		t.Fatalf("solved_count = %d, want 1", p.SolvedCount)
	}
	if f.subs.count() != 2 {
		t.Fatalf("every submission is stored, got %d", f.subs.count())
	}
}

func TestExecuteRunOnlyRunsAtMostTwoCases(t *testing.T) {
	f := newSubmissionFixture(t)
	f.addProblem("p2", []int{0, 1, 2, 3, 4},
		[]string{"1", "2", "3", "4", "5"}, []string{"1", "4", "9", "16", "25"})
	f.answer(map[string]string{"1": "1", "2": "4"}, 2)

	out, err := f.svc.Execute(context.Background(), ExecuteRequest{
		ProblemID: "p2", Language: "javascript", Code: squareJS, UserID: "u1", IsRunOnly: true,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(out.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out.Results))
	}
	if !out.Passed {
		t.Fatalf("run should pass: %+v", out.Results)
	}

	u, _ := f.users.FindByID(context.Background(), "u1")
	if u.ProblemsSolved != 0 {
		t.Fatalf("run-only must not record a solve")
	}
	stored, _ := f.subs.GetSubmissionByID(context.Background(), out.SubmissionID)
	if !stored.IsRunOnly {
		t.Fatalf("stored submission should be flagged run-only")
	}
}

func TestExecuteOrdersResultsByIndex(t *testing.T) {
	f := newSubmissionFixture(t)
	f.addProblem("p3", []int{2, 0, 1}, []string{"c", "a", "b"}, []string{"C", "A", "B"})
	f.answer(map[string]string{"a": "A", "b": "B", "c": "C"}, 3)

	out, err := f.svc.Execute(context.Background(), ExecuteRequest{
		ProblemID: "p3", Language: "javascript", Code: "function up(s) { return s.toUpperCase(); }", UserID: "u1",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for i, r := range out.Results {
		if r.TestCaseIndex != i {
			t.Fatalf("results[%d].TestCaseIndex = %d", i, r.TestCaseIndex)
		}
	}
}

func TestExecuteNoActiveTestCasesSkipsSandbox(t *testing.T) {
	f := newSubmissionFixture(t)
	f.problems.problems["empty"] = &model.Problem{ID: "empty"}
	f.problems.testCases["empty"] = []model.TestCase{{ID: "x", Index: 0, Status: model.TestCaseInactive}}
	f.exec.EXPECT().Execute(gomock.Any(), gomock.Any()).Times(0)

	_, err := f.svc.Execute(context.Background(), ExecuteRequest{
		ProblemID: "empty", Language: "javascript", Code: squareJS, UserID: "u1",
	})
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if f.subs.count() != 0 {
		t.Fatalf("nothing should be stored")
	}
}

func TestExecutePreconditions(t *testing.T) {
	f := newSubmissionFixture(t)
	squaresProblem(f)
	f.exec.EXPECT().Execute(gomock.Any(), gomock.Any()).Times(0)

	_, err := f.svc.Execute(context.Background(), ExecuteRequest{
		ProblemID: "missing", Language: "javascript", Code: squareJS, UserID: "u1",
	})
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("unknown problem: expected ErrNotFound, got %v", err)
	}

	_, err = f.svc.Execute(context.Background(), ExecuteRequest{
		ProblemID: "p1", Language: "cobol", Code: squareJS, UserID: "u1",
	})
	if !errors.Is(err, common.ErrBadRequest) || !strings.Contains(err.Error(), "unsupported language") {
		t.Fatalf("unknown language: expected ErrBadRequest, got %v", err)
	}

	_, err = f.svc.Execute(context.Background(), ExecuteRequest{ProblemID: "p1", Language: "javascript"})
	if !errors.Is(err, common.ErrBadRequest) {
		t.Fatalf("missing user: expected ErrBadRequest, got %v", err)
	}
}

func TestExecuteAbsorbsSandboxFailures(t *testing.T) {
	f := newSubmissionFixture(t)
	squaresProblem(f)
	f.exec.EXPECT().
		Execute(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req sandbox.Request) (*sandbox.Result, error) {
			if req.Stdin == "3" {
				return nil, sandbox.ErrSandboxFailure
			}
			return &sandbox.Result{Stdout: map[string]string{"2": "4", "4": "16"}[req.Stdin], Time: 7}, nil
		}).
		Times(3)

	out, err := f.svc.Execute(context.Background(), ExecuteRequest{
		ProblemID: "p1", Language: "javascript", Code: squareJS, UserID: "u1",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	failed := out.Results[1]
	if failed.Passed || failed.ActualOutput != "" || failed.Stderr != "Execution failed" {
		t.Fatalf("unexpected failure row: %+v", failed)
	}
	if !out.Results[2].Passed {
		t.Fatalf("later cases must still run: %+v", out.Results[2])
	}
	if out.Passed {
		t.Fatalf("aggregate must fail")
	}
	if out.ExecutionTime != 14 {
		t.Fatalf("execution time = %v, want 14", out.ExecutionTime)
	}
}

func TestExecuteNonZeroExitFails(t *testing.T) {
	f := newSubmissionFixture(t)
	f.addProblem("p4", []int{0}, []string{"2"}, []string{"4"})
	f.exec.EXPECT().
		Execute(gomock.Any(), gomock.Any()).
		Return(&sandbox.Result{Stdout: "4", Stderr: "  segfault \n", ExitCode: 139}, nil)

	out, err := f.svc.Execute(context.Background(), ExecuteRequest{
		ProblemID: "p4", Language: "cpp", Code: "int sq(int n) { return n * n; }", UserID: "u1",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Passed || out.Results[0].Passed {
		t.Fatalf("non-zero exit must fail")
	}
	if out.Results[0].Stderr != "segfault" {
		t.Fatalf("stderr should be trimmed, got %q", out.Results[0].Stderr)
	}
}

func TestExecuteKilledRunFailsDespiteMatchingOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"run":{"stdout":"4\n","stderr":"","code":null,"signal":"SIGKILL","time":3000}}`))
	}))
	defer srv.Close()

	f := newSubmissionFixture(t)
	f.svc.executor = sandbox.New(srv.URL, time.Second)
	f.addProblem("p7", []int{0}, []string{"2"}, []string{"4"})

	out, err := f.svc.Execute(context.Background(), ExecuteRequest{
		ProblemID: "p7", Language: "javascript", Code: squareJS, UserID: "u1",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Passed || out.Results[0].Passed {
		t.Fatalf("killed run must not pass: %+v", out.Results[0])
	}
	if out.Results[0].ActualOutput != "4" {
		t.Fatalf("actual output = %q", out.Results[0].ActualOutput)
	}
	u, _ := f.users.FindByID(context.Background(), "u1")
	p, _ := f.problems.FindProblemByID(context.Background(), "p7")
	if u.ProblemsSolved != 0 || p.SolvedCount != 0 {
		t.Fatalf("killed run must not record a solve: user=%d problem=%d", u.ProblemsSolved, p.SolvedCount)
	}
}

func TestExecuteSendsWrappedSource(t *testing.T) {
	f := newSubmissionFixture(t)
	f.addProblem("p5", []int{0}, []string{"3"}, []string{"9"})
	f.exec.EXPECT().
		Execute(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req sandbox.Request) (*sandbox.Result, error) {
			if req.Language != "javascript" || req.FileName != "main.js" {
				t.Errorf("unexpected sandbox target: %+v", req)
			}
			if !strings.Contains(req.Source, "console.log(square(3));") {
				t.Errorf("source not wrapped:\n%s", req.Source)
			}
			return &sandbox.Result{Stdout: "9"}, nil
		})

	if _, err := f.svc.Execute(context.Background(), ExecuteRequest{
		ProblemID: "p5", Language: "JS", Code: squareJS, UserID: "u1",
	}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestExecuteStoreFailureIsInternal(t *testing.T) {
	f := newSubmissionFixture(t)
	f.addProblem("p6", []int{0}, []string{"2"}, []string{"4"})
	f.answer(map[string]string{"2": "4"}, 1)
	f.subs.failCreate = errors.New("connection reset")

	_, err := f.svc.Execute(context.Background(), ExecuteRequest{
		ProblemID: "p6", Language: "javascript", Code: squareJS, UserID: "u1",
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if common.HTTPStatusFromError(err) != 500 {
		t.Fatalf("expected internal error, got %v", err)
	}
	u, _ := f.users.FindByID(context.Background(), "u1")
	if u.ProblemsSolved != 0 {
		t.Fatalf("solve must not be recorded when the submission is not stored")
	}
}

func TestGetSubmissionOwnerOnly(t *testing.T) {
	f := newSubmissionFixture(t)
	f.addProblem("p7", []int{0}, []string{"2"}, []string{"4"})
	f.answer(map[string]string{"2": "4"}, 1)

	out, err := f.svc.Execute(context.Background(), ExecuteRequest{
		ProblemID: "p7", Language: "javascript", Code: squareJS, UserID: "u1",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	sub, err := f.svc.GetSubmission(context.Background(), "u1", out.SubmissionID)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if sub.ExecutionTime != 5 || !sub.SubmittedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected stored submission: %+v", sub)
	}

	if _, err := f.svc.GetSubmission(context.Background(), "u2", out.SubmissionID); !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.GetSubmission(context.Background(), "u1", "nope"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
