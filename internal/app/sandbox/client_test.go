package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestExecuteSendsPistonRequest(t *testing.T) {
	var got executeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"language":"javascript","version":"18.15.0","run":{"stdout":"16\n","stderr":"","code":0,"time":12.5}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	res, err := c.Execute(context.Background(), Request{
		Language: "javascript",
		FileName: "main.js",
		Source:   "console.log(16)",
		Stdin:    "4",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if got.Language != "javascript" || got.Version != "*" || got.Stdin != "4" {
		t.Fatalf("unexpected request: %+v", got)
	}
	if len(got.Files) != 1 || got.Files[0].Name != "main.js" || got.Files[0].Content != "console.log(16)" {
		t.Fatalf("unexpected files: %+v", got.Files)
	}
	if res.Stdout != "16\n" || res.ExitCode != 0 || res.Time != 12.5 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestExecuteNonZeroExit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"run":{"stdout":"","stderr":"boom","code":1,"time":3}}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL, time.Second).Execute(context.Background(), Request{Language: "python"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ExitCode != 1 || res.Stderr != "boom" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestExecuteKilledBySignal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"run":{"stdout":"4\n","stderr":"","code":null,"signal":"SIGKILL","time":3000}}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL, time.Second).Execute(context.Background(), Request{Language: "python"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ExitCode != ExitKilled || res.Signal != "SIGKILL" || res.Stdout != "4\n" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestExecuteSignalWithZeroCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"run":{"stdout":"ok","code":0,"signal":"SIGXCPU","time":10}}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL, time.Second).Execute(context.Background(), Request{Language: "c++"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ExitCode == 0 {
		t.Fatalf("signalled run reported a clean exit: %+v", res)
	}
}

func TestExecuteMissingRunCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"run":{"stdout":"4"}}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL, time.Second).Execute(context.Background(), Request{Language: "javascript"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ExitCode != ExitKilled {
		t.Fatalf("exit code = %d, want %d", res.ExitCode, ExitKilled)
	}
}

func TestExecuteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"runtime is unknown"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Execute(context.Background(), Request{Language: "cobol"})
	if !errors.Is(err, ErrSandboxFailure) {
		t.Fatalf("expected ErrSandboxFailure, got %v", err)
	}
}

func TestExecuteMessageWithoutRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"compile stage timed out"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Execute(context.Background(), Request{Language: "c++"})
	if !errors.Is(err, ErrSandboxFailure) {
		t.Fatalf("expected ErrSandboxFailure, got %v", err)
	}
}

func TestExecuteTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := New(srv.URL, 50*time.Millisecond).Execute(context.Background(), Request{Language: "javascript"})
	if !errors.Is(err, ErrSandboxFailure) {
		t.Fatalf("expected ErrSandboxFailure, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout not applied")
	}
}
