package httpmw

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/log"
)

// spyLogger captures Info/Debug/Error calls for assertions.
type spyLogger struct {
	log.Logger
	mu     sync.Mutex
	with   []any
	infos  []spyEntry
	debugs []spyEntry
	errors []spyEntry
}

type spyEntry struct {
	msg string
	err error
	kv  []any
}

func newSpyLogger() *spyLogger {
	return &spyLogger{Logger: log.Nop()}
}

// With records the fields and returns self so later calls still land here.
func (s *spyLogger) With(kv ...any) log.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.with = append(s.with, kv...)
	return s
}

func (s *spyLogger) Info(_ context.Context, msg string, kv ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infos = append(s.infos, spyEntry{msg: msg, kv: kv})
}

func (s *spyLogger) Debug(_ context.Context, msg string, kv ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debugs = append(s.debugs, spyEntry{msg: msg, kv: kv})
}

func (s *spyLogger) Error(_ context.Context, err error, msg string, kv ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, spyEntry{msg: msg, err: err, kv: kv})
}

func (s *spyLogger) lastError() (spyEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errors) == 0 {
		return spyEntry{}, false
	}
	return s.errors[len(s.errors)-1], true
}

// field returns the value logged for key in kv.
func field(kv []any, key string) (any, bool) {
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i] == key {
			return kv[i+1], true
		}
	}
	return nil, false
}

func TestRecover_NoPanic(t *testing.T) {
	spy := newSpyLogger()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	})

	rec := httptest.NewRecorder()
	Recover(spy, nil)(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rec.Code != http.StatusCreated || rec.Body.String() != "created" {
		t.Fatalf("status = %d body = %q", rec.Code, rec.Body.String())
	}
	if _, logged := spy.lastError(); logged {
		t.Fatal("error logged when no panic occurred")
	}
}

func TestRecover_StringPanic(t *testing.T) {
	spy := newSpyLogger()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("something broke")
	})

	rec := httptest.NewRecorder()
	Recover(spy, nil)(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", http.NoBody))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	e, ok := spy.lastError()
	if !ok {
		t.Fatal("expected error to be logged")
	}
	if e.msg != "httpserver panic recovered" {
		t.Fatalf("msg = %q", e.msg)
	}
	if v, _ := field(spy.with, "url.path"); v != "/index.html" {
		t.Fatalf("url.path = %v", v)
	}
	if _, ok := field(e.kv, "stack"); !ok {
		t.Fatal("stack not logged")
	}
}

func TestRecover_ErrorPanicKeepsCause(t *testing.T) {
	spy := newSpyLogger()
	cause := errors.New("disk gone")
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(cause)
	})

	Recover(spy, nil)(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	e, ok := spy.lastError()
	if !ok || !errors.Is(e.err, cause) {
		t.Fatalf("logged err = %v, want wrapping %v", e.err, cause)
	}
}

func TestRecover_OnPanicCalled(t *testing.T) {
	var called bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	Recover(newSpyLogger(), func() { called = true })(handler).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if !called {
		t.Fatal("onPanic callback not called")
	}
}

func TestRecover_NilLogger(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	rec := httptest.NewRecorder()
	Recover(nil, nil)(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRecover_AbortHandlerRepanics(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	})
	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("recovered %v, want http.ErrAbortHandler", rec)
		}
	}()
	Recover(newSpyLogger(), nil)(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	t.Fatal("ErrAbortHandler swallowed")
}
