package assignments_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/docket/internal/assignments"
	"github.com/JaimeStill/docket/internal/audit"
	"github.com/JaimeStill/docket/internal/tasks"
	"github.com/JaimeStill/docket/internal/testsupport"
	"github.com/JaimeStill/docket/pkg/pagination"
	"github.com/JaimeStill/docket/pkg/routes"
)

type mockSystem struct {
	claimFn      func(ctx context.Context, taskID uuid.UUID, userID string, method audit.Method, score *float64) (*tasks.Task, error)
	claimNextFn  func(ctx context.Context, userID string) (*tasks.Task, error)
	equalSplitFn func(ctx context.Context, cmd assignments.EqualSplitCommand) (*assignments.EqualSplitResult, error)
}

func (m *mockSystem) Handler(log *audit.Handler) *assignments.Handler {
	return assignments.NewHandler(m, log, testsupport.Logger())
}

func (m *mockSystem) Claim(ctx context.Context, taskID uuid.UUID, userID string, method audit.Method, score *float64) (*tasks.Task, error) {
	return m.claimFn(ctx, taskID, userID, method, score)
}

func (m *mockSystem) ClaimNext(ctx context.Context, userID string) (*tasks.Task, error) {
	return m.claimNextFn(ctx, userID)
}

func (m *mockSystem) EqualSplit(ctx context.Context, cmd assignments.EqualSplitCommand) (*assignments.EqualSplitResult, error) {
	return m.equalSplitFn(ctx, cmd)
}

func setupMux(t *testing.T, sys *mockSystem) *http.ServeMux {
	t.Helper()
	db := testsupport.MustOpenDB(t)
	log := audit.New(db.Connection(), testsupport.Logger(), pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}).Handler()

	mux := http.NewServeMux()
	routes.Register(mux, sys.Handler(log).Routes())
	return mux
}

func TestHandlerClaimNextEmpty(t *testing.T) {
	sys := &mockSystem{
		claimNextFn: func(context.Context, string) (*tasks.Task, error) {
			return nil, nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/assignments/next", strings.NewReader(`{"user_id":"u1"}`))
	setupMux(t, sys).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"task":null}` {
		t.Errorf("body = %s, want {\"task\":null}", got)
	}
}

func TestHandlerClaimNext(t *testing.T) {
	var gotUser string
	sys := &mockSystem{
		claimNextFn: func(_ context.Context, userID string) (*tasks.Task, error) {
			gotUser = userID
			return &tasks.Task{RequestID: "req-1", Status: tasks.Pending, AssignedTo: &userID}, nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/assignments/next", strings.NewReader(`{"user_id":"u1"}`))
	setupMux(t, sys).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotUser != "u1" {
		t.Errorf("user = %s, want u1", gotUser)
	}

	var body assignments.ClaimResult
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Task == nil || body.Task.RequestID != "req-1" {
		t.Errorf("task = %+v", body.Task)
	}
}

func TestHandlerEqualSplit(t *testing.T) {
	var gotCmd assignments.EqualSplitCommand
	sys := &mockSystem{
		equalSplitFn: func(_ context.Context, cmd assignments.EqualSplitCommand) (*assignments.EqualSplitResult, error) {
			gotCmd = cmd
			return &assignments.EqualSplitResult{
				TotalTasks:  4,
				Assignments: []assignments.UserCount{{UserID: "a", Count: 2}, {UserID: "b", Count: 2}},
			}, nil
		},
	}
	mux := setupMux(t, sys)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/assignments/equal-split", strings.NewReader(`{"user_ids":["a","b"],"quota_per_user":2}`))
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(gotCmd.UserIDs) != 2 || gotCmd.QuotaPerUser == nil || *gotCmd.QuotaPerUser != 2 {
		t.Errorf("cmd = %+v", gotCmd)
	}

	var body assignments.EqualSplitResult
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TotalTasks != 4 || len(body.Assignments) != 2 {
		t.Errorf("body = %+v", body)
	}

	t.Run("validation error", func(t *testing.T) {
		sys.equalSplitFn = func(context.Context, assignments.EqualSplitCommand) (*assignments.EqualSplitResult, error) {
			return nil, &tasks.ValidationError{Field: "user_ids", Reason: "at least one user is required"}
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("POST", "/assignments/equal-split", strings.NewReader(`{}`)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandlerClaim(t *testing.T) {
	id := uuid.New()
	sys := &mockSystem{
		claimFn: func(_ context.Context, taskID uuid.UUID, _ string, _ audit.Method, _ *float64) (*tasks.Task, error) {
			if taskID != id {
				return nil, tasks.ErrNotFound
			}
			return nil, assignments.ErrAlreadyAssigned
		},
	}
	mux := setupMux(t, sys)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"already assigned", `{"task_id":"` + id.String() + `","user_id":"u1"}`, http.StatusConflict},
		{"unknown", `{"task_id":"` + uuid.NewString() + `","user_id":"u1"}`, http.StatusNotFound},
		{"bad id", `{"task_id":"x","user_id":"u1"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("POST", "/assignments/claim", strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHandlerListAssignments(t *testing.T) {
	rec := httptest.NewRecorder()
	setupMux(t, &mockSystem{}).ServeHTTP(rec, httptest.NewRequest("GET", "/assignments?method=pull_queue", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var page pagination.PageResult[audit.Assignment]
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 0 || page.Data == nil {
		t.Errorf("page = %+v", page)
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{assignments.ErrAlreadyAssigned, 409},
		{audit.ErrInvalidMethod, 400},
		{tasks.ErrNotFound, 404},
		{&tasks.ValidationError{Field: "f", Reason: "r"}, 400},
	}
	for _, tt := range tests {
		if got := assignments.MapHTTPStatus(tt.err); got != tt.want {
			t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
