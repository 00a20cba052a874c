package tasks_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/docket/internal/audit"
	"github.com/JaimeStill/docket/internal/tasks"
	"github.com/JaimeStill/docket/internal/testsupport"
	"github.com/JaimeStill/docket/pkg/database"
	"github.com/JaimeStill/docket/pkg/pagination"
)

var pageCfg = pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}

func newSystem(t *testing.T) (tasks.System, *sql.DB) {
	t.Helper()
	db := testsupport.MustOpenDB(t)
	return tasks.New(db.Connection(), database.SQLite, testsupport.Logger(), pageCfg), db.Connection()
}

func countEvents(t *testing.T, db *sql.DB, id uuid.UUID, from, to tasks.Status) int {
	t.Helper()
	var n int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM task_events WHERE task_id = $1 AND old_status = $2 AND new_status = $3",
		id, string(from), string(to),
	).Scan(&n)
	if err != nil {
		t.Fatalf("count events: %v", err)
	}
	return n
}

func totalEvents(t *testing.T, db *sql.DB, id uuid.UUID) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM task_events WHERE task_id = $1", id).Scan(&n); err != nil {
		t.Fatalf("count events: %v", err)
	}
	return n
}

func TestInsertAndFind(t *testing.T) {
	sys, _ := newSystem(t)
	ctx := context.Background()

	created, err := sys.Insert(ctx, tasks.CreateCommand{
		RequestID:    "req-1",
		JobID:        "job-1",
		RowID:        "1",
		PayloadURL:   "https://assets.example.com/1.png",
		VendorOutput: json.RawMessage(`{"label":"cat","confidence":0.9}`),
		Confidence:   testsupport.Ptr(0.9),
		AssigneeHint: testsupport.Ptr("alice"),
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := sys.Find(ctx, created.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	if got.Status != tasks.Pending {
		t.Errorf("status = %s, want pending", got.Status)
	}
	if got.AssignedTo != nil || got.AssignedAt != nil {
		t.Errorf("new task is assigned: %v", got.AssignedTo)
	}
	if got.Version != 1 || got.Token != "v1" {
		t.Errorf("version = %d token = %s, want 1 v1", got.Version, got.Token)
	}
	if got.Confidence == nil || *got.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", got.Confidence)
	}
	if got.AssigneeHint == nil || *got.AssigneeHint != "alice" {
		t.Errorf("assignee_hint = %v, want alice", got.AssigneeHint)
	}
	if string(got.VendorOutput) != `{"label":"cat","confidence":0.9}` {
		t.Errorf("vendor_output = %s", got.VendorOutput)
	}

	exists, err := sys.Exists(ctx, "req-1")
	if err != nil || !exists {
		t.Errorf("Exists(req-1) = %v, %v; want true", exists, err)
	}
	exists, err = sys.Exists(ctx, "req-2")
	if err != nil || exists {
		t.Errorf("Exists(req-2) = %v, %v; want false", exists, err)
	}
}

func TestInsertDuplicateBusinessKey(t *testing.T) {
	sys, _ := newSystem(t)
	ctx := context.Background()

	cmd := tasks.CreateCommand{RequestID: "req-1", JobID: "job-1", RowID: "1", PayloadURL: "https://a/1"}
	if _, err := sys.Insert(ctx, cmd); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	_, err := sys.Insert(ctx, cmd)
	if !errors.Is(err, tasks.ErrDuplicate) {
		t.Fatalf("second Insert err = %v, want ErrDuplicate", err)
	}
}

func TestFindNotFound(t *testing.T) {
	sys, _ := newSystem(t)
	if _, err := sys.Find(context.Background(), uuid.New()); !errors.Is(err, tasks.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListFilters(t *testing.T) {
	sys, db := newSystem(t)
	ctx := context.Background()

	testsupport.SeedTask(t, db, testsupport.TaskSeed{RequestID: "alpha-1", JobID: "job-a"})
	testsupport.SeedTask(t, db, testsupport.TaskSeed{RequestID: "alpha-2", JobID: "job-a", AssignedTo: "u1"})
	testsupport.SeedTask(t, db, testsupport.TaskSeed{RequestID: "beta-1", JobID: "job-b", Status: "completed", AssignedTo: "u1"})

	tests := []struct {
		name    string
		page    pagination.PageRequest
		filters tasks.Filters
		want    int
	}{
		{"all", pagination.PageRequest{}, tasks.Filters{}, 3},
		{"by status", pagination.PageRequest{}, tasks.Filters{Status: testsupport.Ptr("pending")}, 2},
		{"by assignee", pagination.PageRequest{}, tasks.Filters{AssignedTo: testsupport.Ptr("u1")}, 2},
		{"by job", pagination.PageRequest{}, tasks.Filters{JobID: testsupport.Ptr("job-b")}, 1},
		{"search request id", pagination.PageRequest{Search: testsupport.Ptr("ALPHA")}, tasks.Filters{}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := sys.List(ctx, tt.page, tt.filters)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if result.Total != tt.want {
				t.Errorf("total = %d, want %d", result.Total, tt.want)
			}
		})
	}

	t.Run("unknown status", func(t *testing.T) {
		_, err := sys.List(ctx, pagination.PageRequest{}, tasks.Filters{Status: testsupport.Ptr("archived")})
		if !errors.Is(err, tasks.ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})
}

func TestStats(t *testing.T) {
	sys, db := newSystem(t)

	testsupport.SeedTask(t, db, testsupport.TaskSeed{RequestID: "r1"})
	testsupport.SeedTask(t, db, testsupport.TaskSeed{RequestID: "r2", AssignedTo: "a"})
	testsupport.SeedTask(t, db, testsupport.TaskSeed{RequestID: "r3", Status: "in_progress", AssignedTo: "a"})
	testsupport.SeedTask(t, db, testsupport.TaskSeed{RequestID: "r4", Status: "completed", AssignedTo: "b"})

	stats, err := sys.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	if stats.Total != 4 {
		t.Errorf("total = %d, want 4", stats.Total)
	}

	wantStatus := map[tasks.Status]int{
		tasks.Pending: 2, tasks.InProgress: 1, tasks.Completed: 1, tasks.Failed: 0, tasks.Skipped: 0,
	}
	for s, n := range wantStatus {
		got, ok := stats.ByStatus[s]
		if !ok || got != n {
			t.Errorf("by_status[%s] = %d (present %v), want %d", s, got, ok, n)
		}
	}

	if stats.ByAssignee["a"] != 2 || stats.ByAssignee["b"] != 1 || len(stats.ByAssignee) != 2 {
		t.Errorf("by_assignee = %v, want a:2 b:1", stats.ByAssignee)
	}
}

func TestAnnotatorLifecycle(t *testing.T) {
	sys, db := newSystem(t)
	ctx := context.Background()
	id := testsupport.SeedTask(t, db, testsupport.TaskSeed{RequestID: "req-1", AssignedTo: "u1"})

	started, err := sys.Start(ctx, id, tasks.ActionCommand{UserID: "u1", IP: "10.0.0.1", UserAgent: "cli/1"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if started.Status != tasks.InProgress || started.Token != "v2" {
		t.Fatalf("started = %s %s, want in_progress v2", started.Status, started.Token)
	}

	draft, err := sys.SaveDraft(ctx, id, tasks.ActionCommand{
		UserID:  "u1",
		Token:   started.Token,
		Payload: json.RawMessage(`{"label":"dog"}`),
	})
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if draft.Status != tasks.InProgress || string(draft.Annotation) != `{"label":"dog"}` {
		t.Fatalf("draft = %s %s", draft.Status, draft.Annotation)
	}

	done, err := sys.Submit(ctx, id, tasks.ActionCommand{
		UserID:         "u1",
		Token:          draft.Token,
		Payload:        json.RawMessage(`{"label":"cat"}`),
		IdempotencyKey: "sub-1",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if done.Status != tasks.Completed || done.Version != 4 {
		t.Fatalf("done = %s v%d, want completed v4", done.Status, done.Version)
	}

	history, err := audit.New(db, testsupport.Logger(), pageCfg).History(ctx, id)
	if err != nil {
		t.Fatalf("History: %v", err)
	}

	want := []string{tasks.EventCompleted, tasks.EventDraftSaved, tasks.EventStarted}
	if len(history) != len(want) {
		t.Fatalf("history len = %d, want %d", len(history), len(want))
	}
	for i, e := range history {
		if e.EventType != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, e.EventType, want[i])
		}
	}
	if history[2].Context["ip"] != "10.0.0.1" || history[2].Context["user_agent"] != "cli/1" {
		t.Errorf("start context = %v", history[2].Context)
	}
	if history[0].Context["idempotency_key"] != "sub-1" {
		t.Errorf("submit context = %v", history[0].Context)
	}
	if string(history[0].Payload) != `{"label":"cat"}` {
		t.Errorf("submit payload = %s", history[0].Payload)
	}
}

func TestSubmitReplay(t *testing.T) {
	sys, db := newSystem(t)
	ctx := context.Background()
	id := testsupport.SeedTask(t, db, testsupport.TaskSeed{RequestID: "req-1", Status: "in_progress", AssignedTo: "u1"})

	cmd := tasks.ActionCommand{UserID: "u1", Payload: json.RawMessage(`{"ok":true}`), IdempotencyKey: "k1"}

	first, err := sys.Submit(ctx, id, cmd)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	second, err := sys.Submit(ctx, id, cmd)
	if err != nil {
		t.Fatalf("replayed Submit: %v", err)
	}
	if second.Version != first.Version {
		t.Errorf("replay bumped version %d -> %d", first.Version, second.Version)
	}
	if n := totalEvents(t, db, id); n != 1 {
		t.Errorf("events = %d, want 1", n)
	}

	t.Run("different key is a transition error", func(t *testing.T) {
		_, err := sys.Submit(ctx, id, tasks.ActionCommand{UserID: "u1", Payload: json.RawMessage(`{}`), IdempotencyKey: "k2"})
		if !errors.Is(err, tasks.ErrInvalidTransition) {
			t.Errorf("err = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("different actor is a transition error", func(t *testing.T) {
		_, err := sys.Submit(ctx, id, tasks.ActionCommand{UserID: "u2", Payload: json.RawMessage(`{}`), IdempotencyKey: "k1"})
		if !errors.Is(err, tasks.ErrInvalidTransition) {
			t.Errorf("err = %v, want ErrInvalidTransition", err)
		}
	})
}

func TestSkipReleasesAssignment(t *testing.T) {
	sys, db := newSystem(t)
	ctx := context.Background()
	id := testsupport.SeedTask(t, db, testsupport.TaskSeed{RequestID: "req-1", Status: "in_progress", AssignedTo: "u1"})

	got, err := sys.Skip(ctx, id, tasks.ActionCommand{UserID: "u1", ReasonCode: "unclear_image"})
	if err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if got.Status != tasks.Pending || got.AssignedTo != nil || got.AssignedAt != nil {
		t.Fatalf("skipped task = %s assigned %v", got.Status, got.AssignedTo)
	}

	history, err := audit.New(db, testsupport.Logger(), pageCfg).History(ctx, id)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if history[0].EventType != tasks.EventSkippedToQueue || history[0].Context["reason_code"] != "unclear_image" {
		t.Errorf("event = %s %v", history[0].EventType, history[0].Context)
	}
}

func TestTransitionRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		sys, _ := newSystem(t)
		_, err := sys.Start(ctx, uuid.New(), tasks.ActionCommand{UserID: "u1"})
		if !errors.Is(err, tasks.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("wrong actor", func(t *testing.T) {
		sys, db := newSystem(t)
		id := testsupport.SeedTask(t, db, testsupport.TaskSeed{RequestID: "r", AssignedTo: "u1"})
		_, err := sys.Start(ctx, id, tasks.ActionCommand{UserID: "u2"})
		if !errors.Is(err, tasks.ErrForbidden) {
			t.Errorf("err = %v, want ErrForbidden", err)
		}
	})

	t.Run("unassigned task", func(t *testing.T) {
		sys, db := newSystem(t)
		id := testsupport.SeedTask(t, db, testsupport.TaskSeed{RequestID: "r"})
		_, err := sys.Start(ctx, id, tasks.ActionCommand{UserID: "u1"})
		if !errors.Is(err, tasks.ErrForbidden) {
			t.Errorf("err = %v, want ErrForbidden", err)
		}
	})

	t.Run("missing actor", func(t *testing.T) {
		sys, db := newSystem(t)
		id := testsupport.SeedTask(t, db, testsupport.TaskSeed{RequestID: "r", AssignedTo: "u1"})
		_, err := sys.Start(ctx, id, tasks.ActionCommand{})
		if !errors.Is(err, tasks.ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("wrong current status", func(t *testing.T) {
		sys, db := newSystem(t)
		id := testsupport.SeedTask(t, db, testsupport.TaskSeed{RequestID: "r", AssignedTo: "u1"})
		_, err := sys.Skip(ctx, id, tasks.ActionCommand{UserID: "u1"})

		var ste *tasks.StateTransitionError
		if !errors.As(err, &ste) {
			t.Fatalf("err = %v, want *StateTransitionError", err)
		}
		if ste.Current != tasks.Pending {
			t.Errorf("current = %s, want pending", ste.Current)
		}
		if len(ste.Allowed) != 1 || ste.Allowed[0] != tasks.InProgress {
			t.Errorf("allowed = %v, want [in_progress]", ste.Allowed)
		}
	})

	t.Run("draft payload must be an object", func(t *testing.T) {
		sys, db := newSystem(t)
		id := testsupport.SeedTask(t, db, testsupport.TaskSeed{RequestID: "r", Status: "in_progress", AssignedTo: "u1"})

		for _, p := range []string{"", "[1,2]", `"text"`, "{broken"} {
			_, err := sys.SaveDraft(ctx, id, tasks.ActionCommand{UserID: "u1", Payload: json.RawMessage(p)})
			var ve *tasks.ValidationError
			if !errors.As(err, &ve) || ve.Field != "payload" {
				t.Errorf("payload %q: err = %v, want payload ValidationError", p, err)
			}
		}
	})

	t.Run("terminal edge rejected before touching the store", func(t *testing.T) {
		sys, _ := newSystem(t)
		_, err := sys.ExecuteStateTransition(ctx, uuid.New(), tasks.Completed, tasks.Pending, tasks.TransitionContext{Actor: "u1"})
		if !errors.Is(err, tasks.ErrInvalidTransition) {
			t.Errorf("err = %v, want ErrInvalidTransition", err)
		}
	})
}

func TestRejectedTransitionWritesNoEvent(t *testing.T) {
	sys, db := newSystem(t)
	ctx := context.Background()
	id := testsupport.SeedTask(t, db, testsupport.TaskSeed{RequestID: "r", AssignedTo: "u1"})

	_, _ = sys.Start(ctx, id, tasks.ActionCommand{UserID: "u2"})
	_, _ = sys.Start(ctx, id, tasks.ActionCommand{UserID: "u1", Token: "v9"})
	_, _ = sys.Skip(ctx, id, tasks.ActionCommand{UserID: "u1"})

	if n := totalEvents(t, db, id); n != 0 {
		t.Errorf("events = %d, want 0", n)
	}
}

func TestTokenMonotonicity(t *testing.T) {
	sys, db := newSystem(t)
	ctx := context.Background()
	id := testsupport.SeedTask(t, db, testsupport.TaskSeed{RequestID: "r", AssignedTo: "u1"})

	before, err := sys.Find(ctx, id)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	after, err := sys.Start(ctx, id, tasks.ActionCommand{UserID: "u1", Token: before.Token})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if after.Token == before.Token {
		t.Fatalf("token unchanged: %s", after.Token)
	}

	err = tasks.ValidateConcurrencyToken(before.Token, after.Version)
	var cce *tasks.ConcurrencyConflictError
	if !errors.As(err, &cce) {
		t.Fatalf("stale token err = %v, want *ConcurrencyConflictError", err)
	}

	_, err = sys.SaveDraft(ctx, id, tasks.ActionCommand{UserID: "u1", Token: before.Token, Payload: json.RawMessage(`{}`)})
	if !errors.As(err, &cce) {
		t.Fatalf("SaveDraft with stale token err = %v, want *ConcurrencyConflictError", err)
	}
	if cce.Expected != before.Token || cce.Actual != after.Token {
		t.Errorf("conflict = %+v, want expected %s actual %s", cce, before.Token, after.Token)
	}
}

func TestAtomicAuditPairing(t *testing.T) {
	sys, db := newSystem(t)
	ctx := context.Background()
	id := testsupport.SeedTask(t, db, testsupport.TaskSeed{RequestID: "r", AssignedTo: "u1"})

	if _, err := sys.Start(ctx, id, tasks.ActionCommand{UserID: "u1"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if n := countEvents(t, db, id, tasks.Pending, tasks.InProgress); n != 1 {
		t.Fatalf("start events = %d, want 1", n)
	}

	_, err := db.Exec(`CREATE TRIGGER fail_events BEFORE INSERT ON task_events
		BEGIN SELECT RAISE(ABORT, 'forced audit failure'); END`)
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	_, err = sys.SaveDraft(ctx, id, tasks.ActionCommand{UserID: "u1", Payload: json.RawMessage(`{"x":1}`)})
	if err == nil {
		t.Fatal("SaveDraft succeeded despite failing audit insert")
	}

	got, err := sys.Find(ctx, id)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Status != tasks.InProgress || got.Version != 2 || got.Annotation != nil {
		t.Errorf("task mutated after rollback: status %s version %d annotation %s", got.Status, got.Version, got.Annotation)
	}

	_, err = sys.Skip(ctx, id, tasks.ActionCommand{UserID: "u1"})
	if err == nil {
		t.Fatal("Skip succeeded despite failing audit insert")
	}

	got, err = sys.Find(ctx, id)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Status != tasks.InProgress || !got.IsAssignedTo("u1") {
		t.Errorf("skip leaked through rollback: status %s assigned %v", got.Status, got.AssignedTo)
	}
	if n := totalEvents(t, db, id); n != 1 {
		t.Errorf("events = %d, want 1", n)
	}
}

func TestAbandon(t *testing.T) {
	ctx := context.Background()

	for _, status := range []tasks.Status{tasks.Skipped, tasks.Failed} {
		t.Run(string(status), func(t *testing.T) {
			sys, db := newSystem(t)
			id := testsupport.SeedTask(t, db, testsupport.TaskSeed{RequestID: "r", Status: "in_progress", AssignedTo: "u1"})

			got, err := sys.Abandon(ctx, id, tasks.AbandonCommand{Actor: "admin", Status: status, Reason: "corrupt asset"})
			if err != nil {
				t.Fatalf("Abandon: %v", err)
			}
			if got.Status != status || got.AssignedTo != nil {
				t.Errorf("abandoned = %s assigned %v", got.Status, got.AssignedTo)
			}
			if n := countEvents(t, db, id, tasks.InProgress, status); n != 1 {
				t.Errorf("events = %d, want 1", n)
			}

			_, err = sys.Abandon(ctx, id, tasks.AbandonCommand{Actor: "admin", Status: status})
			if !errors.Is(err, tasks.ErrInvalidTransition) {
				t.Errorf("second Abandon err = %v, want ErrInvalidTransition", err)
			}
		})
	}

	t.Run("rejects non-terminal target", func(t *testing.T) {
		sys, db := newSystem(t)
		id := testsupport.SeedTask(t, db, testsupport.TaskSeed{RequestID: "r"})
		_, err := sys.Abandon(ctx, id, tasks.AbandonCommand{Actor: "admin", Status: tasks.Completed})
		if !errors.Is(err, tasks.ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("annotator graph cannot reach skipped", func(t *testing.T) {
		sys, db := newSystem(t)
		id := testsupport.SeedTask(t, db, testsupport.TaskSeed{RequestID: "r", Status: "in_progress", AssignedTo: "u1"})
		_, err := sys.ExecuteStateTransition(ctx, id, tasks.InProgress, tasks.Skipped, tasks.TransitionContext{Actor: "u1"})
		if !errors.Is(err, tasks.ErrInvalidTransition) {
			t.Errorf("err = %v, want ErrInvalidTransition", err)
		}
	})
}
