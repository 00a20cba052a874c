package query_test

import (
	"testing"

	"github.com/JaimeStill/docket/pkg/query"
)

func testProjection() *query.ProjectionMap {
	return query.NewProjectionMap("", "tasks", "t").
		Project("id", "ID").
		Project("status", "Status").
		Project("created_at", "CreatedAt")
}

const selectTasks = "SELECT t.id, t.status, t.created_at FROM tasks t"

func ptr(s string) *string { return &s }

func TestProjectionMapTable(t *testing.T) {
	tests := []struct {
		name string
		p    *query.ProjectionMap
		want string
	}{
		{"unqualified", testProjection(), "tasks t"},
		{"schema qualified", query.NewProjectionMap("public", "tasks", "t"), "public.tasks t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Table(); got != tt.want {
				t.Errorf("Table() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProjectionMapJoin(t *testing.T) {
	p := query.NewProjectionMap("", "task_events", "e").
		Project("id", "ID").
		Join("", "tasks", "t", "JOIN", "t.id = e.task_id").
		Project("request_id", "RequestID")

	if got := p.From(); got != "task_events e JOIN tasks t ON t.id = e.task_id" {
		t.Errorf("From() = %q", got)
	}
	if got := p.Columns(); got != "e.id, t.request_id" {
		t.Errorf("Columns() = %q", got)
	}
}

func TestProjectionMapColumnLookup(t *testing.T) {
	p := testProjection()

	tests := []struct {
		name     string
		viewName string
		want     string
		has      bool
	}{
		{"mapped field", "Status", "t.status", true},
		{"mapped camel", "CreatedAt", "t.created_at", true},
		{"unmapped passthrough", "unknown", "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Column(tt.viewName); got != tt.want {
				t.Errorf("Column(%q) = %q, want %q", tt.viewName, got, tt.want)
			}
			if got := p.Has(tt.viewName); got != tt.has {
				t.Errorf("Has(%q) = %v, want %v", tt.viewName, got, tt.has)
			}
		})
	}
}

func TestParseSortFields(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []query.SortField
	}{
		{"empty string", "", nil},
		{"single ascending", "Status", []query.SortField{{Field: "Status"}}},
		{"single descending", "-CreatedAt", []query.SortField{{Field: "CreatedAt", Descending: true}}},
		{
			"with spaces and empty parts",
			" Status ,, -CreatedAt ",
			[]query.SortField{{Field: "Status"}, {Field: "CreatedAt", Descending: true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := query.ParseSortFields(tt.input)
			if tt.want == nil {
				if got != nil {
					t.Errorf("ParseSortFields(%q) = %v, want nil", tt.input, got)
				}
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseSortFields(%q) length = %d, want %d", tt.input, len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseSortFields(%q)[%d] = %v, want %v", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBuilderBuildCount(t *testing.T) {
	b := query.NewBuilder(testProjection())
	b.WhereEquals("Status", "pending")
	sql, args := b.BuildCount()

	if want := "SELECT COUNT(*) FROM tasks t WHERE t.status = $1"; sql != want {
		t.Errorf("BuildCount() sql = %q, want %q", sql, want)
	}
	if len(args) != 1 {
		t.Errorf("args = %v", args)
	}
}

func TestBuilderBuildPage(t *testing.T) {
	b := query.NewBuilder(testProjection(), query.SortField{Field: "CreatedAt", Descending: true})
	sql, args := b.BuildPage(2, 10)

	want := selectTasks + " ORDER BY t.created_at DESC LIMIT 10 OFFSET 10"
	if sql != want {
		t.Errorf("BuildPage() sql = %q, want %q", sql, want)
	}
	if len(args) != 0 {
		t.Errorf("BuildPage() args = %v, want empty", args)
	}
}

func TestBuilderBuildSingle(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		sql, args := query.NewBuilder(testProjection()).BuildSingle("ID", "abc-123")
		if want := selectTasks + " WHERE t.id = $1"; sql != want {
			t.Errorf("sql = %q, want %q", sql, want)
		}
		if len(args) != 1 || args[0] != "abc-123" {
			t.Errorf("args = %v", args)
		}
	})

	t.Run("with lock suffix", func(t *testing.T) {
		sql, _ := query.NewBuilder(testProjection()).BuildSingle("ID", "abc-123", " FOR UPDATE")
		if want := selectTasks + " WHERE t.id = $1 FOR UPDATE"; sql != want {
			t.Errorf("sql = %q, want %q", sql, want)
		}
	})
}

func TestBuilderBuildLimit(t *testing.T) {
	b := query.NewBuilder(testProjection(), query.SortField{Field: "CreatedAt"})
	b.WhereEquals("Status", "pending")
	sql, args := b.BuildLimit(5, " FOR UPDATE SKIP LOCKED")

	want := selectTasks + " WHERE t.status = $1 ORDER BY t.created_at ASC LIMIT 5 FOR UPDATE SKIP LOCKED"
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if len(args) != 1 || args[0] != "pending" {
		t.Errorf("args = %v", args)
	}
}

func TestBuilderWhereEqualsNilSkipped(t *testing.T) {
	var status *string
	sql, args := query.NewBuilder(testProjection()).WhereEquals("Status", status).Build()

	if sql != selectTasks {
		t.Errorf("sql = %q, want %q", sql, selectTasks)
	}
	if len(args) != 0 {
		t.Errorf("args = %v, want empty", args)
	}
}

func TestBuilderWhereContains(t *testing.T) {
	sql, args := query.NewBuilder(testProjection()).WhereContains("Status", ptr("PEND")).Build()

	if want := selectTasks + " WHERE LOWER(t.status) LIKE $1"; sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if len(args) != 1 || args[0] != "%pend%" {
		t.Errorf("args = %v, want [%%pend%%]", args)
	}
}

func TestBuilderWhereIn(t *testing.T) {
	sql, args := query.NewBuilder(testProjection()).WhereIn("ID", []any{"a", "b", "c"}).Build()

	if want := selectTasks + " WHERE t.id IN ($1, $2, $3)"; sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if len(args) != 3 {
		t.Errorf("args length = %d, want 3", len(args))
	}
}

func TestBuilderWhereNull(t *testing.T) {
	sql, args := query.NewBuilder(testProjection()).
		WhereNull("ID").
		WhereEquals("Status", "pending").
		Build()

	if want := selectTasks + " WHERE t.id IS NULL AND t.status = $1"; sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if len(args) != 1 {
		t.Errorf("args = %v", args)
	}
}

func TestBuilderWhereNullable(t *testing.T) {
	t.Run("nil value generates IS NULL", func(t *testing.T) {
		sql, _ := query.NewBuilder(testProjection()).WhereNullable("Status", nil).Build()
		if want := selectTasks + " WHERE t.status IS NULL"; sql != want {
			t.Errorf("sql = %q, want %q", sql, want)
		}
	})

	t.Run("non-nil value generates equals", func(t *testing.T) {
		sql, args := query.NewBuilder(testProjection()).WhereNullable("Status", "pending").Build()
		if want := selectTasks + " WHERE t.status = $1"; sql != want {
			t.Errorf("sql = %q, want %q", sql, want)
		}
		if len(args) != 1 || args[0] != "pending" {
			t.Errorf("args = %v", args)
		}
	})
}

func TestBuilderWhereSearch(t *testing.T) {
	sql, args := query.NewBuilder(testProjection()).WhereSearch(ptr("Req"), "Status", "ID").Build()

	want := selectTasks + " WHERE (LOWER(t.status) LIKE $1 OR LOWER(t.id) LIKE $2)"
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if len(args) != 2 || args[0] != "%req%" || args[1] != "%req%" {
		t.Errorf("args = %v", args)
	}
}

func TestBuilderOrderByFields(t *testing.T) {
	b := query.NewBuilder(testProjection(), query.SortField{Field: "ID"})
	b.OrderByFields([]query.SortField{
		{Field: "CreatedAt", Descending: true},
		{Field: "Status"},
	})
	sql, _ := b.Build()

	if want := selectTasks + " ORDER BY t.created_at DESC, t.status ASC"; sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
}

func TestBuilderOrderByIgnoresUnmappedFields(t *testing.T) {
	b := query.NewBuilder(testProjection(), query.SortField{Field: "CreatedAt"})
	b.OrderByFields([]query.SortField{{Field: "id; DROP TABLE tasks"}})
	sql, _ := b.Build()

	if want := selectTasks + " ORDER BY t.created_at ASC"; sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
}
