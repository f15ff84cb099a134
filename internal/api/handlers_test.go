package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"melody-planner/internal/logging"
	"melody-planner/internal/model"
	"melody-planner/internal/service"
	"melody-planner/internal/tree"
)

// MockSync records flushes and returns a fixed status.
type MockSync struct {
	StatusFunc func() service.SyncStatus
	flushes    int
}

func (m *MockSync) Status() service.SyncStatus {
	if m.StatusFunc != nil {
		return m.StatusFunc()
	}
	return service.SyncStatus{State: "idle", Badge: service.BadgeLocal}
}

func (m *MockSync) Flush() { m.flushes++ }

var now = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func setupServer(t *testing.T) (*Server, *service.Store, *MockSync, *service.Inbox) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := model.NewProject("Root", "")
	root.ID = "root"
	child := model.NewProject("Child", "root")
	child.ID = "child"
	child.Tasks = []model.Task{
		{ID: "c1", Title: "paint", Status: model.StatusInProgress, Progress: 50,
			Tags: []model.Tag{{Name: "home", Color: "#fff"}}},
	}
	root.Tasks = []model.Task{
		{ID: "r1", Title: "plan", Status: model.StatusTodo, Tags: []model.Tag{{Name: "work", Color: "#000"}}},
		{ID: "r2", Title: "ship", Status: model.StatusCompleted, Progress: 100,
			Tags: []model.Tag{{Name: "work", Color: "#000"}, {Name: "home", Color: "#fff"}}},
	}
	root.Children = []model.Project{child}

	store := service.NewStore(model.Workspace{Name: "W", Logo: "🎵", Projects: []model.Project{root}})
	sync := &MockSync{}
	inbox := service.NewInbox(4)
	s := NewServer(store, sync, inbox, logging.Discard())
	s.now = func() time.Time { return now }
	return s, store, sync, inbox
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestGetWorkspace(t *testing.T) {
	s, _, _, _ := setupServer(t)

	w := do(t, s, http.MethodGet, "/api/workspace", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var ws model.Workspace
	decode(t, w, &ws)
	if ws.Name != "W" || len(ws.Projects) != 1 || ws.Projects[0].ID != "root" {
		t.Fatalf("workspace = %+v", ws)
	}
}

func TestUpdateWorkspace(t *testing.T) {
	s, store, _, _ := setupServer(t)

	w := do(t, s, http.MethodPut, "/api/workspace", `{"workspaceName":" Melody ","workspaceLogo":""}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var resp struct {
		Changed bool   `json:"changed"`
		Name    string `json:"workspaceName"`
		Logo    string `json:"workspaceLogo"`
	}
	decode(t, w, &resp)
	if !resp.Changed || resp.Name != "Melody" || resp.Logo != "🎵" {
		t.Fatalf("response = %+v", resp)
	}
	if store.Snapshot().Name != "Melody" {
		t.Fatal("store not updated")
	}

	if w := do(t, s, http.MethodPut, "/api/workspace", `{`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for bad JSON, got %d", w.Code)
	}
}

func TestProjectNotFound(t *testing.T) {
	s, _, _, _ := setupServer(t)
	for _, path := range []string{"/api/projects/nope", "/api/projects/nope/tasks", "/api/projects/nope/board"} {
		if w := do(t, s, http.MethodGet, path, ""); w.Code != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", path, w.Code)
		}
	}
}

func TestTasksAggregateAndFilter(t *testing.T) {
	s, _, _, _ := setupServer(t)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"all tasks in subtree", "", []string{"r1", "r2", "c1"}},
		{"single tag", "?tags=home", []string{"r2", "c1"}},
		{"comma separated tags", "?tags=home,work", []string{"r2"}},
		{"repeated tags", "?tags=home&tags=work", []string{"r2"}},
		{"unknown tag", "?tags=gym", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodGet, "/api/projects/root/tasks"+tt.query, "")
			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", w.Code)
			}
			var resp struct {
				Tasks []model.Task `json:"tasks"`
				Count int          `json:"count"`
			}
			decode(t, w, &resp)
			if resp.Count != len(tt.want) || len(resp.Tasks) != len(tt.want) {
				t.Fatalf("got %d tasks, want %v", resp.Count, tt.want)
			}
			for i, id := range tt.want {
				if resp.Tasks[i].ID != id {
					t.Fatalf("task %d = %s, want %s", i, resp.Tasks[i].ID, id)
				}
			}
		})
	}
}

func TestTagsProgressBoard(t *testing.T) {
	s, _, _, _ := setupServer(t)

	var tags struct {
		Tags []model.Tag `json:"tags"`
	}
	decode(t, do(t, s, http.MethodGet, "/api/projects/root/tags", ""), &tags)
	if len(tags.Tags) != 2 || tags.Tags[0].Name != "work" || tags.Tags[1].Name != "home" {
		t.Fatalf("tags = %+v", tags.Tags)
	}

	var summary tree.Summary
	decode(t, do(t, s, http.MethodGet, "/api/projects/root/progress", ""), &summary)
	want := tree.Summary{Total: 3, Todo: 1, InProgress: 1, Completed: 1, AverageProgress: 50}
	if summary != want {
		t.Fatalf("progress = %+v, want %+v", summary, want)
	}

	var board struct {
		Columns []tree.Column `json:"columns"`
	}
	decode(t, do(t, s, http.MethodGet, "/api/projects/child/board", ""), &board)
	if len(board.Columns) != 3 || len(board.Columns[1].Tasks) != 1 || board.Columns[1].Tasks[0].ID != "c1" {
		t.Fatalf("board = %+v", board.Columns)
	}
}

func TestPostCommand(t *testing.T) {
	s, store, _, _ := setupServer(t)

	w := do(t, s, http.MethodPost, "/api/commands", `{"type":"rename_project","id":"child","name":"Garden"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Kind    string `json:"kind"`
		Changed bool   `json:"changed"`
	}
	decode(t, w, &resp)
	if resp.Kind != "rename_project" || !resp.Changed {
		t.Fatalf("response = %+v", resp)
	}
	if p, _ := tree.FindProject(store.Projects(), "child"); p.Name != "Garden" {
		t.Fatalf("project name = %q", p.Name)
	}

	w = do(t, s, http.MethodPost, "/api/commands", `{"type":"rename_project","id":"missing","name":"x"}`)
	decode(t, w, &resp)
	if w.Code != http.StatusOK || resp.Changed {
		t.Fatalf("missing target: status %d changed %v", w.Code, resp.Changed)
	}
}

func TestPostCommandErrors(t *testing.T) {
	s, _, _, _ := setupServer(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed", `{"type":`, http.StatusBadRequest},
		{"unknown type", `{"type":"explode"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/api/commands", tt.body)
			if w.Code != tt.code {
				t.Fatalf("expected status %d, got %d", tt.code, w.Code)
			}
			var resp map[string]string
			decode(t, w, &resp)
			if resp["error"] == "" {
				t.Fatal("error message missing")
			}
		})
	}
}

func TestListKinds(t *testing.T) {
	s, _, _, _ := setupServer(t)
	var resp struct {
		Kinds []string `json:"kinds"`
	}
	decode(t, do(t, s, http.MethodGet, "/api/commands", ""), &resp)
	if len(resp.Kinds) != len(tree.Kinds()) || resp.Kinds[0] != "add_precaution" {
		t.Fatalf("kinds = %v", resp.Kinds)
	}
}

func TestSyncEndpoints(t *testing.T) {
	s, _, sync, _ := setupServer(t)
	sync.StatusFunc = func() service.SyncStatus {
		return service.SyncStatus{State: "pending_write", Badge: service.BadgePending}
	}

	var st service.SyncStatus
	decode(t, do(t, s, http.MethodGet, "/api/sync", ""), &st)
	if st.Badge != service.BadgePending {
		t.Fatalf("status = %+v", st)
	}
	if w := do(t, s, http.MethodPost, "/api/sync/flush", ""); w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if sync.flushes != 1 {
		t.Fatalf("%d flushes", sync.flushes)
	}
}

func TestRemindersDrainInbox(t *testing.T) {
	s, _, _, inbox := setupServer(t)
	inbox.Push(service.Popup{At: now, Reminders: []service.DueReminder{{TaskID: "r1", Title: "plan"}}})

	var resp struct {
		Popups []service.Popup `json:"popups"`
	}
	decode(t, do(t, s, http.MethodGet, "/api/reminders", ""), &resp)
	if len(resp.Popups) != 1 || resp.Popups[0].Reminders[0].TaskID != "r1" {
		t.Fatalf("popups = %+v", resp.Popups)
	}
	decode(t, do(t, s, http.MethodGet, "/api/reminders", ""), &resp)
	if len(resp.Popups) != 0 {
		t.Fatal("inbox not drained")
	}
}
