package resource

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zamanyonet-admin/internal/audit"
)

type note struct {
	Base
	Title  string            `json:"title" binding:"required"`
	Status string            `json:"status" binding:"required,oneof=OPEN CLOSED"`
	Secret string            `json:"secret,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

type notePublic struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

func noteDefinition() *Definition[note] {
	return &Definition[note]{
		Kind:       "notes",
		Table:      "notes",
		EntityType: "Note",
		Label:      "Note",
		Filters:    map[string]string{"status": "status"},
		Prepare: func(old, next *note, _ time.Time) error {
			if strings.TrimSpace(next.Title) == "" {
				return Invalid("title", "must not be blank")
			}
			return nil
		},
		Present: func(n *note) any {
			return notePublic{ID: n.ID, Title: n.Title, Status: n.Status}
		},
		UniqueKey: func(n *note) string { return strings.ToLower(n.Title) },
	}
}

type failingRepo struct {
	audit.Repository
}

func (failingRepo) Append(context.Context, audit.Entry) error {
	return errors.New("disk full")
}

type fixture struct {
	router *gin.Engine
	gw     *MemoryGateway[note]
	audits *audit.MemoryRepo
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	def := noteDefinition()
	require.NoError(t, def.Check())

	repo := audit.NewMemoryRepo()
	gw := NewMemoryGateway(def, audit.NewService(repo), repo)

	r := gin.New()
	NewHandler(def, Gateway[note](gw)).Register(r.Group("/api"))
	return fixture{router: r, gw: gw, audits: repo}
}

func (f fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHandler_CreateWritesOneAuditEntry(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/notes", `{"title":"Call supplier","status":"OPEN","secret":"s3"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decodeBody(t, w)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	assert.NotContains(t, body, "secret")

	entries := f.audits.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionCreate, entries[0].Action)
	assert.Equal(t, "Note", entries[0].EntityType)
	assert.Equal(t, id, entries[0].EntityID)
	assert.Nil(t, entries[0].OldValues)
	assert.NotContains(t, string(entries[0].NewValues), "s3")
}

func TestHandler_GetMissingReturnsLabelledNotFound(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/notes/nope", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Note not found", decodeBody(t, w)["error"])
}

func TestHandler_DeleteMissingWritesNoAudit(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodDelete, "/api/notes/xyz", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Note not found", decodeBody(t, w)["error"])
	assert.Empty(t, f.audits.Entries())
}

func TestHandler_MutationsOnMissingIDAreNotFoundWhateverTheBody(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct {
		method string
		body   string
	}{
		{http.MethodPut, `{"title":"x"}`},
		{http.MethodPut, `{"title":`},
		{http.MethodPut, `{"title":"x","status":"OPEN"}`},
		{http.MethodPatch, `{"status":"LOST"}`},
	} {
		w := f.do(tc.method, "/api/notes/does-not-exist", tc.body)
		assert.Equal(t, http.StatusNotFound, w.Code, "%s %s: %s", tc.method, tc.body, w.Body.String())
		assert.Equal(t, "Note not found", decodeBody(t, w)["error"])
	}
	assert.Empty(t, f.audits.Entries())
}

func TestHandler_DeleteRecordsOldValues(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.gw.Seed(note{Base: Base{ID: "n1"}, Title: "Old", Status: "OPEN"}))

	w := f.do(http.MethodDelete, "/api/notes/n1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Note deleted successfully", decodeBody(t, w)["message"])

	entries := f.audits.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionDelete, entries[0].Action)
	assert.JSONEq(t, `{"id":"n1","title":"Old","status":"OPEN"}`, string(entries[0].OldValues))
	assert.Nil(t, entries[0].NewValues)

	_, err := f.gw.Get(context.Background(), "n1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHandler_PutReplacesAndKeepsServerFields(t *testing.T) {
	f := newFixture(t)
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.gw.Seed(note{Base: Base{ID: "n1", CreatedAt: created, UpdatedAt: created}, Title: "Old", Status: "OPEN"}))

	w := f.do(http.MethodPut, "/api/notes/n1", `{"id":"forged","title":"New","status":"CLOSED","createdAt":"2030-01-01T00:00:00Z"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, err := f.gw.Get(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, "n1", stored.ID)
	assert.Equal(t, created, stored.CreatedAt)
	assert.True(t, stored.UpdatedAt.After(created))
	assert.Equal(t, "CLOSED", stored.Status)

	entries := f.audits.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionUpdate, entries[0].Action)
	assert.JSONEq(t, `{"id":"n1","title":"Old","status":"OPEN"}`, string(entries[0].OldValues))
	assert.JSONEq(t, `{"id":"n1","title":"New","status":"CLOSED"}`, string(entries[0].NewValues))
}

func TestHandler_PatchMergesIntoStoredDocument(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.gw.Seed(note{
		Base:   Base{ID: "n1"},
		Title:  "Keep me",
		Status: "OPEN",
		Tags:   map[string]string{"a": "1", "b": "2"},
	}))

	w := f.do(http.MethodPatch, "/api/notes/n1", `{"status":"CLOSED","tags":{"b":null,"c":"3"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, err := f.gw.Get(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, "Keep me", stored.Title)
	assert.Equal(t, "CLOSED", stored.Status)
	assert.Equal(t, map[string]string{"a": "1", "c": "3"}, stored.Tags)
}

func TestHandler_RejectsBadBodiesWithoutAudit(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.gw.Seed(note{Base: Base{ID: "n1"}, Title: "T", Status: "OPEN"}))

	cases := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"malformed json", http.MethodPost, "/api/notes", `{"title":`},
		{"unknown field", http.MethodPost, "/api/notes", `{"title":"x","status":"OPEN","colour":"red"}`},
		{"missing required", http.MethodPost, "/api/notes", `{"status":"OPEN"}`},
		{"bad enum", http.MethodPost, "/api/notes", `{"title":"x","status":"LOST"}`},
		{"blank title", http.MethodPost, "/api/notes", `{"title":"  ","status":"OPEN"}`},
		{"patch unknown field", http.MethodPatch, "/api/notes/n1", `{"colour":"red"}`},
		{"patch bad enum", http.MethodPatch, "/api/notes/n1", `{"status":"LOST"}`},
		{"patch not object", http.MethodPatch, "/api/notes/n1", `["status"]`},
		{"put missing required", http.MethodPut, "/api/notes/n1", `{"title":"x"}`},
		{"put unknown field", http.MethodPut, "/api/notes/n1", `{"title":"x","status":"OPEN","colour":"red"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(tc.method, tc.path, tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.NotEmpty(t, decodeBody(t, w)["error"])
		})
	}
	assert.Empty(t, f.audits.Entries())
}

func TestHandler_ConflictOnUniqueKey(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.gw.Seed(note{Base: Base{ID: "n1"}, Title: "Dup", Status: "OPEN"}))

	w := f.do(http.MethodPost, "/api/notes", `{"title":"dup","status":"OPEN"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, f.audits.Entries())
}

func TestHandler_ListPaginatesAndFilters(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, status := range []string{"OPEN", "CLOSED", "OPEN", "OPEN"} {
		require.NoError(t, f.gw.Seed(note{
			Base:   Base{ID: string(rune('a' + i)), CreatedAt: base.Add(time.Duration(i) * time.Hour)},
			Title:  "n",
			Status: status,
		}))
	}

	w := f.do(http.MethodGet, "/api/notes?status=OPEN&pageSize=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 3, body["total"])
	assert.EqualValues(t, 1, body["page"])
	assert.EqualValues(t, 2, body["pageSize"])
	items := body["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "d", items[0].(map[string]any)["id"])

	w = f.do(http.MethodGet, "/api/notes?page=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMemoryGateway_ListRangeAndAscendingOrder(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, f.gw.Seed(note{
			Base:   Base{ID: string(rune('a' + i)), CreatedAt: base.Add(time.Duration(i) * time.Hour)},
			Title:  "n",
			Status: "OPEN",
		}))
	}

	items, total, err := f.gw.List(context.Background(), Query{
		Range:     &Range{Field: "createdAt", From: base.Add(time.Hour), To: base.Add(4 * time.Hour)},
		Ascending: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 3)
	assert.Equal(t, "b", items[0].ID)
	assert.Equal(t, "d", items[2].ID)

	items, total, err = f.gw.List(context.Background(), Query{
		Range: &Range{Field: "createdAt", From: base.Add(3 * time.Hour)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "e", items[0].ID)

	_, total, err = f.gw.List(context.Background(), Query{Range: &Range{Field: "title", From: base}})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestMemoryGateway_AuditFailureRollsBackMutation(t *testing.T) {
	def := noteDefinition()
	gw := NewMemoryGateway(def, audit.NewService(nil), failingRepo{})
	require.NoError(t, gw.Seed(note{Base: Base{ID: "n1"}, Title: "Before", Status: "OPEN"}))
	ctx := context.Background()

	_, err := gw.Create(ctx, note{Title: "New", Status: "OPEN"})
	require.Error(t, err)
	_, total, err := gw.List(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, _, err = gw.Update(ctx, "n1", func(old note) (note, error) {
		old.Title = "After"
		return old, nil
	})
	require.Error(t, err)
	got, err := gw.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "Before", got.Title)

	_, err = gw.Delete(ctx, "n1")
	require.Error(t, err)
	_, err = gw.Get(ctx, "n1")
	assert.NoError(t, err)
}

func TestHandler_UnexpectedErrorIsGeneric500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	def := noteDefinition()
	gw := NewMemoryGateway(def, audit.NewService(nil), failingRepo{})

	r := gin.New()
	NewHandler(def, Gateway[note](gw)).Register(r.Group("/api"))

	req := httptest.NewRequest(http.MethodPost, "/api/notes", strings.NewReader(`{"title":"x","status":"OPEN"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}

func TestMergePatch(t *testing.T) {
	out, err := MergePatch([]byte(`{"a":1,"b":{"c":2,"d":3},"amount":1234567890.12}`), []byte(`{"b":{"c":null},"e":"x"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":{"d":3},"e":"x","amount":1234567890.12}`, string(out))
	assert.Contains(t, string(out), "1234567890.12")
}

func TestDefinition_CheckRejectsBadTable(t *testing.T) {
	def := noteDefinition()
	def.Table = "notes; DROP TABLE users"
	assert.Error(t, def.Check())
}
