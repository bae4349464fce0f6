package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lzhbhlrPython/Markdown-Note-System/internal/images"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/index"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/models"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/notebook"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/testutil"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

func testServer(t *testing.T) (*Server, *testutil.Env) {
	t.Helper()
	env := testutil.NewEnv(t)
	return New(env.Notebook, env.Images, env.Index, testutil.Logger()), env
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"list_projects":  srv.listProjects,
		"create_project": srv.createProject,
		"create_note":    srv.createNote,
		"read_note":      srv.readNote,
		"update_note":    srv.updateNote,
		"verify_note":    srv.verifyNote,
		"search_notes":   srv.searchNotes,
		"upload_image":   srv.uploadImage,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func decode[T any](t *testing.T, r *mcp.CallToolResult) T {
	t.Helper()
	if r.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(r))
	}
	var v T
	if err := json.Unmarshal([]byte(resultText(r)), &v); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
	return v
}

func createProject(t *testing.T, srv *Server, name string) models.Project {
	t.Helper()
	return decode[models.Project](t, callTool(t, srv, "create_project", map[string]any{"name": name}))
}

func TestCreateAndListProjects(t *testing.T) {
	srv, _ := testServer(t)
	p := createProject(t, srv, "Research")
	if p.Name != "Research" || p.ID == "" {
		t.Fatalf("project = %+v", p)
	}

	list := decode[[]models.Project](t, callTool(t, srv, "list_projects", nil))
	if len(list) != 1 || list[0].ID != p.ID {
		t.Errorf("list = %+v", list)
	}
}

func TestCreateProject_Validation(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_project", map[string]any{})
	if !r.IsError {
		t.Error("expected error for missing name")
	}
	r = callTool(t, srv, "create_project", map[string]any{"name": "   "})
	if !r.IsError {
		t.Error("expected error for blank name")
	}
}

func TestCreateNote_Placeholder(t *testing.T) {
	srv, _ := testServer(t)
	p := createProject(t, srv, "P")

	n := decode[noteResult](t, callTool(t, srv, "create_note", map[string]any{"project_id": p.ID}))
	if n.Title != notebook.DefaultNoteTitle {
		t.Errorf("title = %q, want %q", n.Title, notebook.DefaultNoteTitle)
	}
	if n.Content != notebook.PlaceholderBody {
		t.Errorf("content = %q, want placeholder", n.Content)
	}
}

func TestNoteLifecycle(t *testing.T) {
	srv, env := testServer(t)
	p := createProject(t, srv, "P")

	created := decode[noteResult](t, callTool(t, srv, "create_note", map[string]any{
		"project_id": p.ID,
		"title":      "Zoo",
		"content":    "# Zoo\n\nThe zebra is #striped.",
	}))

	read := decode[noteResult](t, callTool(t, srv, "read_note", map[string]any{
		"project_id": p.ID, "note_id": created.ID,
	}))
	if read.Content != "# Zoo\n\nThe zebra is #striped." || read.Title != "Zoo" {
		t.Errorf("read = %+v", read)
	}

	updated := decode[models.NoteMeta](t, callTool(t, srv, "update_note", map[string]any{
		"project_id": p.ID, "note_id": created.ID, "title": "Zoo 2", "content": "giraffes",
	}))
	if updated.Title != "Zoo 2" || updated.Hash == created.Hash {
		t.Errorf("updated = %+v", updated)
	}

	report := decode[models.HashReport](t, callTool(t, srv, "verify_note", map[string]any{
		"project_id": p.ID, "note_id": created.ID,
	}))
	if !report.Valid {
		t.Errorf("fresh note reported invalid: %+v", report)
	}

	path := filepath.Join(env.DataDir, p.ID, created.ID+notebook.NoteExt)
	if err := os.WriteFile(path, []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}
	report = decode[models.HashReport](t, callTool(t, srv, "verify_note", map[string]any{
		"project_id": p.ID, "note_id": created.ID,
	}))
	if report.Valid {
		t.Error("tampered note reported valid")
	}
}

func TestReadNote_NotFound(t *testing.T) {
	srv, _ := testServer(t)
	p := createProject(t, srv, "P")

	r := callTool(t, srv, "read_note", map[string]any{"project_id": p.ID, "note_id": "missing"})
	if !r.IsError || !strings.Contains(resultText(r), "not found") {
		t.Errorf("result = %q, want not found error", resultText(r))
	}
	r = callTool(t, srv, "read_note", map[string]any{"project_id": p.ID})
	if !r.IsError {
		t.Error("expected error for missing note_id")
	}
}

func TestUpdateNote_RequiresContent(t *testing.T) {
	srv, _ := testServer(t)
	p := createProject(t, srv, "P")
	n := decode[noteResult](t, callTool(t, srv, "create_note", map[string]any{"project_id": p.ID}))

	r := callTool(t, srv, "update_note", map[string]any{
		"project_id": p.ID, "note_id": n.ID, "title": "T", "content": "",
	})
	if !r.IsError {
		t.Error("expected validation error for empty content")
	}
}

func TestSearchNotes(t *testing.T) {
	srv, _ := testServer(t)
	p := createProject(t, srv, "P")
	callTool(t, srv, "create_note", map[string]any{
		"project_id": p.ID, "title": "Animals", "content": "the quick zebra",
	})

	hits := decode[[]index.Hit](t, callTool(t, srv, "search_notes", map[string]any{"query": "zebra"}))
	if len(hits) != 1 || hits[0].ProjectID != p.ID || hits[0].Title != "Animals" {
		t.Errorf("hits = %+v", hits)
	}

	r := callTool(t, srv, "search_notes", map[string]any{})
	if !r.IsError {
		t.Error("expected error for missing query")
	}
}

func TestUploadImage_DataURI(t *testing.T) {
	srv, env := testServer(t)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)

	first := decode[images.UploadResult](t, callTool(t, srv, "upload_image", map[string]any{"url": uri}))
	if first.Duplicate || !strings.HasSuffix(first.Image.Filename, ".png") {
		t.Errorf("first = %+v", first)
	}
	if first.Markdown != "![]("+first.URL+")" {
		t.Errorf("md = %q", first.Markdown)
	}

	second := decode[images.UploadResult](t, callTool(t, srv, "upload_image", map[string]any{
		"url": uri, "filename": "other.png",
	}))
	if !second.Duplicate || second.URL != first.URL {
		t.Errorf("second = %+v, want duplicate of %s", second, first.URL)
	}

	list, err := env.Images.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("registry has %d images, want 1", len(list))
	}
}

func TestUploadImage_Rejections(t *testing.T) {
	srv, _ := testServer(t)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"not base64", map[string]any{"url": "data:image/png,abc"}, "base64"},
		{"unknown mime", map[string]any{"url": "data:text/plain;base64,aGk="}, "unsupported MIME"},
		{"magic mismatch", map[string]any{"url": "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("GIF89a......"))}, "does not match"},
		{"bad extension", map[string]any{
			"url":      "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes),
			"filename": "notes.exe",
		}, "unsupported file extension"},
		{"scheme", map[string]any{"url": "ftp://example.com/a.png"}, "unsupported scheme"},
		{"loopback", map[string]any{"url": "http://127.0.0.1/a.png"}, "blocked host"},
		{"metadata", map[string]any{"url": "http://169.254.169.254/latest"}, "blocked host"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := callTool(t, srv, "upload_image", tc.args)
			if !r.IsError || !strings.Contains(resultText(r), tc.want) {
				t.Errorf("result = %q, want error containing %q", resultText(r), tc.want)
			}
		})
	}
}

func TestValidateMagicBytes_SVG(t *testing.T) {
	if err := validateMagicBytes([]byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"/>`), ".svg"); err != nil {
		t.Errorf("svg rejected: %v", err)
	}
	if err := validateMagicBytes([]byte("plain text"), ".svg"); err == nil {
		t.Error("expected error for non-svg content")
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename("../../etc/pass wd.png"); got != "pass_wd.png" {
		t.Errorf("got = %q, want %q", got, "pass_wd.png")
	}
}

func TestLayoutResource(t *testing.T) {
	srv, _ := testServer(t)
	contents, err := srv.readLayout(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("readLayout: %v", err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || !strings.Contains(tc.Text, notebook.MetadataFile) {
		t.Errorf("layout = %+v", contents)
	}
}
