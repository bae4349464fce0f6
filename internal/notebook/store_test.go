package notebook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lzhbhlrPython/Markdown-Note-System/internal/apperr"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/checksum"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/models"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/storage"
)

// fakeClock advances one second per call so ordering is deterministic.
type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

func newTestStore(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	clock := &fakeClock{cur: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(fs, opts...), dir
}

func TestCreateAndGetProject(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "  Research  ")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if p.Name != "Research" {
		t.Errorf("name = %q, want %q", p.Name, "Research")
	}
	if !p.CreatedAt.Equal(p.UpdatedAt) {
		t.Errorf("created_at %v != updated_at %v", p.CreatedAt, p.UpdatedAt)
	}
	if _, err := os.Stat(filepath.Join(dir, p.ID, MetadataFile)); err != nil {
		t.Fatalf("metadata file: %v", err)
	}

	got, err := s.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got.ID != p.ID || got.Name != p.Name || len(got.Notes) != 0 {
		t.Errorf("got %+v, want %+v", got, p)
	}
	if got.Images == nil {
		t.Error("images should be an empty list, not nil")
	}
}

func TestCreateProjectRequiresName(t *testing.T) {
	s, _ := newTestStore(t)
	for _, name := range []string{"", "   ", strings.Repeat("x", MaxNameLength+1)} {
		_, err := s.CreateProject(context.Background(), name)
		if !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("CreateProject(%q) err = %v, want validation error", name, err)
		}
	}
}

func TestGetProjectMissing(t *testing.T) {
	s, _ := newTestStore(t)
	for _, id := range []string{"does-not-exist", "", "..", "../etc", ".staging-x"} {
		if _, err := s.GetProject(context.Background(), id); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("GetProject(%q) err = %v, want ErrNotFound", id, err)
		}
	}
}

func TestListProjectsOrderAndSkips(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	first, _ := s.CreateProject(ctx, "first")
	second, _ := s.CreateProject(ctx, "second")

	// A bare directory and a corrupt project are not listed.
	if err := os.MkdirAll(filepath.Join(dir, "not-a-project"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "broken"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken", MetadataFile), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("order = [%s %s], want newest first", list[0].Name, list[1].Name)
	}
}

func TestListProjectsEmptyRoot(t *testing.T) {
	s, _ := newTestStore(t)
	list, err := s.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("list = %v, want empty", list)
	}
}

func TestDeleteProject(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()
	p, _ := s.CreateProject(ctx, "gone")
	_, _ = s.CreateNote(ctx, p.ID, "n")

	if err := s.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, p.ID)); !os.IsNotExist(err) {
		t.Errorf("project dir still exists: %v", err)
	}
	if err := s.DeleteProject(ctx, p.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestSaveMetadataRejectsMismatchedID(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	p, _ := s.CreateProject(ctx, "p")

	p.Name = "renamed"
	if err := s.SaveMetadata(ctx, p.ID, p); err != nil {
		t.Fatalf("SaveMetadata: %v", err)
	}
	got, _ := s.GetProject(ctx, p.ID)
	if got.Name != "renamed" {
		t.Errorf("name = %q, want renamed", got.Name)
	}

	if err := s.SaveMetadata(ctx, "other", p); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestCreateNotePlaceholder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	p, _ := s.CreateProject(ctx, "p")

	n, err := s.CreateNote(ctx, p.ID, "")
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if n.Title != DefaultNoteTitle {
		t.Errorf("title = %q, want %q", n.Title, DefaultNoteTitle)
	}
	if n.Hash != checksum.SumString(PlaceholderBody) {
		t.Errorf("hash = %q", n.Hash)
	}
	body, err := s.NoteBody(ctx, p.ID, n.ID)
	if err != nil {
		t.Fatalf("NoteBody: %v", err)
	}
	if body != PlaceholderBody {
		t.Errorf("body = %q, want placeholder", body)
	}

	got, _ := s.GetProject(ctx, p.ID)
	if !got.UpdatedAt.After(p.UpdatedAt) {
		t.Errorf("project updated_at not advanced: %v <= %v", got.UpdatedAt, p.UpdatedAt)
	}
}

func TestCreateNoteMissingProject(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.CreateNote(context.Background(), "nope", "t"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetProjectSortsNotesNewestFirst(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()
	p, _ := s.CreateProject(ctx, "p")
	a, _ := s.CreateNote(ctx, p.ID, "a")
	b, _ := s.CreateNote(ctx, p.ID, "b")

	got, _ := s.GetProject(ctx, p.ID)
	if got.Notes[0].ID != b.ID || got.Notes[1].ID != a.ID {
		t.Errorf("notes = [%s %s], want [b a]", got.Notes[0].Title, got.Notes[1].Title)
	}

	// The sort is a view; the file keeps insertion order.
	raw, _ := os.ReadFile(filepath.Join(dir, p.ID, MetadataFile))
	if bytes.Index(raw, []byte(a.ID)) > bytes.Index(raw, []byte(b.ID)) {
		t.Error("metadata file was reordered")
	}
}

func TestUpdateNoteAndVerify(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	p, _ := s.CreateProject(ctx, "p")
	n, _ := s.CreateNote(ctx, p.ID, "draft")

	updated, err := s.UpdateNote(ctx, p.ID, n.ID, "final", "# Final\nbody")
	if err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	if updated.Title != "final" || updated.Hash != checksum.SumString("# Final\nbody") {
		t.Errorf("updated = %+v", updated)
	}
	if !updated.UpdatedAt.After(n.UpdatedAt) {
		t.Error("note updated_at not advanced")
	}

	r, err := s.VerifyNote(ctx, p.ID, n.ID)
	if err != nil {
		t.Fatalf("VerifyNote: %v", err)
	}
	if !r.Valid || r.StoredHash != r.CurrentHash {
		t.Errorf("report = %+v, want valid", r)
	}
}

func TestUpdateNoteValidation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	p, _ := s.CreateProject(ctx, "p")
	n, _ := s.CreateNote(ctx, p.ID, "t")

	cases := []struct{ title, content string }{
		{"", "body"},
		{"title", ""},
		{"", ""},
	}
	for _, c := range cases {
		_, err := s.UpdateNote(ctx, p.ID, n.ID, c.title, c.content)
		if !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("UpdateNote(%q, %q) err = %v, want validation", c.title, c.content, err)
		}
	}
	if _, err := s.UpdateNote(ctx, p.ID, "missing", "t", "c"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing note err = %v, want ErrNotFound", err)
	}
}

func TestVerifyDetectsExternalEdit(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()
	p, _ := s.CreateProject(ctx, "p")
	n, _ := s.CreateNote(ctx, p.ID, "t")

	path := filepath.Join(dir, p.ID, n.ID+NoteExt)
	if err := os.WriteFile(path, []byte("edited outside"), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := s.VerifyNote(ctx, p.ID, n.ID)
	if err != nil {
		t.Fatalf("VerifyNote: %v", err)
	}
	if r.Valid {
		t.Error("expected mismatch")
	}
	if r.CurrentHash != checksum.SumString("edited outside") {
		t.Errorf("current hash = %q", r.CurrentHash)
	}

	// Verification never rewrites metadata.
	got, _ := s.GetProject(ctx, p.ID)
	if got.Notes[0].Hash != n.Hash {
		t.Error("stored hash changed by verify")
	}
}

func TestVerifyMissingBody(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()
	p, _ := s.CreateProject(ctx, "p")
	n, _ := s.CreateNote(ctx, p.ID, "t")
	_ = os.Remove(filepath.Join(dir, p.ID, n.ID+NoteExt))

	if _, err := s.VerifyNote(ctx, p.ID, n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("VerifyNote err = %v, want ErrNotFound", err)
	}
	reports, err := s.VerifyProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("VerifyProject: %v", err)
	}
	if len(reports) != 1 || !reports[0].Missing || reports[0].Valid {
		t.Errorf("reports = %+v", reports)
	}
}

func TestDeleteNoteToleratesMissingBody(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()
	p, _ := s.CreateProject(ctx, "p")
	n, _ := s.CreateNote(ctx, p.ID, "t")
	_ = os.Remove(filepath.Join(dir, p.ID, n.ID+NoteExt))

	if err := s.DeleteNote(ctx, p.ID, n.ID); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	got, _ := s.GetProject(ctx, p.ID)
	if len(got.Notes) != 0 {
		t.Errorf("notes = %v, want empty", got.Notes)
	}
	if err := s.DeleteNote(ctx, p.ID, n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestNoteBodyReadsFileRegardlessOfMetadata(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()
	p, _ := s.CreateProject(ctx, "p")

	if err := os.WriteFile(filepath.Join(dir, p.ID, "orphan.md"), []byte("orphan"), 0o644); err != nil {
		t.Fatal(err)
	}
	body, err := s.NoteBody(ctx, p.ID, "orphan")
	if err != nil {
		t.Fatalf("NoteBody: %v", err)
	}
	if body != "orphan" {
		t.Errorf("body = %q", body)
	}
	if _, err := s.NoteBody(ctx, p.ID, "absent"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMoveNote(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()
	src, _ := s.CreateProject(ctx, "src")
	dst, _ := s.CreateProject(ctx, "dst")
	n, _ := s.CreateNote(ctx, src.ID, "traveller")
	_, _ = s.UpdateNote(ctx, src.ID, n.ID, "traveller", "payload")

	if err := s.MoveNote(ctx, src.ID, dst.ID, n.ID); err != nil {
		t.Fatalf("MoveNote: %v", err)
	}

	gotSrc, _ := s.GetProject(ctx, src.ID)
	gotDst, _ := s.GetProject(ctx, dst.ID)
	if len(gotSrc.Notes) != 0 {
		t.Errorf("source still lists %d notes", len(gotSrc.Notes))
	}
	if len(gotDst.Notes) != 1 || gotDst.Notes[0].ID != n.ID {
		t.Fatalf("target notes = %+v", gotDst.Notes)
	}
	if _, err := os.Stat(filepath.Join(dir, src.ID, n.ID+NoteExt)); !os.IsNotExist(err) {
		t.Error("body still in source dir")
	}
	body, err := s.NoteBody(ctx, dst.ID, n.ID)
	if err != nil || body != "payload" {
		t.Errorf("target body = %q, %v", body, err)
	}
	r, err := s.VerifyNote(ctx, dst.ID, n.ID)
	if err != nil || !r.Valid {
		t.Errorf("verify after move = %+v, %v", r, err)
	}
}

func TestMoveNoteErrors(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()
	src, _ := s.CreateProject(ctx, "src")
	dst, _ := s.CreateProject(ctx, "dst")
	n, _ := s.CreateNote(ctx, src.ID, "t")

	if err := s.MoveNote(ctx, src.ID, src.ID, n.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("same project err = %v, want validation", err)
	}
	if err := s.MoveNote(ctx, src.ID, "nope", n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing target err = %v, want ErrNotFound", err)
	}
	if err := s.MoveNote(ctx, src.ID, dst.ID, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing note err = %v, want ErrNotFound", err)
	}

	_ = os.Remove(filepath.Join(dir, src.ID, n.ID+NoteExt))
	if err := s.MoveNote(ctx, src.ID, dst.ID, n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing body err = %v, want ErrNotFound", err)
	}
	got, _ := s.GetProject(ctx, src.ID)
	if len(got.Notes) != 1 {
		t.Error("failed move must not touch source metadata")
	}
}

func TestConcurrentCreateNoteKeepsEveryEntry(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	p, _ := s.CreateProject(ctx, "busy")

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.CreateNote(ctx, p.ID, fmt.Sprintf("note-%d", i)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("CreateNote: %v", err)
	}

	got, _ := s.GetProject(ctx, p.ID)
	if len(got.Notes) != n {
		t.Errorf("notes = %d, want %d", len(got.Notes), n)
	}
	if size := s.locks.size(); size != 0 {
		t.Errorf("lock table holds %d idle entries", size)
	}
}

func TestCorruptMetadata(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()
	p, _ := s.CreateProject(ctx, "p")

	cases := []string{
		`not json`,
		`{"id":"` + p.ID + `","name":"p","created_at":"later","updated_at":"2024-01-01T00:00:00","notes":[]}`,
		`{"id":"` + p.ID + `","name":"p","created_at":"2024-01-01T00:00:00","updated_at":"2024-01-01T00:00:00"}`,
		`{"id":"` + p.ID + `","name":"p","created_at":"2024-01-01T00:00:00","updated_at":"2024-01-01T00:00:00",` +
			`"notes":[{"id":"../escape","title":"x","created_at":"2024-01-01T00:00:00","updated_at":"2024-01-01T00:00:00","hash":"` +
			checksum.SumString("x") + `"}]}`,
		`{"id":"someone-else","name":"p","created_at":"2024-01-01T00:00:00","updated_at":"2024-01-01T00:00:00","notes":[]}`,
	}
	for i, doc := range cases {
		if err := os.WriteFile(filepath.Join(dir, p.ID, MetadataFile), []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := s.GetProject(ctx, p.ID); !errors.Is(err, apperr.ErrCorrupt) {
			t.Errorf("case %d: err = %v, want ErrCorrupt", i, err)
		}
	}
}

func TestLegacyMetadataLoads(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()
	id := "3f1c2a9e-0000-4000-8000-000000000001"
	hash := checksum.SumString("hello")
	doc := `{
  "id": "` + id + `",
  "name": "旧项目",
  "created_at": "2023-05-01T10:11:12.131415",
  "updated_at": "2023-05-02T10:11:12.131415",
  "notes": [{"id": "n1", "title": "hello", "created_at": "2023-05-01T10:11:12.131415", "updated_at": "2023-05-01T10:11:12.131415", "hash": "` + hash + `"}],
  "images": []
}`
	if err := os.MkdirAll(filepath.Join(dir, id), 0o755); err != nil {
		t.Fatal(err)
	}
	_ = os.WriteFile(filepath.Join(dir, id, MetadataFile), []byte(doc), 0o644)
	_ = os.WriteFile(filepath.Join(dir, id, "n1.md"), []byte("hello"), 0o644)

	p, err := s.GetProject(ctx, id)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if p.Name != "旧项目" || len(p.Notes) != 1 {
		t.Errorf("project = %+v", p)
	}
	r, err := s.VerifyNote(ctx, id, "n1")
	if err != nil || !r.Valid {
		t.Errorf("verify = %+v, %v", r, err)
	}

	// Re-saving keeps non-ASCII names readable.
	if _, err := s.CreateNote(ctx, id, "second"); err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	raw, _ := os.ReadFile(filepath.Join(dir, id, MetadataFile))
	if !bytes.Contains(raw, []byte("旧项目")) {
		t.Errorf("name was escaped: %s", raw)
	}
}

func TestObserverReceivesEvents(t *testing.T) {
	var got []EventKind
	s, _ := newTestStore(t, WithObserver(func(ev Event) { got = append(got, ev.Kind) }))
	ctx := context.Background()

	a, _ := s.CreateProject(ctx, "a")
	b, _ := s.CreateProject(ctx, "b")
	n, _ := s.CreateNote(ctx, a.ID, "n")
	_, _ = s.UpdateNote(ctx, a.ID, n.ID, "n", "x")
	_ = s.MoveNote(ctx, a.ID, b.ID, n.ID)
	_ = s.DeleteNote(ctx, b.ID, n.ID)
	_ = s.DeleteProject(ctx, a.ID)
	_, _ = s.UpdateNote(ctx, b.ID, "missing", "t", "c")

	want := []EventKind{ProjectCreated, ProjectCreated, NoteCreated, NoteUpdated, NoteMoved, NoteDeleted, ProjectDeleted}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestNoteFile(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	p, _ := s.CreateProject(ctx, "p")
	n, _ := s.CreateNote(ctx, p.ID, "a/b: plan")

	name, body, err := s.NoteFile(ctx, p.ID, n.ID)
	if err != nil {
		t.Fatalf("NoteFile: %v", err)
	}
	if name != "a_b: plan.md" {
		t.Errorf("filename = %q", name)
	}
	if body != PlaceholderBody {
		t.Errorf("body = %q", body)
	}
}

func TestCreateProjectImagesIsEmptyList(t *testing.T) {
	s, _ := newTestStore(t)
	p, err := s.CreateProject(context.Background(), "p")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"images":[]`) {
		t.Errorf("created project = %s, want \"images\":[]", data)
	}
}

func TestSaveMetadataRejectsUnloadableProject(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	p, _ := s.CreateProject(ctx, "keep")
	n, _ := s.CreateNote(ctx, p.ID, "n")

	tests := []struct {
		name   string
		mutate func(p *models.Project)
	}{
		{"blank name", func(p *models.Project) { p.Name = "" }},
		{"unsafe note id", func(p *models.Project) { p.Notes[0].ID = "../escape" }},
		{"bad hash", func(p *models.Project) { p.Notes[0].Hash = "not-a-digest" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bad, err := s.GetProject(ctx, p.ID)
			if err != nil {
				t.Fatalf("GetProject: %v", err)
			}
			tc.mutate(bad)
			if err := s.SaveMetadata(ctx, p.ID, bad); !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("SaveMetadata err = %v, want validation error", err)
			}

			got, err := s.GetProject(ctx, p.ID)
			if err != nil {
				t.Fatalf("GetProject after rejected save: %v", err)
			}
			if got.Name != "keep" || len(got.Notes) != 1 || got.Notes[0].ID != n.ID {
				t.Errorf("metadata changed: %+v", got)
			}
			list, _ := s.ListProjects(ctx)
			if len(list) != 1 {
				t.Errorf("ListProjects len = %d, want 1", len(list))
			}
		})
	}
}

func TestSaveMetadataRequiresExistingProject(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()
	p, _ := s.CreateProject(ctx, "p")

	ghost := *p
	ghost.ID = "ghost"
	if err := s.SaveMetadata(ctx, "ghost", &ghost); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "ghost")); !os.IsNotExist(err) {
		t.Errorf("ghost project dir created: %v", err)
	}
}

func TestFileInRootIsNotAProject(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()
	if err := os.WriteFile(filepath.Join(dir, "images.json"), []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	const id = "images.json"

	if _, err := s.GetProject(ctx, id); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetProject err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteProject(ctx, id); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("DeleteProject err = %v, want ErrNotFound", err)
	}
	if _, err := s.CreateNote(ctx, id, "n"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("CreateNote err = %v, want ErrNotFound", err)
	}
	if _, err := s.VerifyProject(ctx, id); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("VerifyProject err = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "images.json")); err != nil {
		t.Errorf("images.json touched: %v", err)
	}
}

// failingMetadata fails metadata writes once armed.
type failingMetadata struct {
	storage.Provider
	armed bool
}

func (f *failingMetadata) Write(path string, content []byte) error {
	if f.armed && strings.HasSuffix(path, MetadataFile) {
		return errors.New("disk full")
	}
	return f.Provider.Write(path, content)
}

func TestDeleteNoteLogsBodyRemovedWithoutMetadata(t *testing.T) {
	fsys, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	provider := &failingMetadata{Provider: fsys}
	var logs bytes.Buffer
	s := New(provider, WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))))
	ctx := context.Background()

	p, _ := s.CreateProject(ctx, "p")
	n, _ := s.CreateNote(ctx, p.ID, "n")
	provider.armed = true

	if err := s.DeleteNote(ctx, p.ID, n.ID); err == nil {
		t.Fatal("DeleteNote should fail when metadata cannot be written")
	}
	out := logs.String()
	if !strings.Contains(out, "note body deleted but metadata still lists it") ||
		!strings.Contains(out, p.ID) || !strings.Contains(out, n.ID) {
		t.Errorf("missing partial-delete log, got: %s", out)
	}
}
