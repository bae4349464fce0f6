package notebook

// EventKind names a committed change to the notebook.
type EventKind string

// Event kinds emitted after the change is on disk.
const (
	ProjectCreated  EventKind = "project.created"
	ProjectDeleted  EventKind = "project.deleted"
	ProjectImported EventKind = "project.imported"
	NoteCreated     EventKind = "note.created"
	NoteUpdated     EventKind = "note.updated"
	NoteDeleted     EventKind = "note.deleted"
	NoteMoved       EventKind = "note.moved"
)

// Event describes a committed change. Body is set for note creation and updates.
type Event struct {
	Kind          EventKind
	ProjectID     string
	FromProjectID string
	NoteID        string
	Title         string
	Hash          string
	Body          string
}

// Observer receives events synchronously while the project lock is still
// held, so events for one project arrive in commit order. Observers must not
// call back into the Store.
type Observer func(Event)

func (s *Store) emit(ev Event) {
	for _, o := range s.observers {
		o(ev)
	}
}
