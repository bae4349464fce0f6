// Package mcpserver exposes the notebook to LLM clients over the Model
// Context Protocol (stdio transport).
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lzhbhlrPython/Markdown-Note-System/internal/apperr"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/images"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/index"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/models"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/notebook"
)

// Version is reported to MCP clients.
const Version = "1.0.0"

// Server wraps the MCP server with notebook tools.
type Server struct {
	mcp     *server.MCPServer
	nb      *notebook.Store
	images  *images.Library
	search  index.Searcher
	fetcher *fetcher
	logger  *slog.Logger
}

// New creates an MCP server with every tool and resource registered.
func New(nb *notebook.Store, lib *images.Library, search index.Searcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{nb: nb, images: lib, search: search, fetcher: newFetcher(), logger: logger}

	s.mcp = server.NewMCPServer(
		"mdnotes",
		Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List all projects, newest first, with their note entries."),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("create_project",
		mcp.WithDescription("Create an empty project."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Display name, 1-200 characters")),
	), s.createProject)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note in a project. Without content the note gets the placeholder body."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Target project id")),
		mcp.WithString("title", mcp.Description("Note title (defaults to Untitled)")),
		mcp.WithString("content", mcp.Description("Optional Markdown body")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note's metadata and Markdown body."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project id")),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Replace a note's title and body. Both are required."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project id")),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("title", mcp.Required(), mcp.Description("New title")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New Markdown body")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("verify_note",
		mcp.WithDescription("Check whether a note body still matches the hash stored at its last write."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project id")),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("Note id")),
	), s.verifyNote)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search over note titles, bodies and #tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("upload_image",
		mcp.WithDescription("Add an image to the shared library from a base64 data URI or an http(s) URL. "+
			"Returns the image URL and a Markdown snippet."),
		mcp.WithString("url", mcp.Required(), mcp.Description("data:image/...;base64,... or http(s) URL")),
		mcp.WithString("filename", mcp.Description("Optional file name; only its extension is kept")),
	), s.uploadImage)

	s.mcp.AddResource(
		mcp.NewResource(LayoutURI, "Notebook layout",
			mcp.WithResourceDescription("How projects, notes and images are stored on disk."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLayout,
	)

	return s
}

// ServeStdio runs the server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}

// fail turns a store error into a tool error result.
func (s *Server) fail(op string, err error) *mcp.CallToolResult {
	var ve *apperr.ValidationError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(op + ": not found")
	case errors.As(err, &ve):
		return mcp.NewToolResultError(op + ": " + ve.Reason)
	default:
		s.logger.Error("mcp tool failed", slog.String("tool", op), slog.String("error", err.Error()))
		return mcp.NewToolResultError(op + " failed: " + err.Error())
	}
}

func (s *Server) listProjects(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.nb.ListProjects(ctx)
	if err != nil {
		return s.fail("list_projects", err), nil
	}
	return jsonResult(projects)
}

func (s *Server) createProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.nb.CreateProject(ctx, name)
	if err != nil {
		return s.fail("create_project", err), nil
	}
	return jsonResult(p)
}

type noteResult struct {
	ProjectID string `json:"project_id"`
	models.NoteMeta
	Content string `json:"content"`
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := req.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title := req.GetString("title", "")
	content := req.GetString("content", "")

	note, err := s.nb.CreateNote(ctx, projectID, title)
	if err != nil {
		return s.fail("create_note", err), nil
	}
	body := notebook.PlaceholderBody
	if content != "" {
		if note, err = s.nb.UpdateNote(ctx, projectID, note.ID, note.Title, content); err != nil {
			return s.fail("create_note", err), nil
		}
		body = content
	}
	return jsonResult(noteResult{ProjectID: projectID, NoteMeta: *note, Content: body})
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, noteID, errResult := noteArgs(req)
	if errResult != nil {
		return errResult, nil
	}
	p, err := s.nb.GetProject(ctx, projectID)
	if err != nil {
		return s.fail("read_note", err), nil
	}
	meta, ok := p.Note(noteID)
	if !ok {
		return s.fail("read_note", apperr.ErrNotFound), nil
	}
	body, err := s.nb.NoteBody(ctx, projectID, noteID)
	if err != nil {
		return s.fail("read_note", err), nil
	}
	return jsonResult(noteResult{ProjectID: projectID, NoteMeta: *meta, Content: body})
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, noteID, errResult := noteArgs(req)
	if errResult != nil {
		return errResult, nil
	}
	note, err := s.nb.UpdateNote(ctx, projectID, noteID, req.GetString("title", ""), req.GetString("content", ""))
	if err != nil {
		return s.fail("update_note", err), nil
	}
	return jsonResult(note)
}

func (s *Server) verifyNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, noteID, errResult := noteArgs(req)
	if errResult != nil {
		return errResult, nil
	}
	report, err := s.nb.VerifyNote(ctx, projectID, noteID)
	if err != nil {
		return s.fail("verify_note", err), nil
	}
	return jsonResult(report)
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.search.Search(ctx, query, req.GetInt("limit", index.DefaultSearchLimit))
	if err != nil {
		return s.fail("search_notes", err), nil
	}
	return jsonResult(hits)
}

func (s *Server) readLayout(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      LayoutURI,
			MIMEType: "text/markdown",
			Text:     LayoutGuide,
		},
	}, nil
}

func noteArgs(req mcp.CallToolRequest) (string, string, *mcp.CallToolResult) {
	projectID, err := req.RequireString("project_id")
	if err != nil {
		return "", "", mcp.NewToolResultError(err.Error())
	}
	noteID, err := req.RequireString("note_id")
	if err != nil {
		return "", "", mcp.NewToolResultError(err.Error())
	}
	return projectID, noteID, nil
}
