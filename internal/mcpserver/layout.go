package mcpserver

// LayoutURI is the resource describing how the notebook is stored.
const LayoutURI = "mdnotes://layout"

// LayoutGuide documents the on-disk layout for MCP clients.
const LayoutGuide = `# Notebook layout

The data directory holds one directory per project, named by the project id,
plus the shared image registry.

` + "```" + `
<data>/
  images.json                 # shared image registry (JSON array)
  <project-id>/
    metadata.json             # project document, see below
    <note-id>.md              # one Markdown body per note
` + "```" + `

## metadata.json

` + "```" + `json
{
  "id": "<project-id>",
  "name": "Research",
  "created_at": "2024-05-17T09:30:00.000000+00:00",
  "updated_at": "2024-05-17T09:30:00.000000+00:00",
  "notes": [
    {
      "id": "<note-id>",
      "title": "Reading list",
      "created_at": "...",
      "updated_at": "...",
      "hash": "<sha256 of the note body, lowercase hex>"
    }
  ],
  "images": []
}
` + "```" + `

## Rules

1. Use the tools to change notes. Every write stores the SHA-256 of the body
   in ` + "`hash`" + `; editing a body file directly makes ` + "`verify_note`" + ` report it
   as changed.
2. A new note starts with the body ` + "`# New Note\\nStart writing here...`" + `.
3. Bodies are plain Markdown in UTF-8. ` + "`#tags`" + ` and a first heading are picked
   up by search.
4. Images are shared by all projects. ` + "`upload_image`" + ` returns a ` + "`md`" + ` field,
   ready to paste into a body as ` + "`![](<url>)`" + `. Identical bytes are stored once.
`
