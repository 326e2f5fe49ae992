package mcpserver

// SceneFormatContract describes the scene document format and the editing
// rules that LLM consumers should follow when building or changing scenes.
const SceneFormatContract = `# Vellum Scene Format Contract

A scene is an ordered list of drawable elements plus view state. Scene
documents live in the scenes directory as ` + "`" + `*.scene.json` + "`" + ` or
` + "`" + `*.scene.yaml` + "`" + ` files and are imported automatically.

## Document

` + "```" + `yaml
type: vellum                # REQUIRED - identifies the document
version: 1                  # OPTIONAL - document version, currently 1
name: Architecture          # OPTIONAL - defaults to the file name
elements:                   # REQUIRED - back to front
  - id: api
    type: rectangle
    x: 0
    y: 0
    width: 160
    height: 60
    boundElements: [{id: api-label, type: text}, {id: call, type: arrow}]
  - id: api-label
    type: text
    text: API
    containerId: api
  - id: call
    type: arrow
    x: 160
    y: 30
    points: [[0, 0], [120, 0]]
    startBinding: {elementId: api, focus: 0, gap: 4}
appState:                   # OPTIONAL - selection and view settings
  viewBackgroundColor: "#ffffff"
` + "```" + `

## Rules

1. **Ids** are unique, non-empty strings of at most 128 characters.
2. **Types** are one of rectangle, diamond, ellipse, arrow, line, text,
   frame, magicframe, image, embeddable, freedraw.
3. **Order** is the list order. Each element may carry an ` + "`" + `index` + "`" + `
   (fractional order key); missing or out-of-order keys are repaired on import.
4. **Bindings are two-sided.** An arrow's ` + "`" + `startBinding` + "`" + ` or
   ` + "`" + `endBinding` + "`" + ` must be mirrored by an ` + "`" + `{type: arrow}` + "`" + ` entry in the
   target's ` + "`" + `boundElements` + "`" + `. A label's ` + "`" + `containerId` + "`" + ` must be
   mirrored by a ` + "`" + `{type: text}` + "`" + ` entry in the container.
5. **One label per container.** Only rectangles, diamonds, ellipses and arrows
   hold labels.
6. **Both ends of a two-point arrow** may not bind to the same element.
7. **Deletion is soft.** Deleted elements keep ` + "`" + `isDeleted: true` + "`" + ` so
   that undo can bring them back; exported documents contain live elements only.

## Editing with tools

Prefer the editing tools (` + "`" + `add_element` + "`" + `, ` + "`" + `bind_arrow` + "`" + `,
` + "`" + `bind_label` + "`" + `, ` + "`" + `move_element` + "`" + `, ` + "`" + `delete_element` + "`" + `) over
writing documents by hand. They keep both sides of every binding in step,
re-center labels and record one undo entry per call. Use ` + "`" + `validate_scene` + "`" + `
to list remaining violations.
`
