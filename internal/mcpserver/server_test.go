package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/vellum/internal/sceneservice"
	"github.com/starford/vellum/internal/testutil"
)

func testServer(t *testing.T) (*Server, *sceneservice.Service) {
	t.Helper()
	_, store := testutil.TestSceneDir(t)
	svc := sceneservice.NewService(store, testutil.TestDB(t),
		sceneservice.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return New(svc), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are invoked directly.
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"list_scenes":        srv.listScenes,
		"search_scenes":      srv.searchScenes,
		"get_scene":          srv.getScene,
		"create_scene":       srv.createScene,
		"add_element":        srv.addElement,
		"bind_arrow":         srv.bindArrow,
		"bind_label":         srv.bindLabel,
		"delete_element":     srv.deleteElement,
		"move_element":       srv.moveElement,
		"undo":               srv.undo,
		"redo":               srv.redo,
		"validate_scene":     srv.validateScene,
		"get_scene_contract": srv.getSceneContract,
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

func decodeScene(t *testing.T, r *mcp.CallToolResult) sceneservice.SceneDetail {
	t.Helper()
	if r.IsError {
		t.Fatalf("tool failed: %s", resultText(r))
	}
	var scene sceneservice.SceneDetail
	if err := json.Unmarshal([]byte(resultText(r)), &scene); err != nil {
		t.Fatalf("decode scene: %v\n%s", err, resultText(r))
	}
	return scene
}

func newScene(t *testing.T, srv *Server) string {
	t.Helper()
	return decodeScene(t, callTool(t, srv, "create_scene", map[string]interface{}{"name": "tools"})).ID
}

func TestListScenesEmpty(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "list_scenes", map[string]interface{}{})
	if text := resultText(r); text != "no scenes found" {
		t.Errorf("list result = %q", text)
	}
}

func TestCreateSceneWithFormat(t *testing.T) {
	srv, _ := testServer(t)
	scene := decodeScene(t, callTool(t, srv, "create_scene", map[string]interface{}{
		"name":   "Exported",
		"format": "yaml",
	}))
	if scene.Path != "exported.scene.yaml" {
		t.Errorf("path = %q, want exported.scene.yaml", scene.Path)
	}
}

func TestBuildLabelledDiagram(t *testing.T) {
	srv, svc := testServer(t)
	id := newScene(t, srv)

	for _, args := range []map[string]interface{}{
		{"scene_id": id, "type": "rectangle", "element_id": "a", "x": 0.0, "y": 0.0, "width": 100.0, "height": 40.0},
		{"scene_id": id, "type": "rectangle", "element_id": "b", "x": 300.0, "y": 0.0, "width": 100.0, "height": 40.0},
		{"scene_id": id, "type": "arrow", "element_id": "link", "x": 100.0, "y": 20.0, "width": 200.0, "height": 0.0},
		{"scene_id": id, "type": "text", "element_id": "lbl", "text": "A", "width": 20.0, "height": 10.0},
	} {
		if r := callTool(t, srv, "add_element", args); r.IsError {
			t.Fatalf("add_element %v: %s", args["element_id"], resultText(r))
		}
	}

	decodeScene(t, callTool(t, srv, "bind_arrow", map[string]interface{}{
		"scene_id": id, "arrow_id": "link", "target_id": "a", "end": "start",
	}))
	decodeScene(t, callTool(t, srv, "bind_arrow", map[string]interface{}{
		"scene_id": id, "arrow_id": "link", "target_id": "b", "end": "end",
	}))
	scene := decodeScene(t, callTool(t, srv, "bind_label", map[string]interface{}{
		"scene_id": id, "label_id": "lbl", "container_id": "a",
	}))
	for _, el := range scene.Elements {
		if el.ID == "lbl" && (el.X != 40 || el.Y != 15) {
			t.Errorf("label at (%v, %v), want centered at (40, 15)", el.X, el.Y)
		}
	}

	r := callTool(t, srv, "validate_scene", map[string]interface{}{"scene_id": id})
	var report sceneservice.ValidationReport
	_ = json.Unmarshal([]byte(resultText(r)), &report)
	if !report.Valid {
		t.Errorf("violations = %v", report.Violations)
	}

	info, err := svc.History(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if info.Undo != 7 {
		t.Errorf("undo entries = %d, want one per edit", info.Undo)
	}
}

func TestMoveDeleteUndo(t *testing.T) {
	srv, _ := testServer(t)
	id := newScene(t, srv)
	callTool(t, srv, "add_element", map[string]interface{}{"scene_id": id, "type": "ellipse", "element_id": "e"})

	scene := decodeScene(t, callTool(t, srv, "move_element", map[string]interface{}{
		"scene_id": id, "element_id": "e", "dx": 10.0, "dy": -5.0,
	}))
	if el := scene.Elements[0]; el.X != 10 || el.Y != -5 {
		t.Errorf("moved to (%v, %v)", el.X, el.Y)
	}

	scene = decodeScene(t, callTool(t, srv, "delete_element", map[string]interface{}{"scene_id": id, "element_id": "e"}))
	if !scene.Elements[0].IsDeleted {
		t.Error("element not soft-deleted")
	}

	scene = decodeScene(t, callTool(t, srv, "undo", map[string]interface{}{"scene_id": id}))
	if scene.Elements[0].IsDeleted {
		t.Error("undo did not restore the element")
	}
	scene = decodeScene(t, callTool(t, srv, "redo", map[string]interface{}{"scene_id": id}))
	if !scene.Elements[0].IsDeleted {
		t.Error("redo did not delete the element again")
	}
}

func TestToolErrors(t *testing.T) {
	srv, _ := testServer(t)
	id := newScene(t, srv)

	cases := []struct {
		tool string
		args map[string]interface{}
	}{
		{"get_scene", map[string]interface{}{"scene_id": "missing"}},
		{"get_scene", map[string]interface{}{}},
		{"add_element", map[string]interface{}{"scene_id": id, "type": "hexagon"}},
		{"bind_arrow", map[string]interface{}{"scene_id": id, "arrow_id": "nope", "target_id": "x", "end": "start"}},
		{"bind_arrow", map[string]interface{}{"scene_id": id, "arrow_id": "", "target_id": "x", "end": "start"}},
		{"undo", map[string]interface{}{"scene_id": id}},
	}
	for _, tc := range cases {
		if r := callTool(t, srv, tc.tool, tc.args); !r.IsError {
			t.Errorf("%s %v: expected error, got %s", tc.tool, tc.args, resultText(r))
		}
	}
}

func TestSearchScenes(t *testing.T) {
	srv, _ := testServer(t)
	id := newScene(t, srv)
	callTool(t, srv, "add_element", map[string]interface{}{"scene_id": id, "type": "text", "text": "checkout"})

	r := callTool(t, srv, "search_scenes", map[string]interface{}{"query": "checkout"})
	if r.IsError || !strings.Contains(resultText(r), id) {
		t.Errorf("search result = %s", resultText(r))
	}
	if r := callTool(t, srv, "search_scenes", map[string]interface{}{"query": " "}); !r.IsError {
		t.Error("blank query should fail")
	}
}

func TestSceneContract(t *testing.T) {
	srv, _ := testServer(t)
	text := resultText(callTool(t, srv, "get_scene_contract", map[string]interface{}{}))
	if !strings.Contains(text, "Bindings are two-sided") {
		t.Error("contract missing binding rules")
	}

	contents, err := srv.readSceneFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != sceneFormatURI {
		t.Errorf("resource contents = %+v", contents[0])
	}
}
