// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes vellum scene editing tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/vellum/internal/models"
	"github.com/starford/vellum/internal/parser"
	"github.com/starford/vellum/internal/sceneservice"
)

const sceneFormatURI = "vellum://scene-format"

// Server wraps the MCP server with vellum tools.
type Server struct {
	mcp *server.MCPServer
	svc *sceneservice.Service
}

// New creates a new MCP server with all vellum tools registered.
func New(svc *sceneservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Vellum",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	sceneID := mcp.WithString("scene_id", mcp.Required(), mcp.Description("Scene id as returned by list_scenes"))

	s.mcp.AddTool(mcp.NewTool("list_scenes",
		mcp.WithDescription("List scenes, most recently updated first."),
	), s.listScenes)

	s.mcp.AddTool(mcp.NewTool("search_scenes",
		mcp.WithDescription("Full-text search through scene names and text elements."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchScenes)

	s.mcp.AddTool(mcp.NewTool("get_scene",
		mcp.WithDescription("Read a scene with all of its elements, including soft-deleted ones."),
		sceneID,
	), s.getScene)

	s.mcp.AddTool(mcp.NewTool("create_scene",
		mcp.WithDescription("Create an empty scene. Optionally export it to the scenes directory in the given format."),
		mcp.WithString("name", mcp.Description("Human-readable scene name")),
		mcp.WithString("format", mcp.Description("Write a document in this format after creating"), mcp.Enum("json", "yaml")),
	), s.createScene)

	s.mcp.AddTool(mcp.NewTool("add_element",
		mcp.WithDescription("Add an element on top of a scene. Read the contract first via "+
			"the get_scene_contract tool or the vellum://scene-format resource."),
		sceneID,
		mcp.WithString("type", mcp.Required(), mcp.Description("Element type"),
			mcp.Enum("rectangle", "diamond", "ellipse", "arrow", "line", "text", "frame")),
		mcp.WithString("element_id", mcp.Description("Id for the new element; generated when empty")),
		mcp.WithNumber("x", mcp.Description("Left edge, or the first point for arrows and lines")),
		mcp.WithNumber("y", mcp.Description("Top edge, or the first point for arrows and lines")),
		mcp.WithNumber("width", mcp.Description("Width, or the horizontal extent of an arrow")),
		mcp.WithNumber("height", mcp.Description("Height, or the vertical extent of an arrow")),
		mcp.WithString("text", mcp.Description("Text content for text elements")),
		mcp.WithString("container_id", mcp.Description("Container to place a text element in")),
	), s.addElement)

	s.mcp.AddTool(mcp.NewTool("bind_arrow",
		mcp.WithDescription("Attach one end of an arrow to a bindable element. Both sides of the binding are updated."),
		sceneID,
		mcp.WithString("arrow_id", mcp.Required(), mcp.Description("Arrow element id")),
		mcp.WithString("target_id", mcp.Required(), mcp.Description("Element to attach to")),
		mcp.WithString("end", mcp.Required(), mcp.Description("Which end to attach"), mcp.Enum("start", "end")),
	), s.bindArrow)

	s.mcp.AddTool(mcp.NewTool("bind_label",
		mcp.WithDescription("Place a text element inside a container as its label. A previous label of the container is released."),
		sceneID,
		mcp.WithString("label_id", mcp.Required(), mcp.Description("Text element id")),
		mcp.WithString("container_id", mcp.Required(), mcp.Description("Rectangle, diamond, ellipse or arrow id")),
	), s.bindLabel)

	s.mcp.AddTool(mcp.NewTool("delete_element",
		mcp.WithDescription("Soft-delete an element and its label. Bindings that point at it are cleared."),
		sceneID,
		mcp.WithString("element_id", mcp.Required(), mcp.Description("Element to delete")),
	), s.deleteElement)

	s.mcp.AddTool(mcp.NewTool("move_element",
		mcp.WithDescription("Move an element by an offset. Its label follows."),
		sceneID,
		mcp.WithString("element_id", mcp.Required(), mcp.Description("Element to move")),
		mcp.WithNumber("dx", mcp.Description("Horizontal offset")),
		mcp.WithNumber("dy", mcp.Description("Vertical offset")),
	), s.moveElement)

	s.mcp.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Revert the latest visible change of a scene."),
		sceneID,
	), s.undo)

	s.mcp.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Reapply the latest undone change of a scene."),
		sceneID,
	), s.redo)

	s.mcp.AddTool(mcp.NewTool("validate_scene",
		mcp.WithDescription("List binding and ordering invariant violations of a scene."),
		sceneID,
	), s.validateScene)

	s.mcp.AddTool(mcp.NewTool("get_scene_contract",
		mcp.WithDescription("Returns the canonical vellum scene format contract. "+
			"Call this before building scenes to ensure correct structure."),
	), s.getSceneContract)

	// Resource: scene format contract.
	s.mcp.AddResource(
		mcp.NewResource(sceneFormatURI, "Scene Format Contract",
			mcp.WithResourceDescription("Scene document format and binding rules."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSceneFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// sceneResult renders the outcome of a scene operation.
func sceneResult(scene *sceneservice.SceneDetail, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(scene)
}

func (s *Server) listScenes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scenes, err := s.svc.ListScenes(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(scenes) == 0 {
		return mcp.NewToolResultText("no scenes found"), nil
	}
	return jsonResult(scenes)
}

func (s *Server) searchScenes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.SearchScenes(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) getScene(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("scene_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return sceneResult(s.svc.GetScene(ctx, id))
}

func (s *Server) createScene(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scene, err := s.svc.CreateScene(ctx, req.GetString("name", ""), nil, nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if f := req.GetString("format", ""); f != "" {
		format, err := parser.ParseFormat(f)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if _, err := s.svc.Export(ctx, scene.ID, format); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return sceneResult(s.svc.GetScene(ctx, scene.ID))
	}
	return jsonResult(scene)
}

func (s *Server) addElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("scene_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	el := models.NewElement(models.ElementType(typ))
	if elementID := req.GetString("element_id", ""); elementID != "" {
		el.ID = elementID
	}
	el.X, el.Y = req.GetFloat("x", 0), req.GetFloat("y", 0)
	el.Width, el.Height = req.GetFloat("width", 100), req.GetFloat("height", 60)
	switch {
	case el.Type.IsLinear():
		el.Points = []models.Point{{0, 0}, {el.Width, el.Height}}
	case el.Type == models.TypeText:
		el.Text = req.GetString("text", "")
		el.FontSize = 20
		if container := req.GetString("container_id", ""); container != "" {
			el.ContainerID = &container
		}
	}

	scene, err := s.svc.AddElement(ctx, id, el)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"elementId": el.ID, "scene": scene})
}

func (s *Server) bindArrow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requireStrings(req, "scene_id", "arrow_id", "target_id", "end")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return sceneResult(s.svc.BindArrow(ctx, args[0], args[1], args[2], args[3]))
}

func (s *Server) bindLabel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requireStrings(req, "scene_id", "label_id", "container_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return sceneResult(s.svc.BindLabel(ctx, args[0], args[1], args[2]))
}

func (s *Server) deleteElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requireStrings(req, "scene_id", "element_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return sceneResult(s.svc.DeleteElement(ctx, args[0], args[1]))
}

func (s *Server) moveElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requireStrings(req, "scene_id", "element_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dx, dy := req.GetFloat("dx", 0), req.GetFloat("dy", 0)
	return sceneResult(s.svc.MoveElement(ctx, args[0], args[1], dx, dy))
}

func (s *Server) undo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("scene_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return sceneResult(s.svc.Undo(ctx, id))
}

func (s *Server) redo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("scene_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return sceneResult(s.svc.Redo(ctx, id))
}

func (s *Server) validateScene(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("scene_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	report, err := s.svc.Validate(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(report)
}

func (s *Server) getSceneContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(SceneFormatContract), nil
}

func (s *Server) readSceneFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      sceneFormatURI,
			MIMEType: "text/markdown",
			Text:     SceneFormatContract,
		},
	}, nil
}

// requireStrings returns the named string arguments in order.
func requireStrings(req mcp.CallToolRequest, names ...string) ([]string, error) {
	out := make([]string, len(names))
	for i, name := range names {
		v, err := req.RequireString(name)
		if err != nil {
			return nil, err
		}
		if v == "" {
			return nil, fmt.Errorf("argument %q is empty", name)
		}
		out[i] = v
	}
	return out, nil
}
