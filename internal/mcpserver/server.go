// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the project and its preview as tools for LLM integration.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/jstcode/internal/workspace"
)

// Transports accepted by Serve.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
	TransportSSE   = "sse"
)

const conventionsURI = "jstcode://conventions"

// Server wraps the MCP server with project tools.
type Server struct {
	mcp *server.MCPServer
	ws  *workspace.Workspace
}

// New creates a new MCP server with all project tools registered.
func New(ws *workspace.Workspace, version string) *Server {
	s := &Server{ws: ws}

	s.mcp = server.NewMCPServer(
		"jstcode",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_files",
		mcp.WithDescription("List the file paths of the project, optionally below a folder."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listFiles)

	s.mcp.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read the full content of a project file."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Project path (e.g. src/App.tsx)")),
	), s.readFile)

	s.mcp.AddTool(mcp.NewTool("write_file",
		mcp.WithDescription("Create or overwrite a project file. Missing folders are created "+
			"and the preview rebuilds. Read the conventions first via the "+
			"get_project_conventions tool or the jstcode://conventions resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Project path of the file")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Full file content")),
	), s.writeFile)

	s.mcp.AddTool(mcp.NewTool("delete_path",
		mcp.WithDescription("Delete a file, or a folder with everything below it."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Project path to delete")),
	), s.deletePath)

	s.mcp.AddTool(mcp.NewTool("build_status",
		mcp.WithDescription("Report the preview build state and the last build's diagnostic, if it failed."),
	), s.buildStatus)

	s.mcp.AddTool(mcp.NewTool("preview_logs",
		mcp.WithDescription("List console output and runtime errors of the running preview, oldest first."),
		mcp.WithNumber("since", mcp.Description("Only records with a greater id")),
	), s.previewLogs)

	s.mcp.AddTool(mcp.NewTool("infer_dependencies",
		mcp.WithDescription("Infer the npm packages the project imports, with the versions the preview will load."),
	), s.inferDependencies)

	s.mcp.AddTool(mcp.NewTool("rewrite_preview",
		mcp.WithDescription("Show, as a unified diff, how a file is rewritten for the preview "+
			"(router, aliases and markup fixes)."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Project path of the file")),
		mcp.WithBoolean("markup", mcp.Description("Also apply the in-browser widget markup fixes")),
	), s.rewritePreview)

	s.mcp.AddTool(mcp.NewTool("get_project_conventions",
		mcp.WithDescription("Returns the project layout conventions the preview expects. "+
			"Call this before creating files."),
	), s.getProjectConventions)

	s.mcp.AddTool(mcp.NewTool("fetch_source",
		mcp.WithDescription("Fetch a text source file from an http(s) URL or a data: URI and "+
			"store it in the project."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data: URI")),
		mcp.WithString("path", mcp.Description("Project path to store the file at (default: name from the URL)")),
	), s.fetchSource)

	s.mcp.AddResource(
		mcp.NewResource(conventionsURI, "Project Conventions",
			mcp.WithResourceDescription("How a project must be laid out for the preview to build it."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readConventionsResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// Serve runs the MCP server on the given transport. addr is used by the
// http and sse transports.
func (s *Server) Serve(transport, addr string) error {
	switch transport {
	case TransportHTTP:
		return server.NewStreamableHTTPServer(s.mcp).Start(addr)
	case TransportSSE:
		return server.NewSSEServer(s.mcp).Start(addr)
	case TransportStdio, "":
		return s.ServeStdio()
	}
	return fmt.Errorf("mcpserver: unknown transport %q", transport)
}

// Handler returns the streamable HTTP transport for mounting into a router.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := strings.Trim(req.GetString("folder", ""), "/")

	var paths []string
	for _, p := range s.ws.Project().Paths() {
		if folder == "" || strings.HasPrefix(p, folder+"/") {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return mcp.NewToolResultText("no files"), nil
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) readFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.ws.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(n.Content), nil
}

func (s *Server) writeFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, created, err := s.ws.WriteFile(path, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if created {
		return mcp.NewToolResultText(fmt.Sprintf("created: %s", n.Path)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s", n.Path)), nil
}

func (s *Server) deletePath(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.ws.DeletePath(path); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", path)), nil
}

func (s *Server) buildStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.ws.BuildStatus(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) previewLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	since := req.GetFloat("since", 0)
	if since < 0 {
		since = 0
	}
	records := s.ws.Preview().Logs().Since(uint64(since))
	if len(records) == 0 {
		return mcp.NewToolResultText("no log records"), nil
	}
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, fmt.Sprintf("#%d [%s] %s", r.ID, r.Kind, r.Text))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) inferDependencies(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.ws.Dependencies(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) rewritePreview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	diff, err := s.ws.RewriteDiff(path, req.GetBool("markup", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if diff == "" {
		return mcp.NewToolResultText("unchanged"), nil
	}
	return mcp.NewToolResultText(diff), nil
}

func (s *Server) getProjectConventions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ProjectConventions), nil
}

func (s *Server) readConventionsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      conventionsURI,
			MIMEType: "text/markdown",
			Text:     ProjectConventions,
		},
	}, nil
}
