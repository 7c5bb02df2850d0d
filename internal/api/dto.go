package api

import (
	"github.com/starford/jstcode/internal/preview"
	"github.com/starford/jstcode/internal/project"
)

// FileNode is a file or folder of the project (aliased from the domain layer).
type FileNode = project.FileNode

// ProjectResponse is the project tree and session.
type ProjectResponse struct {
	Version      uint64       `json:"version" example:"12" validate:"required"`
	Nodes        []FileNode   `json:"nodes" validate:"required"`
	Root         []string     `json:"root" validate:"required"`
	ActiveFileID string       `json:"activeFileId,omitempty"`
	OpenTabs     []string     `json:"openTabs"`
	Size         project.Size `json:"size"`
	Type         string       `json:"type" example:"react-ts"`
}

func projectResponse(st *project.State) ProjectResponse {
	snap := st.Export()
	nodes := snap.Nodes
	for i := range nodes {
		nodes[i].Content = ""
	}
	if nodes == nil {
		nodes = []FileNode{}
	}
	root := snap.Root
	if root == nil {
		root = []string{}
	}
	tabs := snap.OpenTabs
	if tabs == nil {
		tabs = []string{}
	}
	return ProjectResponse{
		Version:      st.Version(),
		Nodes:        nodes,
		Root:         root,
		ActiveFileID: snap.ActiveFileID,
		OpenTabs:     tabs,
		Size:         st.Size(),
		Type:         project.DetectProjectType(st.Files()),
	}
}

// WriteFileRequest is the request body for writing a file.
type WriteFileRequest struct {
	Content string `json:"content" example:"export default function App() {}"`
}

// CreateFolderRequest is the request body for creating a folder.
type CreateFolderRequest struct {
	Path string `json:"path" example:"src/components" validate:"required"`
}

// RenameRequest is the request body for renaming a node.
type RenameRequest struct {
	Name string `json:"name" example:"Main.tsx" validate:"required"`
}

// ImportResponse is returned after a bulk import.
type ImportResponse struct {
	Files   int  `json:"files" example:"12" validate:"required"`
	Changed bool `json:"changed"`
}

// LogsResponse wraps preview log records.
type LogsResponse struct {
	Records []preview.Record `json:"records" validate:"required"`
	// Next is the id to pass as ?since= on the next poll.
	Next uint64 `json:"next" example:"42"`
}
