// Package project holds the in-memory project: a tree of files and folders
// addressed by id and by path, plus the editor session (open tabs, active file).
package project

import (
	"path"
	"slices"
	"strings"
)

// Kind distinguishes files from folders.
type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// FileNode is one entry of the tree. Files carry Content, folders carry
// Children (ordered ids). ParentID is an index only: the parent's Children
// list is the owning edge and the store keeps the two in agreement.
type FileNode struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Kind     Kind     `json:"kind"`
	Path     string   `json:"path"`
	ParentID string   `json:"parentId,omitempty"`
	Content  string   `json:"content,omitempty"`
	Children []string `json:"children,omitempty"`
	Language string   `json:"language,omitempty"`
}

// IsFile reports whether the node is a file.
func (n FileNode) IsFile() bool { return n.Kind == KindFile }

// IsFolder reports whether the node is a folder.
func (n FileNode) IsFolder() bool { return n.Kind == KindFolder }

func (n *FileNode) clone() *FileNode {
	c := *n
	c.Children = slices.Clone(n.Children)
	return &c
}

// CleanPath normalizes a project path: forward slashes, no leading or
// trailing separator, no "." or ".." segments escaping the root.
// The project root is the empty string.
func CleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// JoinPath joins a parent path and a name into a clean project path.
func JoinPath(parent, name string) string {
	return CleanPath(path.Join(parent, name))
}
