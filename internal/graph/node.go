// Package graph holds the in-memory content graph gitsource produces:
// one remote node per configured source and one file node per matched
// file, linked back to its remote.
//
// Node identity is deterministic. The same remote URL and the same
// relative path always map to the same UUIDs, so repeated runs update
// nodes in place instead of growing the graph.
package graph

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminates node types in the graph.
type Kind string

const (
	KindGitRemote Kind = "GitRemote"
	KindRepoFile  Kind = "RepoFile"
)

// RemoteNode is the synthetic node representing one synchronized
// remote repository.
type RemoteNode struct {
	ID   uuid.UUID
	Kind Kind

	// Source is the configured source name.
	Source string
	// URL is the trimmed remote URL.
	URL string

	Host     string
	Owner    string
	Name     string
	FullName string
	WebURL   string

	// Branch and Commit describe the checkout after the sync that
	// produced this node.
	Branch string
	Commit string
	Slug   string

	SyncedAt time.Time
	Tags     map[string]string
}

// FileNode is one matched file inside a checkout. RemoteID is the
// back-reference to the owning RemoteNode.
type FileNode struct {
	ID       uuid.UUID
	Kind     Kind
	RemoteID uuid.UUID

	// Source is the configured source name, duplicated here so file
	// nodes are self-describing.
	Source string
	// Path is slash-separated and relative to the checkout root.
	Path string
	// AbsPath is the location on disk.
	AbsPath string
	// Name is the base file name, Ext its extension including the dot.
	Name string
	Ext  string

	Size      int64
	ModTime   time.Time
	MediaType string
	// Digest is the hex sha256 of the file content.
	Digest string

	// Title, Slug, Links and FrontMatter are populated for document
	// files; other files carry zero values.
	Title       string
	Slug        string
	Links       []string
	FrontMatter map[string]any

	Tags map[string]string
}

const (
	remoteIDPrefix = "gitsource:remote:"
	fileIDPrefix   = "gitsource:file:"
)

// RemoteID derives the deterministic node ID for a remote URL.
func RemoteID(url string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(remoteIDPrefix+url))
}

// FileID derives the deterministic node ID for a path under a remote.
func FileID(remoteID uuid.UUID, relPath string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fileIDPrefix+remoteID.String()+":"+relPath))
}
