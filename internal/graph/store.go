package graph

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned for lookups of nodes the store does not hold.
var ErrNotFound = errors.New("graph: node not found")

// Store is the node sink the sourcing pipeline writes into. The host
// build pipeline supplies its own implementation; MemoryStore backs
// standalone runs and tests.
type Store interface {
	// PutRemote inserts or replaces a remote node by ID.
	PutRemote(ctx context.Context, node *RemoteNode) error

	// PutFile inserts or replaces a file node by ID. The referenced
	// remote must already be present.
	PutFile(ctx context.Context, node *FileNode) error

	// ReplaceFiles atomically swaps the full file set of a remote, so
	// files deleted upstream drop out of the graph on the next run.
	ReplaceFiles(ctx context.Context, remoteID uuid.UUID, files []*FileNode) error

	// Remote returns the remote node with the given ID.
	Remote(ctx context.Context, id uuid.UUID) (*RemoteNode, error)

	// File returns the file node with the given ID.
	File(ctx context.Context, id uuid.UUID) (*FileNode, error)

	// FilesByRemote lists the file nodes of one remote, ordered by
	// path.
	FilesByRemote(ctx context.Context, remoteID uuid.UUID) ([]*FileNode, error)

	// Remotes lists every remote node, ordered by source name.
	Remotes(ctx context.Context) ([]*RemoteNode, error)

	// Close releases any resources held by the store.
	Close() error
}
