package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"git.home.luguber.info/inful/gitsource/internal/graph"
)

// graphDump is the document written by `source --out`: every remote
// node with its file nodes, in a stable order.
type graphDump struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Remotes     []graphEntry `json:"remotes"`
}

type graphEntry struct {
	Remote remoteJSON `json:"remote"`
	Files  []fileJSON `json:"files"`
}

type remoteJSON struct {
	ID       string            `json:"id"`
	Kind     string            `json:"kind"`
	Source   string            `json:"source"`
	URL      string            `json:"url"`
	Host     string            `json:"host,omitempty"`
	Owner    string            `json:"owner,omitempty"`
	Name     string            `json:"name"`
	FullName string            `json:"full_name,omitempty"`
	WebURL   string            `json:"web_url,omitempty"`
	Branch   string            `json:"branch"`
	Commit   string            `json:"commit"`
	Slug     string            `json:"slug"`
	SyncedAt time.Time         `json:"synced_at"`
	Tags     map[string]string `json:"tags,omitempty"`
}

type fileJSON struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	RemoteID    string            `json:"remote_id"`
	Source      string            `json:"source"`
	Path        string            `json:"path"`
	AbsPath     string            `json:"abs_path"`
	Name        string            `json:"name"`
	Ext         string            `json:"ext,omitempty"`
	Size        int64             `json:"size"`
	ModTime     time.Time         `json:"mod_time"`
	MediaType   string            `json:"media_type,omitempty"`
	Digest      string            `json:"digest"`
	Title       string            `json:"title,omitempty"`
	Slug        string            `json:"slug"`
	Links       []string          `json:"links,omitempty"`
	FrontMatter map[string]any    `json:"front_matter,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

func remoteToJSON(node *graph.RemoteNode) remoteJSON {
	return remoteJSON{
		ID:       node.ID.String(),
		Kind:     string(node.Kind),
		Source:   node.Source,
		URL:      node.URL,
		Host:     node.Host,
		Owner:    node.Owner,
		Name:     node.Name,
		FullName: node.FullName,
		WebURL:   node.WebURL,
		Branch:   node.Branch,
		Commit:   node.Commit,
		Slug:     node.Slug,
		SyncedAt: node.SyncedAt,
		Tags:     node.Tags,
	}
}

func fileToJSON(node *graph.FileNode) fileJSON {
	return fileJSON{
		ID:          node.ID.String(),
		Kind:        string(node.Kind),
		RemoteID:    node.RemoteID.String(),
		Source:      node.Source,
		Path:        node.Path,
		AbsPath:     node.AbsPath,
		Name:        node.Name,
		Ext:         node.Ext,
		Size:        node.Size,
		ModTime:     node.ModTime,
		MediaType:   node.MediaType,
		Digest:      node.Digest,
		Title:       node.Title,
		Slug:        node.Slug,
		Links:       node.Links,
		FrontMatter: node.FrontMatter,
		Tags:        node.Tags,
	}
}

func buildGraphDump(ctx context.Context, store *graph.MemoryStore) (*graphDump, error) {
	remotes, err := store.Remotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remotes: %w", err)
	}

	dump := &graphDump{
		GeneratedAt: time.Now().UTC(),
		Remotes:     make([]graphEntry, 0, len(remotes)),
	}
	for _, remote := range remotes {
		files, err := store.FilesByRemote(ctx, remote.ID)
		if err != nil {
			return nil, fmt.Errorf("list files of %s: %w", remote.Source, err)
		}
		entry := graphEntry{
			Remote: remoteToJSON(remote),
			Files:  make([]fileJSON, 0, len(files)),
		}
		for _, file := range files {
			entry.Files = append(entry.Files, fileToJSON(file))
		}
		dump.Remotes = append(dump.Remotes, entry)
	}
	return dump, nil
}

// writeGraph dumps the graph as indented JSON to outPath, or to stdout
// when outPath is "-".
func writeGraph(ctx context.Context, store *graph.MemoryStore, outPath string) error {
	dump, err := buildGraphDump(ctx, store)
	if err != nil {
		return err
	}

	if outPath == "-" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(dump); err != nil {
			return fmt.Errorf("encode graph: %w", err)
		}
		return nil
	}

	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write graph: %w", err)
	}
	slog.Info("Graph written", "path", outPath, "remotes", len(dump.Remotes))
	return nil
}
