package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/gitsource/internal/config"
	"git.home.luguber.info/inful/gitsource/internal/docmeta"
	"git.home.luguber.info/inful/gitsource/internal/gitsync"
	"git.home.luguber.info/inful/gitsource/internal/graph"
	"git.home.luguber.info/inful/gitsource/internal/logfields"
	"git.home.luguber.info/inful/gitsource/internal/metrics"
	"git.home.luguber.info/inful/gitsource/internal/remoteinfo"
	"git.home.luguber.info/inful/gitsource/internal/retry"
	"git.home.luguber.info/inful/gitsource/internal/runstore"
	"git.home.luguber.info/inful/gitsource/internal/slug"
)

// syncOne sources a single source end to end: lock, sync, register the
// remote node, walk and register file nodes, record the run.
func (s *Sourcer) syncOne(ctx context.Context, src config.Source) *Result {
	res := &Result{Source: src.Name, Remote: src.Remote, Started: time.Now()}

	dir := src.Dir(s.cfg.Workspace)
	mu := s.locks.forPath(dir)
	mu.Lock()
	defer mu.Unlock()

	fl, err := lockCheckout(ctx, dir)
	if err != nil {
		return s.finish(ctx, src, res.fail(err))
	}
	defer func() { _ = fl.Unlock() }()

	co, err := s.syncTarget(ctx, src, dir)
	if err != nil {
		return s.finish(ctx, src, res.fail(err))
	}
	res.Checkout = co

	remote, err := remoteNode(src, co)
	if err != nil {
		return s.finish(ctx, src, res.fail(err))
	}
	if err := s.store.PutRemote(ctx, remote); err != nil {
		return s.finish(ctx, src, res.fail(fmt.Errorf("register remote node: %w", err)))
	}

	files, err := s.collectFiles(src, remote, dir)
	if err != nil {
		return s.finish(ctx, src, res.fail(fmt.Errorf("walk checkout: %w", err)))
	}
	if err := s.store.ReplaceFiles(ctx, remote.ID, files); err != nil {
		return s.finish(ctx, src, res.fail(fmt.Errorf("register file nodes: %w", err)))
	}

	res.Files = len(files)
	res.Outcome = runstore.OutcomeSuccess
	res.Duration = time.Since(res.Started)
	slog.Info("source registered",
		logfields.Source(src.Name),
		logfields.Branch(co.Branch),
		logfields.Nodes(res.Files))
	return s.finish(ctx, src, res)
}

// syncTarget clones or refreshes the checkout at dir, retrying
// transient failures. Callers hold the path lock.
func (s *Sourcer) syncTarget(ctx context.Context, src config.Source, dir string) (*gitsync.Checkout, error) {
	auth, err := gitsync.NewAuth(src.Auth)
	if err != nil {
		return nil, err
	}

	target := gitsync.Target{
		Path:   dir,
		Remote: src.Remote,
		Branch: src.Branch,
		Policy: src.EffectiveBranchPolicy(),
		Auth:   auth,
	}

	var co *gitsync.Checkout
	attempt := 0
	err = retry.Run(ctx, s.policy, gitsync.Retryable, func(ctx context.Context) error {
		if attempt > 0 {
			s.rec.IncSyncRetry(src.Name)
			slog.Info("retrying sync", logfields.Source(src.Name), slog.Int("attempt", attempt))
		}
		attempt++
		var syncErr error
		co, syncErr = s.sync.Sync(ctx, target)
		return syncErr
	})
	if err != nil {
		if gitsync.Retryable(err) {
			s.rec.IncSyncRetryExhausted(src.Name)
		}
		return nil, err
	}
	return co, nil
}

func (r *Result) fail(err error) *Result {
	r.Err = err
	r.Outcome = classifyOutcome(err)
	r.Duration = time.Since(r.Started)
	return r
}

// finish records metrics and the run-history row for one result.
func (s *Sourcer) finish(ctx context.Context, src config.Source, res *Result) *Result {
	success := res.Err == nil
	s.rec.ObserveSyncDuration(src.Name, res.Duration, success)
	s.rec.IncSyncResult(resultLabel(res.Outcome))
	if success {
		s.rec.SetFilesMatched(src.Name, res.Files)
	} else {
		slog.Warn("source failed",
			logfields.Source(src.Name),
			slog.String("outcome", res.Outcome),
			logfields.Error(res.Err))
	}

	if s.runs != nil {
		run := runstore.Run{
			Source:    src.Name,
			Remote:    src.Remote,
			Files:     res.Files,
			Outcome:   res.Outcome,
			StartedAt: res.Started,
			Duration:  res.Duration,
		}
		if res.Checkout != nil {
			run.Branch = res.Checkout.Branch
			run.Commit = res.Checkout.Commit
			run.Cloned = res.Checkout.Cloned
		}
		if res.Err != nil {
			run.Error = res.Err.Error()
		}
		// Record even after cancellation; the row is the evidence.
		if err := s.runs.Record(context.WithoutCancel(ctx), run); err != nil {
			slog.Warn("could not record run", logfields.Source(src.Name), logfields.Error(err))
		}
	}
	return res
}

func classifyOutcome(err error) string {
	var conflict *gitsync.ConflictError
	switch {
	case errors.As(err, &conflict):
		return runstore.OutcomeConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return runstore.OutcomeCanceled
	default:
		return runstore.OutcomeFailed
	}
}

func resultLabel(outcome string) metrics.ResultLabel {
	switch outcome {
	case runstore.OutcomeSuccess:
		return metrics.ResultSuccess
	case runstore.OutcomeConflict:
		return metrics.ResultConflict
	case runstore.OutcomeCanceled:
		return metrics.ResultCanceled
	default:
		return metrics.ResultFailed
	}
}

// remoteNode builds the synthetic graph node for a synced source.
func remoteNode(src config.Source, co *gitsync.Checkout) (*graph.RemoteNode, error) {
	info, err := remoteinfo.Parse(src.Remote)
	if err != nil {
		return nil, fmt.Errorf("parse remote %s: %w", src.Remote, err)
	}
	return &graph.RemoteNode{
		ID:       graph.RemoteID(info.Raw),
		Kind:     graph.KindGitRemote,
		Source:   src.Name,
		URL:      info.Raw,
		Host:     info.Host,
		Owner:    info.Owner,
		Name:     info.Name,
		FullName: info.FullName,
		WebURL:   info.WebURL,
		Branch:   co.Branch,
		Commit:   co.Commit,
		Slug:     slug.Make(src.Name),
		SyncedAt: time.Now(),
		Tags:     copyTags(src.Tags),
	}, nil
}

// collectFiles walks the checkout and builds a file node per matching
// regular file. `.git` never matches; symlinks and other irregular
// entries are skipped.
func (s *Sourcer) collectFiles(src config.Source, remote *graph.RemoteNode, dir string) ([]*graph.FileNode, error) {
	matcher := s.matchers[src.Name]
	files := make([]*graph.FileNode, 0)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !matcher.Match(rel) {
			return nil
		}

		node, err := s.fileNode(src, remote, path, rel, d)
		if err != nil {
			return err
		}
		files = append(files, node)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// fileNode builds one file node. Markdown files additionally carry
// frontmatter, title and links; a metadata extraction failure degrades
// to a bare node instead of failing the source.
func (s *Sourcer) fileNode(src config.Source, remote *graph.RemoteNode, absPath, rel string, d fs.DirEntry) (*graph.FileNode, error) {
	info, err := d.Info()
	if err != nil {
		return nil, err
	}

	node := &graph.FileNode{
		ID:        graph.FileID(remote.ID, rel),
		Kind:      graph.KindRepoFile,
		RemoteID:  remote.ID,
		Source:    src.Name,
		Path:      rel,
		AbsPath:   absPath,
		Name:      path.Base(rel),
		Ext:       path.Ext(rel),
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		MediaType: mime.TypeByExtension(path.Ext(rel)),
		Slug:      slug.ForFile(rel),
		Tags:      copyTags(src.Tags),
	}

	if docmeta.IsDocument(rel) {
		content, err := os.ReadFile(absPath)
		if err != nil {
			return nil, err
		}
		node.Digest = graph.DigestBytes(content)
		meta, err := docmeta.Extract(content)
		if err != nil {
			slog.Warn("document metadata skipped",
				logfields.Source(src.Name),
				logfields.Path(rel),
				logfields.Error(err))
		} else {
			node.Title = meta.Title
			node.FrontMatter = meta.FrontMatter
			node.Links = meta.Links
		}
		return node, nil
	}

	digest, err := graph.DigestFile(absPath)
	if err != nil {
		return nil, err
	}
	node.Digest = digest
	return node, nil
}

func copyTags(tags map[string]string) map[string]string {
	if tags == nil {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
