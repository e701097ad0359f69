package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeySource     = "source"
	KeyRemote     = "remote"
	KeyPath       = "path"
	KeyBranch     = "branch"
	KeyCommit     = "commit"
	KeyRunID      = "run_id"
	KeyState      = "state"
	KeyNodes      = "nodes"
	KeyDurationMS = "duration_ms"
	KeySubject    = "subject"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Source(name string) slog.Attr    { return slog.String(KeySource, name) }
func Remote(url string) slog.Attr     { return slog.String(KeyRemote, url) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Branch(b string) slog.Attr       { return slog.String(KeyBranch, b) }
func Commit(sha string) slog.Attr     { return slog.String(KeyCommit, sha) }
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func State(s string) slog.Attr        { return slog.String(KeyState, s) }
func Nodes(n int) slog.Attr           { return slog.Int(KeyNodes, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Subject(s string) slog.Attr      { return slog.String(KeySubject, s) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
