// Package remoteinfo derives descriptive fields from git remote URLs.
// Parsing is delegated to go-git's endpoint parser, which understands
// the same URL shapes the synchronizer can clone from: http(s), ssh,
// scp-like and local paths.
package remoteinfo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Info holds everything that can be derived from a clone URL without
// contacting the remote.
type Info struct {
	// Raw is the trimmed input URL.
	Raw string
	// Protocol is the transport scheme (https, ssh, file, git).
	Protocol string
	Host     string
	Port     int
	// User is the transport user, such as "git" for scp-like URLs.
	User string
	// Owner is the namespace part of the path, such as "org" or a
	// nested "group/subgroup". Empty for local paths.
	Owner string
	// Name is the repository name with any .git suffix removed.
	Name string
	// FullName is "owner/name", or just the name when there is no
	// owner.
	FullName string
	// WebURL is a best-effort https browse URL. Empty for local paths.
	WebURL string
}

// IsLocal reports whether the remote is a filesystem path.
func (i Info) IsLocal() bool { return i.Protocol == "file" }

// Parse splits a remote URL into its descriptive parts.
func Parse(remote string) (Info, error) {
	raw := strings.TrimSpace(remote)
	if raw == "" {
		return Info{}, errors.New("remote URL is empty")
	}

	ep, err := transport.NewEndpoint(raw)
	if err != nil {
		return Info{}, fmt.Errorf("parse remote %q: %w", raw, err)
	}

	info := Info{
		Raw:      raw,
		Protocol: ep.Protocol,
		Host:     ep.Host,
		Port:     ep.Port,
		User:     ep.User,
	}

	path := strings.Trim(ep.Path, "/")
	path = strings.TrimSuffix(path, ".git")

	if info.IsLocal() {
		// A filesystem path has no meaningful owner or web UI.
		if idx := strings.LastIndex(path, "/"); idx >= 0 {
			info.Name = path[idx+1:]
		} else {
			info.Name = path
		}
		info.FullName = info.Name
		return info, nil
	}

	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		info.Owner = path[:idx]
		info.Name = path[idx+1:]
		info.FullName = info.Owner + "/" + info.Name
	} else {
		info.Name = path
		info.FullName = path
	}

	info.WebURL = webURL(ep.Protocol, ep.Host, ep.Port, info.FullName)
	return info, nil
}

// webURL guesses the https browse address forges serve next to their
// git endpoints. Non-default http(s) ports carry over; ssh ports do
// not, they belong to the git transport.
func webURL(protocol, host string, port int, fullName string) string {
	if host == "" || fullName == "" {
		return ""
	}
	switch protocol {
	case "http":
		if port > 0 && port != 80 {
			return fmt.Sprintf("http://%s:%d/%s", host, port, fullName)
		}
		return fmt.Sprintf("http://%s/%s", host, fullName)
	case "https":
		if port > 0 && port != 443 {
			return fmt.Sprintf("https://%s:%d/%s", host, port, fullName)
		}
		return fmt.Sprintf("https://%s/%s", host, fullName)
	default:
		return fmt.Sprintf("https://%s/%s", host, fullName)
	}
}
