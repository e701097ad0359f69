package gitsync

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"git.home.luguber.info/inful/gitsource/internal/config"
)

// NewAuth builds the transport auth method for a source. A nil or
// none-typed config means anonymous access.
func NewAuth(cfg *config.AuthConfig) (transport.AuthMethod, error) {
	if cfg.IsZero() {
		return nil, nil
	}
	switch cfg.Type {
	case config.AuthTypeSSH:
		keyPath := cfg.KeyPath
		if keyPath == "" {
			keyPath = filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
		}
		keys, err := gitssh.NewPublicKeysFromFile("git", keyPath, cfg.KeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("load ssh key %s: %w", keyPath, err)
		}
		return keys, nil

	case config.AuthTypeToken:
		if cfg.Token == "" {
			return nil, fmt.Errorf("token auth requires a token")
		}
		// Forges accept the token as the basic-auth password.
		return &githttp.BasicAuth{Username: "token", Password: cfg.Token}, nil

	case config.AuthTypeBasic:
		if cfg.Username == "" || cfg.Password == "" {
			return nil, fmt.Errorf("basic auth requires username and password")
		}
		return &githttp.BasicAuth{Username: cfg.Username, Password: cfg.Password}, nil

	default:
		return nil, fmt.Errorf("unsupported auth type %q", cfg.Type)
	}
}
