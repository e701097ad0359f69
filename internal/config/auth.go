package config

import (
	"fmt"
	"strings"
)

// AuthType identifies how a source authenticates against its remote.
type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeSSH   AuthType = "ssh"
	AuthTypeToken AuthType = "token"
	AuthTypeBasic AuthType = "basic"
)

// AuthConfig carries credentials for one source. Values are expanded from
// the environment before parsing, so tokens are normally written as
// ${GITSOURCE_TOKEN} rather than inline.
type AuthConfig struct {
	Type     AuthType `yaml:"type"`
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	Token    string   `yaml:"token,omitempty"`
	// KeyPath points at a private key file for ssh auth.
	KeyPath string `yaml:"key_path,omitempty"`
	// KeyPassphrase unlocks the private key when set.
	KeyPassphrase string `yaml:"key_passphrase,omitempty"`
}

// NormalizeAuthType maps user input to a known auth type. Unknown
// values normalize to the empty string.
func NormalizeAuthType(value string) AuthType {
	switch t := AuthType(strings.ToLower(strings.TrimSpace(value))); t {
	case AuthTypeNone, AuthTypeSSH, AuthTypeToken, AuthTypeBasic:
		return t
	default:
		return ""
	}
}

// IsValid reports whether t is one of the known auth types.
func (t AuthType) IsValid() bool {
	return NormalizeAuthType(string(t)) == t && t != ""
}

// IsZero reports whether no authentication was configured.
func (a *AuthConfig) IsZero() bool {
	return a == nil || a.Type == "" || a.Type == AuthTypeNone
}

func (a *AuthConfig) validate() error {
	if a.IsZero() {
		return nil
	}
	switch a.Type {
	case AuthTypeSSH:
		if a.KeyPath == "" {
			return fmt.Errorf("ssh auth requires key_path")
		}
	case AuthTypeToken:
		if a.Token == "" {
			return fmt.Errorf("token auth requires token")
		}
	case AuthTypeBasic:
		if a.Username == "" || a.Password == "" {
			return fmt.Errorf("basic auth requires username and password")
		}
	default:
		return fmt.Errorf("unknown auth type %q", a.Type)
	}
	return nil
}
