package config

import (
	"fmt"
	"os"
)

const starterConfig = `# gitsource configuration
#
# Environment variables are expanded before parsing. A .env file next to
# this file is loaded first.

# workspace: /var/lib/gitsource

sources:
  - name: handbook
    remote: https://git.example.com/docs/handbook.git
    branch: main
    patterns:
      - "**/*.md"
    exclude:
      - "drafts/**"

#  - name: runbooks
#    remote: git@git.example.com:ops/runbooks.git
#    branch_policy: remote-default
#    auth:
#      type: ssh
#      key_path: ${HOME}/.ssh/id_ed25519

sync:
  depth: 1
  max_retries: 2
  retry_backoff: exponential

daemon:
  interval: 10m
  listen: ":8080"
`

// WriteStarter writes a commented starter configuration to path.
// Refuses to overwrite unless force is set.
func WriteStarter(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0o644); err != nil {
		return fmt.Errorf("write starter config: %w", err)
	}
	return nil
}
