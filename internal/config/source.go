package config

import "path/filepath"

// BranchPolicy selects which branch a checkout follows when the source
// does not name one explicitly.
type BranchPolicy string

const (
	// BranchPolicyTrackCurrent keeps whatever branch the checkout is
	// already on, falling back to the remote default for fresh clones.
	BranchPolicyTrackCurrent BranchPolicy = "track-current"
	// BranchPolicyRemoteDefault always follows the remote's default branch.
	BranchPolicyRemoteDefault BranchPolicy = "remote-default"
)

// Source describes one remote repository to mirror into the workspace.
type Source struct {
	// Name is the checkout directory name under the workspace. Must be
	// unique across sources.
	Name string `yaml:"name"`

	// Remote is the clone URL (https, ssh or scp-like).
	Remote string `yaml:"remote"`

	// Branch pins the checkout to a specific branch. Empty means the
	// branch policy decides.
	Branch string `yaml:"branch,omitempty"`

	BranchPolicy BranchPolicy `yaml:"branch_policy,omitempty"`

	// Patterns are glob patterns matched against paths relative to the
	// checkout root. Empty means every file.
	Patterns []string `yaml:"patterns,omitempty"`

	// Exclude patterns drop files that matched Patterns.
	Exclude []string `yaml:"exclude,omitempty"`

	Auth *AuthConfig `yaml:"auth,omitempty"`

	// Tags are copied verbatim onto the nodes produced for this source.
	Tags map[string]string `yaml:"tags,omitempty"`
}

// Dir returns the checkout directory for this source under workspace.
func (s Source) Dir(workspace string) string {
	return filepath.Join(workspace, s.Name)
}

// EffectiveBranchPolicy resolves the policy for this source, applying
// the default when unset.
func (s Source) EffectiveBranchPolicy() BranchPolicy {
	if s.BranchPolicy == "" {
		return BranchPolicyTrackCurrent
	}
	return s.BranchPolicy
}
