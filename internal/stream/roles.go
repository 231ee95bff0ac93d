package stream

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Role labels a worker session for display purposes.
type Role string

// Builtin roles. RoleUnknown is the explicit fallback; resolution never fails.
const (
	RoleLead         Role = "lead"
	RoleResearcher   Role = "researcher"
	RoleImplementer  Role = "implementer"
	RoleTester       Role = "tester"
	RoleSecurity     Role = "security-reviewer"
	RoleQuality      Role = "quality-reviewer"
	RoleArchitecture Role = "architecture-reviewer"
	RoleUnknown      Role = "unknown"
)

type keywordEntry struct {
	keyword string
	role    Role
}

// Registry maps free-text session names to roles by case-insensitive
// substring match against an ordered keyword table. The first matching entry
// wins; table order is the tie-break. Custom roles registered at runtime are
// appended after the builtin table.
type Registry struct {
	entries []keywordEntry
}

// NewRegistry creates a Registry with the builtin keyword table.
func NewRegistry() *Registry {
	return &Registry{
		entries: []keywordEntry{
			{"security", RoleSecurity},
			{"quality", RoleQuality},
			{"architect", RoleArchitecture},
			{"research", RoleResearcher},
			{"implement", RoleImplementer},
			{"test", RoleTester},
			{"lead", RoleLead},
		},
	}
}

// Register appends keyword entries for a role. Later registrations never
// shadow earlier ones, so builtin matches stay stable.
func (r *Registry) Register(role Role, keywords ...string) {
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		r.entries = append(r.entries, keywordEntry{kw, role})
	}
}

// Resolve maps a session or agent name to a role.
// Unresolved names map to RoleUnknown, never an error.
func (r *Registry) Resolve(name string) Role {
	lower := strings.ToLower(name)
	for _, e := range r.entries {
		if strings.Contains(lower, e.keyword) {
			return e.role
		}
	}
	return RoleUnknown
}

// customRoleFile is the on-disk shape of a reviewer persona definition.
type customRoleFile struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// LoadCustomRoles registers reviewer personas from YAML files in dir.
// Each file defines a role name and its match keywords. A missing directory
// is not an error; a malformed file is.
func (r *Registry) LoadCustomRoles(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read reviewers directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return fmt.Errorf("failed to read reviewer definition %s: %w", e.Name(), err)
		}

		var def customRoleFile
		if err := yaml.Unmarshal(data, &def); err != nil {
			return fmt.Errorf("failed to parse reviewer definition %s: %w", e.Name(), err)
		}
		if def.Name == "" {
			return fmt.Errorf("reviewer definition %s has no name", e.Name())
		}

		keywords := def.Keywords
		if len(keywords) == 0 {
			keywords = []string{def.Name}
		}
		r.Register(Role(def.Name), keywords...)
	}
	return nil
}
