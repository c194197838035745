package probe

// PermissionSet holds the permissions an identity was found to hold, in provider order
type PermissionSet struct {
	Identity Identity `json:"identity"`
	Granted  []string `json:"granted"`
}

// NewPermissionSet builds a set for identity, dropping duplicates and keeping first-seen order.
// The result never has a nil Granted slice.
func NewPermissionSet(identity Identity, granted []string) *PermissionSet {
	seen := make(map[string]struct{}, len(granted))
	out := make([]string, 0, len(granted))
	for _, p := range granted {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return &PermissionSet{Identity: identity, Granted: out}
}

// Empty reports whether no permission was granted
func (s *PermissionSet) Empty() bool {
	return s == nil || len(s.Granted) == 0
}

// Contains reports whether permission was granted
func (s *PermissionSet) Contains(permission string) bool {
	if s == nil {
		return false
	}
	for _, p := range s.Granted {
		if p == permission {
			return true
		}
	}
	return false
}

// Difference returns the permissions in s that other does not hold, in s's order
func (s *PermissionSet) Difference(other *PermissionSet) []string {
	if s == nil {
		return nil
	}
	var out []string
	for _, p := range s.Granted {
		if !other.Contains(p) {
			out = append(out, p)
		}
	}
	return out
}
