// Package access defines the capability check consumed by the orchestration
// core. The real authorization layer lives outside this module; the core only
// ever asks "may this requester act on this resource".
package access

// Controller answers capability checks for state-changing operations.
type Controller interface {
	// CanAct reports whether requester may see or act on the resource.
	CanAct(requester, resourceID string) bool
}

// AllowAll grants every request. Used when no authorization layer is wired,
// e.g. single-operator deployments and tests.
type AllowAll struct{}

func (AllowAll) CanAct(string, string) bool { return true }

// DenyList refuses specific requesters and allows everyone else.
type DenyList struct {
	Denied map[string]bool
}

func (d DenyList) CanAct(requester, _ string) bool {
	return !d.Denied[requester]
}
