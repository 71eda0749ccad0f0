package security

import (
	"context"
	"strings"
	"sync"
)

// StaticAuthorizer grants permissions from a fixed per-user table, typically
// filled from configuration. Permissions are written "resource/permission".
type StaticAuthorizer struct {
	mu     sync.RWMutex
	grants map[int]map[string]struct{}
}

// NewStaticAuthorizer creates an authorizer from a user id → permissions table.
func NewStaticAuthorizer(grants map[int][]string) *StaticAuthorizer {
	a := &StaticAuthorizer{grants: make(map[int]map[string]struct{})}
	for userID, perms := range grants {
		for _, perm := range perms {
			a.Grant(userID, perm)
		}
	}
	return a
}

// Grant adds a "resource/permission" pair for a user.
func (a *StaticAuthorizer) Grant(userID int, permission string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	set, ok := a.grants[userID]
	if !ok {
		set = make(map[string]struct{})
		a.grants[userID] = set
	}
	set[strings.ToLower(permission)] = struct{}{}
}

// IsAuthorized implements Authorizer.
func (a *StaticAuthorizer) IsAuthorized(_ context.Context, userID int, resource, permission string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.grants[userID][strings.ToLower(resource+"/"+permission)]
	return ok
}
