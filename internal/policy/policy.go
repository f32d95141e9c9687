// Package policy holds the pure access predicates shared by polls and rooms.
package policy

import (
	"slices"

	"github.com/weiawesome/wes-io-polls/internal/domain"
)

// CanAccess reports whether subjectID may see and interact with r.
// The creator always passes and a kicked subject never does.
func CanAccess(r domain.Accessible, subjectID string) bool {
	rule := r.AccessRule()

	if subjectID == "" {
		return false
	}
	if rule.CreatorID == subjectID {
		return true
	}
	if slices.Contains(rule.KickedUserIDs, subjectID) {
		return false
	}

	switch rule.AccessType {
	case domain.AccessPrivate:
		return false
	case domain.AccessSelected:
		return slices.Contains(rule.AllowedUserIDs, subjectID)
	default:
		// public, unset and unrecognised legacy values
		return true
	}
}

// IsAdmin reports whether role is admin.
func IsAdmin(role string) bool {
	return role == domain.RoleAdmin
}

// IsPrivileged reports whether role is admin or moderator.
func IsPrivileged(role string) bool {
	return role == domain.RoleAdmin || role == domain.RoleModerator
}

// CanManage reports whether the actor may edit, delete or kick on r.
func CanManage(r domain.Accessible, actor domain.Actor) bool {
	return r.AccessRule().CreatorID == actor.UserID || IsAdmin(actor.Role)
}

// CanModerate reports whether the actor may act on something owned by
// ownerID, such as closing a poll or deleting a message.
func CanModerate(ownerID string, actor domain.Actor) bool {
	return ownerID == actor.UserID || IsPrivileged(actor.Role)
}

// NormalizeAccessType maps "" to public and rejects unknown values.
func NormalizeAccessType(s string) (domain.AccessType, error) {
	switch domain.AccessType(s) {
	case "":
		return domain.AccessPublic, nil
	case domain.AccessPublic, domain.AccessPrivate, domain.AccessSelected:
		return domain.AccessType(s), nil
	default:
		return "", domain.ErrInvalidAccessType
	}
}

// NormalizeAllowed returns the allow-list to store for accessType.
// For selected it is deduplicated with the creator force-included,
// otherwise it is empty.
func NormalizeAllowed(accessType domain.AccessType, ids []string, creatorID string) []string {
	if accessType != domain.AccessSelected {
		return []string{}
	}

	seen := make(map[string]struct{}, len(ids)+1)
	out := make([]string, 0, len(ids)+1)
	for _, id := range append(append([]string{}, ids...), creatorID) {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
