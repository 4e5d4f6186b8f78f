package apikeys

import (
	"fmt"

	"github.com/inkwell-cms/inkwell/pkg/sites"
)

// maxPermissionFor returns the highest permission a caller with the given
// site role may assign to a new key. Owners may mint up to Admin, Admins
// up to Write, everyone else up to Read.
func maxPermissionFor(role sites.Role) Permission {
	switch {
	case role.AtLeast(sites.RoleOwner):
		return PermissionAdmin
	case role.AtLeast(sites.RoleAdmin):
		return PermissionWrite
	default:
		return PermissionRead
	}
}

// permissionRanks orders permissions for cap comparison only; it is not a
// role hierarchy.
var permissionRanks = map[Permission]int{
	PermissionMaster: 40,
	PermissionAdmin:  30,
	PermissionWrite:  20,
	PermissionRead:   10,
}

// ValidatePermissionCap checks that a caller may mint a key with the
// requested permission. System administrators are exempt from the cap.
func ValidatePermissionCap(callerRole sites.Role, isSystemAdmin bool, requested Permission) error {
	if !requested.Valid() {
		return fmt.Errorf("unknown permission %q", requested)
	}
	if isSystemAdmin {
		return nil
	}
	max := maxPermissionFor(callerRole)
	if permissionRanks[requested] > permissionRanks[max] {
		return fmt.Errorf("role %s may create keys with at most %s permission", callerRole, max)
	}
	return nil
}
