package apikeys

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inkwell-cms/inkwell/pkg/sites"
)

func TestValidatePermissionCap(t *testing.T) {
	tests := []struct {
		name      string
		role      sites.Role
		requested Permission
		allowed   bool
	}{
		{"owner mints admin key", sites.RoleOwner, PermissionAdmin, true},
		{"owner mints write key", sites.RoleOwner, PermissionWrite, true},
		{"owner cannot mint master key", sites.RoleOwner, PermissionMaster, false},

		{"admin mints write key", sites.RoleAdmin, PermissionWrite, true},
		{"admin mints read key", sites.RoleAdmin, PermissionRead, true},
		{"admin cannot mint admin key", sites.RoleAdmin, PermissionAdmin, false},

		{"editor mints read key", sites.RoleEditor, PermissionRead, true},
		{"editor cannot mint write key", sites.RoleEditor, PermissionWrite, false},
		{"viewer mints read key", sites.RoleViewer, PermissionRead, true},
		{"viewer cannot mint write key", sites.RoleViewer, PermissionWrite, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePermissionCap(tt.role, false, tt.requested)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidatePermissionCapSystemAdminExempt(t *testing.T) {
	for _, requested := range []Permission{PermissionMaster, PermissionAdmin, PermissionWrite, PermissionRead} {
		assert.NoError(t, ValidatePermissionCap(sites.RoleViewer, true, requested))
	}
}

func TestValidatePermissionCapRejectsUnknownPermission(t *testing.T) {
	assert.Error(t, ValidatePermissionCap(sites.RoleOwner, true, Permission("root")))
}
