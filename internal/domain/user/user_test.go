package user

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name          string
		in            User
		wantRole      Role
		wantSuperuser bool
		wantStaff     bool
	}{
		{name: "default_role", in: User{}, wantRole: RoleStaff},
		{name: "staff_untouched", in: User{Role: RoleStaff}, wantRole: RoleStaff},
		{name: "manager_keeps_flags", in: User{Role: RoleManager, IsStaff: true}, wantRole: RoleManager, wantStaff: true},
		{name: "admin_gets_flags", in: User{Role: RoleAdmin}, wantRole: RoleAdmin, wantSuperuser: true, wantStaff: true},
		{name: "superuser_becomes_admin", in: User{Role: RoleStaff, IsSuperuser: true}, wantRole: RoleAdmin, wantSuperuser: true, wantStaff: true},
		{name: "superuser_manager_becomes_admin", in: User{Role: RoleManager, IsSuperuser: true, IsStaff: false}, wantRole: RoleAdmin, wantSuperuser: true, wantStaff: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := tt.in
			u.Normalize()

			if u.Role != tt.wantRole || u.IsSuperuser != tt.wantSuperuser || u.IsStaff != tt.wantStaff {
				t.Fatalf("got role=%s superuser=%v staff=%v, want role=%s superuser=%v staff=%v",
					u.Role, u.IsSuperuser, u.IsStaff, tt.wantRole, tt.wantSuperuser, tt.wantStaff)
			}

			// the invariant holds whatever the input was
			if u.IsSuperuser != (u.Role == RoleAdmin) {
				t.Fatalf("superuser=%v but role=%s", u.IsSuperuser, u.Role)
			}
			if u.Role == RoleAdmin && !u.IsStaff {
				t.Fatalf("admin without staff access")
			}
		})
	}
}

func TestToggleRole(t *testing.T) {
	m := User{Role: RoleManager, IsStaff: true}
	if err := m.ToggleRole(); err != nil {
		t.Fatalf("toggle manager: %v", err)
	}
	if m.Role != RoleStaff || m.IsStaff || m.IsSuperuser {
		t.Fatalf("manager toggled to %+v", m)
	}

	if err := m.ToggleRole(); err != nil {
		t.Fatalf("toggle staff: %v", err)
	}
	if m.Role != RoleManager {
		t.Fatalf("staff toggled to %s", m.Role)
	}

	a := User{Role: RoleAdmin, IsSuperuser: true, IsStaff: true}
	if err := a.ToggleRole(); !errors.Is(err, ErrAdminProtected) {
		t.Fatalf("toggle admin err = %v, want ErrAdminProtected", err)
	}
	if a.Role != RoleAdmin || !a.IsSuperuser {
		t.Fatalf("admin changed: %+v", a)
	}
}

func TestCanBeDeletedBy(t *testing.T) {
	admin := User{ID: "a", Role: RoleAdmin}
	staff := User{ID: "s", Role: RoleStaff}

	if err := admin.CanBeDeletedBy("a"); !errors.Is(err, ErrCannotDeleteSelf) {
		t.Fatalf("self delete err = %v", err)
	}
	if err := admin.CanBeDeletedBy("other"); !errors.Is(err, ErrAdminProtected) {
		t.Fatalf("admin delete err = %v", err)
	}
	if err := staff.CanBeDeletedBy("a"); err != nil {
		t.Fatalf("staff delete err = %v", err)
	}
}

func TestRoleIn(t *testing.T) {
	if !RoleManager.In(RoleManager, RoleAdmin) {
		t.Fatal("manager should be in manager/admin")
	}
	if RoleStaff.In(RoleManager, RoleAdmin) {
		t.Fatal("staff should not be in manager/admin")
	}
	if _, ok := ParseRole("Owner"); ok {
		t.Fatal("unknown role parsed")
	}
}
