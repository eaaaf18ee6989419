// Package roles defines the ordered role hierarchy of the back office and
// the pure decision logic for who may assign which role to whom.
package roles

import (
	"fmt"

	"github.com/dkravets/backoffice/internal/common"
)

// Role is an ordered privilege level: User < Manager < Admin < SuperAdmin.
type Role int

const (
	User Role = iota
	Manager
	Admin
	SuperAdmin
)

var names = map[Role]string{
	User:       "user",
	Manager:    "manager",
	Admin:      "admin",
	SuperAdmin: "superadmin",
}

func (r Role) String() string {
	if n, ok := names[r]; ok {
		return n
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Parse converts a stored or user-supplied role name into a Role.
func Parse(s string) (Role, error) {
	for r, n := range names {
		if n == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// AtLeast reports whether r carries at least the privileges of other.
func (r Role) AtLeast(other Role) bool {
	return r >= other
}

// CanAssign decides whether a requester holding role requester may change
// a target holding role target to role requested. It returns
// common.ErrPermissionDenied when the change is forbidden:
//
//   - nobody touches a superadmin account;
//   - nobody grants superadmin;
//   - only a superadmin may demote an admin or grant admin.
//
// Self-updates and existence checks are the caller's concern.
func CanAssign(requester, target, requested Role) error {
	if target == SuperAdmin || requested == SuperAdmin {
		return common.ErrPermissionDenied
	}
	if target == Admin && requester != SuperAdmin {
		return common.ErrPermissionDenied
	}
	if requested == Admin && requester != SuperAdmin {
		return common.ErrPermissionDenied
	}
	return nil
}
