package model

import (
	"bytes"
	"encoding/json"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

var roles = []Role{RoleOwner, RoleAdmin, RoleMember, RoleViewer}

func Roles() []Role {
	res := make([]Role, len(roles))
	copy(res, roles)

	return res
}

func (r Role) Valid() bool {
	for _, x := range roles {
		if r == x {
			return true
		}
	}

	return false
}

// CanInvite reports whether a project member with this role may invite others.
func (r Role) CanInvite() bool {
	return r == RoleOwner || r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}

// UnmarshalJSON accepts any JSON value. Empty and falsy values give an empty
// role, other non-strings give a role that is never valid.
func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = Role(s)
		return nil
	}

	switch string(bytes.TrimSpace(b)) {
	case "false", "0":
		*r = ""
	default:
		*r = Role(bytes.TrimSpace(b))
	}

	return nil
}
