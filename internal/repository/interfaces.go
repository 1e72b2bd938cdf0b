package repository

import (
	"github.com/projecthub/invited/pkg/model"
)

type MembersRepository interface {
	Start() error
	Stop()
}

// MembersSink receives the full member list on every reload.
type MembersSink interface {
	ReplaceMemberships(members []*model.Membership) error
}
