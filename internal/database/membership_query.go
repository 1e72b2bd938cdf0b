package database

import (
	"gorm.io/gorm"

	"github.com/projecthub/invited/pkg/model"
)

type MembershipQuery struct {
	Query[model.Membership]
	projectID string
	userID    string
}

func NewMembershipQuery(db *gorm.DB) *MembershipQuery {
	return &MembershipQuery{
		Query: Query[model.Membership]{
			db:    db,
			limit: 100,
			order: "project_id,user_id",
		},
	}
}

func (q *MembershipQuery) Limit(n int) *MembershipQuery {
	q.limit = n
	return q
}

func (q *MembershipQuery) Project(id string) *MembershipQuery {
	q.projectID = id
	return q
}

func (q *MembershipQuery) User(id string) *MembershipQuery {
	q.userID = id
	return q
}

func (q *MembershipQuery) where() *gorm.DB {
	tx := q.db

	if q.projectID != "" {
		tx = tx.Where("project_id = ?", q.projectID)
	}

	if q.userID != "" {
		tx = tx.Where("user_id = ?", q.userID)
	}

	return tx
}

func (q *MembershipQuery) Get() []*model.Membership {
	return q.get(q.where().Model(&model.Membership{}))
}
