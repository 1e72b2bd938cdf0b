package database

import (
	"time"

	"gorm.io/gorm"

	"github.com/projecthub/invited/pkg/model"
)

type InvitationQuery struct {
	Query[model.Invitation]
	projectID string
	email     string
	token     string
	status    model.InvitationStatus
	before    time.Time
}

func NewInvitationQuery(db *gorm.DB) *InvitationQuery {
	return &InvitationQuery{
		Query: Query[model.Invitation]{
			db:    db,
			limit: 100,
			order: "invitations.created_at DESC",
		},
	}
}

func (q *InvitationQuery) Order(s string) *InvitationQuery {
	q.order = s
	return q
}

func (q *InvitationQuery) Limit(n int) *InvitationQuery {
	q.limit = n
	return q
}

func (q *InvitationQuery) Project(id string) *InvitationQuery {
	q.projectID = id
	return q
}

func (q *InvitationQuery) Email(email string) *InvitationQuery {
	q.email = email
	return q
}

func (q *InvitationQuery) Token(token string) *InvitationQuery {
	q.token = token
	return q
}

func (q *InvitationQuery) Status(s model.InvitationStatus) *InvitationQuery {
	q.status = s
	return q
}

func (q *InvitationQuery) Pending() *InvitationQuery {
	return q.Status(model.StatusPending)
}

func (q *InvitationQuery) CreatedBefore(t time.Time) *InvitationQuery {
	q.before = t
	return q
}

func (q *InvitationQuery) where() *gorm.DB {
	tx := q.db

	if q.projectID != "" {
		tx = tx.Where("project_id = ?", q.projectID)
	}

	if q.email != "" {
		tx = tx.Where("email = ?", q.email)
	}

	if q.token != "" {
		tx = tx.Where("token = ?", q.token)
	}

	if q.status != "" {
		tx = tx.Where("status = ?", q.status)
	}

	if !q.before.IsZero() {
		tx = tx.Where("created_at < ?", q.before.UTC())
	}

	return tx
}

func (q *InvitationQuery) Get() []*model.Invitation {
	return q.get(q.where().Model(&model.Invitation{}))
}

func (q *InvitationQuery) One() *model.Invitation {
	return q.one(q.where().Model(&model.Invitation{}))
}

func (q *InvitationQuery) Count() int64 {
	return q.count(q.where().Model(&model.Invitation{}))
}

func (q *InvitationQuery) Update(updates map[string]any) (int64, error) {
	return q.update(q.where().Model(&model.Invitation{}), updates)
}
