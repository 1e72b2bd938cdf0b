package model

const MembershipsTable = "project_members"

type Membership struct {
	ProjectID string `gorm:"primaryKey" json:"project_id" yaml:"project"`
	UserID    string `gorm:"primaryKey" json:"user_id" yaml:"user"`
	Role      Role   `gorm:"not null" json:"role" yaml:"role"`
}

func (Membership) TableName() string {
	return MembershipsTable
}
