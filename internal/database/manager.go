package database

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/projecthub/invited/pkg/model"
)

var (
	ErrNotFound  = errors.New("no record found")
	ErrMultiple  = errors.New("more than one record found")
	ErrDuplicate = errors.New("duplicate record")
)

type DatabaseManager struct {
	db     *gorm.DB
	logger *slog.Logger
}

func New(db *gorm.DB) *DatabaseManager {
	m := &DatabaseManager{
		db:     db,
		logger: slog.With("logger", "dbm"),
	}

	return m
}

func (mm *DatabaseManager) Create(s any) error {
	return mm.CreateIn("", s)
}

// CreateIn inserts s into table (or the model's own table when table is empty).
// Unique constraint violations are reported as ErrDuplicate.
func (mm *DatabaseManager) CreateIn(table string, s any) error {
	if mm == nil || mm.db == nil {
		return fmt.Errorf("no database")
	}

	tx := mm.db
	if table != "" {
		tx = tx.Table(table)
	}

	err := tx.Create(s).Error

	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, err.Error())
		}

		mm.logger.Error("error create object", slog.Any("error", err))
	}

	return err
}

// FindOne loads the single row of table matching all filter columns into dest.
// Zero rows give ErrNotFound, several rows ErrMultiple.
func (mm *DatabaseManager) FindOne(table string, filter map[string]any, dest any) error {
	if mm == nil || mm.db == nil {
		return fmt.Errorf("no database")
	}

	var n int64

	if err := mm.db.Table(table).Where(filter).Count(&n).Error; err != nil {
		return err
	}

	switch {
	case n == 0:
		return ErrNotFound
	case n > 1:
		return ErrMultiple
	}

	err := mm.db.Table(table).Where(filter).Take(dest).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	return err
}

func (mm *DatabaseManager) Exists(table string, filter map[string]any) (bool, error) {
	if mm == nil || mm.db == nil {
		return false, fmt.Errorf("no database")
	}

	var n int64

	if err := mm.db.Table(table).Where(filter).Count(&n).Error; err != nil {
		return false, err
	}

	return n > 0, nil
}

func (mm *DatabaseManager) MembershipQuery() *MembershipQuery {
	return NewMembershipQuery(mm.db)
}

func (mm *DatabaseManager) InvitationQuery() *InvitationQuery {
	return NewInvitationQuery(mm.db)
}

func (mm *DatabaseManager) Migrate() error {
	if mm == nil || mm.db == nil {
		return fmt.Errorf("no database")
	}

	return mm.db.AutoMigrate(
		&model.Membership{},
		&model.Invitation{},
	)
}

// ReplaceMemberships makes members the full content of the project_members table.
func (mm *DatabaseManager) ReplaceMemberships(members []*model.Membership) error {
	return mm.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Membership{}).Error; err != nil {
			return err
		}

		if len(members) == 0 {
			return nil
		}

		return tx.Create(members).Error
	})
}

// ExpirePending marks pending invitations created before t as expired.
func (mm *DatabaseManager) ExpirePending(before time.Time) (int64, error) {
	return mm.InvitationQuery().Pending().CreatedBefore(before).Update(map[string]any{"status": model.StatusExpired})
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	s := err.Error()

	return strings.Contains(s, "UNIQUE constraint failed") || strings.Contains(s, "duplicate key")
}
