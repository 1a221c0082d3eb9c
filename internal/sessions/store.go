package sessions

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/talkincode/botfleet/internal/domain"
	"github.com/talkincode/botfleet/pkg/common"
)

// Store persists session backups. One active row per tenant; Save refreshes
// that row in place so the table never accumulates stale credential copies.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// GetActive returns the tenant's active backup row.
func (s *Store) GetActive(tenantID string) (*domain.SessionBackup, error) {
	var backup domain.SessionBackup
	err := s.db.
		Where("tenant_id = ? and is_active = ?", tenantID, true).
		Order("backup_date desc").
		First(&backup).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, ErrNoBackupFound)
	}
	if err != nil {
		return nil, err
	}
	return &backup, nil
}

// Save writes the blob map as the tenant's active backup, updating the
// existing active row when there is one.
func (s *Store) Save(tenantID, sessionName string, blobs map[string][]byte) (*domain.SessionBackup, error) {
	now := time.Now()
	var backup domain.SessionBackup
	err := s.db.
		Where("tenant_id = ? and is_active = ?", tenantID, true).
		First(&backup).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		backup = domain.SessionBackup{
			ID:          common.UUIDint64(),
			TenantID:    tenantID,
			SessionName: sessionName,
			SessionData: blobs,
			BackupDate:  now,
			IsActive:    true,
		}
		if err := s.db.Create(&backup).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		backup.SessionName = sessionName
		backup.SessionData = blobs
		backup.BackupDate = now
		if err := s.db.Save(&backup).Error; err != nil {
			return nil, err
		}
	}
	return &backup, nil
}

// MarkRestored stamps the row with the restore time.
func (s *Store) MarkRestored(id int64, at time.Time) error {
	return s.db.Model(&domain.SessionBackup{}).
		Where("id = ?", id).
		Update("restored_at", at).Error
}

// List returns the tenant's backup rows, newest first.
func (s *Store) List(tenantID string) ([]domain.SessionBackup, error) {
	var rows []domain.SessionBackup
	err := s.db.
		Where("tenant_id = ?", tenantID).
		Order("backup_date desc").
		Find(&rows).Error
	return rows, err
}
