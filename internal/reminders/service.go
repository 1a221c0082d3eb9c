package reminders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/talkincode/botfleet/internal/domain"
	"github.com/talkincode/botfleet/internal/optout"
	"github.com/talkincode/botfleet/pkg/common"
)

// ErrValidation marks a malformed job definition. The admin API maps it to a
// 400 response.
var ErrValidation = errors.New("invalid reminder")

// ErrJobNotFound is returned when the referenced job id does not exist.
var ErrJobNotFound = errors.New("reminder not found")

// Sender delivers one reminder message. The lifecycle manager implements it.
type Sender interface {
	Deliver(ctx context.Context, tenantID, to, text string) error
}

// Service owns reminder job persistence and dispatch. Tick is driven by the
// application cron and re-evaluates every active job against the wall clock.
type Service struct {
	db       *gorm.DB
	optouts  *optout.Store
	sender   Sender
	pool     *ants.Pool
	location *time.Location
}

func NewService(db *gorm.DB, optouts *optout.Store, sender Sender, location *time.Location, maxWorkers int) (*Service, error) {
	if maxWorkers <= 0 {
		maxWorkers = 16
	}
	pool, err := ants.NewPool(maxWorkers, ants.WithNonblocking(false))
	if err != nil {
		return nil, err
	}
	if location == nil {
		location = time.Local
	}
	return &Service{
		db:       db,
		optouts:  optouts,
		sender:   sender,
		pool:     pool,
		location: location,
	}, nil
}

// Release frees the dispatch worker pool.
func (s *Service) Release() {
	s.pool.Release()
}

func validateJob(job *domain.ReminderJob) error {
	if job.TenantID == "" {
		return fmt.Errorf("tenant id required: %w", ErrValidation)
	}
	if job.Message == "" || len(job.Message) > 160 {
		return fmt.Errorf("message must be 1-160 characters: %w", ErrValidation)
	}
	switch job.Frequency {
	case domain.FrequencyDaily, domain.FrequencyWeekly, domain.FrequencyMonthly:
	default:
		return fmt.Errorf("frequency %q not recognized: %w", job.Frequency, ErrValidation)
	}
	if job.Hour < 8 || job.Hour > 21 {
		return fmt.Errorf("hour must be within 8-21: %w", ErrValidation)
	}
	if job.Minute != 0 && job.Minute != 30 {
		return fmt.Errorf("minute must be 0 or 30: %w", ErrValidation)
	}
	if len(job.Phones) == 0 {
		return fmt.Errorf("at least one recipient required: %w", ErrValidation)
	}
	return nil
}

// Create validates and persists a new job. Recipient entries are normalized
// and de-duplicated; an invalid entry fails the whole request.
func (s *Service) Create(job *domain.ReminderJob) error {
	phones, dropped := NormalizePhones(job.Phones, nil)
	if dropped > 0 {
		return fmt.Errorf("%d recipient entries are not phone numbers: %w", dropped, ErrValidation)
	}
	job.Phones = phones
	if err := validateJob(job); err != nil {
		return err
	}
	if job.ID == 0 {
		job.ID = common.UUIDint64()
	}
	job.Active = true
	return s.db.Create(job).Error
}

// Get loads one job by id.
func (s *Service) Get(id int64) (*domain.ReminderJob, error) {
	var job domain.ReminderJob
	err := s.db.First(&job, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("job %d: %w", id, ErrJobNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// List returns jobs, optionally filtered by tenant.
func (s *Service) List(tenantID string) ([]domain.ReminderJob, error) {
	var jobs []domain.ReminderJob
	query := s.db.Order("created_at")
	if tenantID != "" {
		query = query.Where("tenant_id = ?", tenantID)
	}
	err := query.Find(&jobs).Error
	return jobs, err
}

// Delete removes the job; its trigger disappears on the next tick.
func (s *Service) Delete(id int64) error {
	result := s.db.Delete(&domain.ReminderJob{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("job %d: %w", id, ErrJobNotFound)
	}
	return nil
}

// SetActive toggles a job without deleting its definition.
func (s *Service) SetActive(id int64, active bool) error {
	result := s.db.Model(&domain.ReminderJob{}).
		Where("id = ?", id).
		Update("active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("job %d: %w", id, ErrJobNotFound)
	}
	return nil
}

// ImportPhones merges normalized recipients into the job's list, returning
// how many new numbers were added.
func (s *Service) ImportPhones(id int64, raw []string) (int, error) {
	job, err := s.Get(id)
	if err != nil {
		return 0, err
	}
	merged, _ := NormalizePhones(raw, job.Phones)
	added := len(merged) - len(job.Phones)
	if added == 0 {
		return 0, nil
	}
	job.Phones = merged
	if err := s.db.Save(job).Error; err != nil {
		return 0, err
	}
	return added, nil
}

// dispatchEnabled reads the reminders/DispatchEnabled system switch. A
// missing row leaves dispatch on.
func (s *Service) dispatchEnabled() bool {
	var value string
	s.db.Model(&domain.SysConfig{}).
		Select("value").
		Where("type = ? and name = ?", "reminders", "DispatchEnabled").
		Scan(&value)
	if value == "" {
		return true
	}
	return value == common.ENABLED || cast.ToBool(value)
}

// Tick evaluates every active job against now and fires the due ones. Called
// from the application cron every scheduler interval.
func (s *Service) Tick(ctx context.Context, now time.Time) {
	if !s.dispatchEnabled() {
		zap.L().Debug("reminders: dispatch disabled by system switch",
			zap.String("namespace", "reminders"))
		return
	}
	now = now.In(s.location)
	var jobs []domain.ReminderJob
	if err := s.db.Where("active = ?", true).Find(&jobs).Error; err != nil {
		zap.L().Error("reminders: job scan failed",
			zap.String("namespace", "reminders"),
			zap.Error(err))
		return
	}
	for i := range jobs {
		job := jobs[i]
		if !DueNow(&job, now) {
			continue
		}
		s.fire(ctx, &job, now)
	}
}

// fire fans the message out to every recipient not opted out. Per-recipient
// failures are logged and never abort the batch; LastSent is stamped exactly
// once after the batch completes.
func (s *Service) fire(ctx context.Context, job *domain.ReminderJob, now time.Time) {
	var wg sync.WaitGroup
	var sent, failed, skipped int64
	for _, phone := range job.Phones {
		if s.optouts.Contains(job.TenantID, phone) {
			atomic.AddInt64(&skipped, 1)
			continue
		}
		phone := phone
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			if err := s.sender.Deliver(ctx, job.TenantID, phone, job.Message); err != nil {
				atomic.AddInt64(&failed, 1)
				zap.L().Warn("reminders: delivery failed",
					zap.String("namespace", "reminders"),
					zap.Int64("job_id", job.ID),
					zap.String("phone", phone),
					zap.Error(err))
				return
			}
			atomic.AddInt64(&sent, 1)
		})
		if err != nil {
			wg.Done()
			atomic.AddInt64(&failed, 1)
			zap.L().Warn("reminders: dispatch submit failed",
				zap.String("namespace", "reminders"),
				zap.Int64("job_id", job.ID),
				zap.Error(err))
		}
	}
	wg.Wait()

	if err := s.db.Model(&domain.ReminderJob{}).
		Where("id = ?", job.ID).
		Update("last_sent", now).Error; err != nil {
		zap.L().Error("reminders: last_sent update failed",
			zap.String("namespace", "reminders"),
			zap.Int64("job_id", job.ID),
			zap.Error(err))
	}

	zap.L().Info("reminders: job fired",
		zap.String("namespace", "reminders"),
		zap.Int64("job_id", job.ID),
		zap.String("tenant_id", job.TenantID),
		zap.Int64("sent", atomic.LoadInt64(&sent)),
		zap.Int64("failed", atomic.LoadInt64(&failed)),
		zap.Int64("skipped", atomic.LoadInt64(&skipped)))
}
