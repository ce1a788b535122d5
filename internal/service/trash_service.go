package service

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/trashinator/internal/cache"
	"github.com/trashinator/internal/db"
	"github.com/trashinator/internal/metrics"
	"github.com/trashinator/internal/tracking"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// TrashService 负责垃圾体积记录的写入与查询。
// 新记录的周期归属在同一住户的锁与同一个事务内完成，
// 避免并发提交各自新建周期。
type TrashService struct {
	db       *gorm.DB
	locker   Locker
	metrics  *metrics.Metrics
	maxSplit int
	now      func() time.Time
}

// AssignInput 描述一条新记录
// TrackingPeriodID 非空时跳过划分逻辑，直接归入指定周期（用于补录历史数据）
type AssignInput struct {
	HouseholdID      uint
	Date             time.Time
	Litres           float64
	TrackingPeriodID *uint
}

// NewTrashService 构造 TrashService，maxSplit <= 0 时使用默认间隔
func NewTrashService(gdb *gorm.DB, maxSplit int) *TrashService {
	if maxSplit <= 0 {
		maxSplit = tracking.DefaultMaxTrackingSplit
	}
	return &TrashService{
		db:       gdb,
		locker:   cache.NewKeyedMutex(),
		maxSplit: maxSplit,
		now:      time.Now,
	}
}

// WithLocker 替换住户锁实现，例如 Redis 分布式锁
func (s *TrashService) WithLocker(locker Locker) *TrashService {
	if locker != nil {
		s.locker = locker
	}
	return s
}

// WithMetrics 设置指标收集器
func (s *TrashService) WithMetrics(m *metrics.Metrics) *TrashService {
	s.metrics = m
	return s
}

// WithClock 允许在测试中固定“今天”
func (s *TrashService) WithClock(now func() time.Time) *TrashService {
	if now != nil {
		s.now = now
	}
	return s
}

// Assign 写入一条新记录并确定其追踪周期：
// 住户最近一条记录所在周期仍为 PROGRESS 且最新日期晚于 today-maxSplit 时延续该周期，
// 否则新建 PROGRESS 周期。
func (s *TrashService) Assign(input AssignInput) (*db.Trash, error) {
	if err := validateVolume(input.Litres); err != nil {
		return nil, err
	}
	if input.HouseholdID == 0 {
		return nil, fmt.Errorf("%w: household is required", ErrValidation)
	}

	date := tracking.Day(input.Date)

	release, err := s.locker.Acquire(householdLockKey(input.HouseholdID))
	if err != nil {
		return nil, fmt.Errorf("lock household: %w", err)
	}
	defer release()

	var (
		record   db.Trash
		decision tracking.Decision
	)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var household db.Household
		if err := tx.First(&household, input.HouseholdID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrHouseholdNotFound
			}
			return fmt.Errorf("get household: %w", err)
		}

		if err := checkSameDay(tx, household, date); err != nil {
			return err
		}

		periodID, d, err := s.resolvePeriod(tx, household.ID, input.TrackingPeriodID)
		if err != nil {
			return err
		}
		decision = d

		record = db.Trash{
			Date:             date,
			HouseholdID:      household.ID,
			Volume:           input.Litres,
			TrackingPeriodID: periodID,
		}
		if err := tx.Create(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrUniquenessViolation
			}
			return fmt.Errorf("create trash: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Assigned(decision.String())
	log.Printf("[tracking] household=%d date=%s period=%d outcome=%s", record.HouseholdID, date.Format(dateLayout), record.TrackingPeriodID, decision)
	return &record, nil
}

func (s *TrashService) resolvePeriod(tx *gorm.DB, householdID uint, forced *uint) (uint, tracking.Decision, error) {
	if forced != nil {
		var period db.TrackingPeriod
		if err := tx.First(&period, *forced).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, tracking.DecisionForced, ErrPeriodNotFound
			}
			return 0, tracking.DecisionForced, fmt.Errorf("get tracking period: %w", err)
		}
		return period.ID, tracking.DecisionForced, nil
	}

	prev, prevPeriodID, err := previousPeriod(tx, householdID)
	if err != nil {
		return 0, tracking.DecisionNew, err
	}

	decision := tracking.Decide(prev, tracking.Cutoff(s.now(), s.maxSplit))
	if decision == tracking.DecisionExtend {
		return prevPeriodID, decision, nil
	}

	period := db.TrackingPeriod{Status: string(tracking.StatusProgress)}
	if err := tx.Create(&period).Error; err != nil {
		return 0, decision, fmt.Errorf("create tracking period: %w", err)
	}
	return period.ID, decision, nil
}

// previousPeriod 返回住户最近一条记录所在周期的状态与最新日期
func previousPeriod(tx *gorm.DB, householdID uint) (*tracking.Previous, uint, error) {
	var last db.Trash
	err := tx.Where("household_id = ?", householdID).Order("date DESC").First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("find last trash: %w", err)
	}

	var period db.TrackingPeriod
	if err := tx.First(&period, last.TrackingPeriodID).Error; err != nil {
		return nil, 0, fmt.Errorf("get tracking period: %w", err)
	}

	var latest db.Trash
	if err := tx.Where("tracking_period_id = ?", period.ID).Order("date DESC").First(&latest).Error; err != nil {
		return nil, 0, fmt.Errorf("find period latest: %w", err)
	}

	status, err := tracking.ParseStatus(period.Status)
	if err != nil {
		return nil, 0, err
	}
	return &tracking.Previous{Status: status, Latest: latest.Date}, period.ID, nil
}

// checkSameDay 同一住户同一天重复返回 ErrUniquenessViolation；
// 同一用户的其他住户在同一天已有记录时返回 ErrValidation。
func checkSameDay(tx *gorm.DB, household db.Household, date time.Time) error {
	var count int64
	if err := tx.Model(&db.Trash{}).
		Where("household_id = ? AND date = ?", household.ID, date).
		Count(&count).Error; err != nil {
		return fmt.Errorf("check duplicate trash: %w", err)
	}
	if count > 0 {
		return ErrUniquenessViolation
	}

	if err := tx.Model(&db.Trash{}).
		Where("date = ?", date).
		Where("household_id <> ?", household.ID).
		Where("household_id IN (?)", tx.Model(&db.Household{}).Select("id").Where("user_id = ?", household.UserID)).
		Count(&count).Error; err != nil {
		return fmt.Errorf("check cross-household trash: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: can't have multiple trash records for same user on same day", ErrValidation)
	}
	return nil
}

// Save 对应 saveTrash 变更：用户当天已有记录则修改体积，否则归入当前住户新建记录
func (s *TrashService) Save(userID uint, date time.Time, unit tracking.Unit, volume float64) (*db.Trash, error) {
	if unit != tracking.UnitLitres && unit != tracking.UnitGallons {
		return nil, fmt.Errorf("%w: unit must be litres or gallons", ErrValidation)
	}
	litres := tracking.ToLitres(volume, unit)
	if err := validateVolume(litres); err != nil {
		return nil, err
	}

	existing, err := s.GetForUser(userID, date)
	switch {
	case err == nil:
		return s.UpdateVolume(existing.ID, litres)
	case !errors.Is(err, ErrTrashNotFound):
		return nil, err
	}

	var profile db.TrashProfile
	if err := s.db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get trash profile: %w", err)
	}

	return s.Assign(AssignInput{HouseholdID: profile.CurrentHouseholdID, Date: date, Litres: litres})
}

// UpdateVolume 修改已有记录的体积，不会改变其周期归属
func (s *TrashService) UpdateVolume(id uint, litres float64) (*db.Trash, error) {
	if err := validateVolume(litres); err != nil {
		return nil, err
	}

	var record db.Trash
	if err := s.db.First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTrashNotFound
		}
		return nil, fmt.Errorf("get trash: %w", err)
	}

	record.Volume = litres
	if err := s.db.Model(&record).Update("volume", litres).Error; err != nil {
		return nil, fmt.Errorf("update trash: %w", err)
	}
	return &record, nil
}

// ListForUser 返回用户所有住户的记录，按日期升序
func (s *TrashService) ListForUser(userID uint) ([]db.Trash, error) {
	var records []db.Trash
	if err := s.db.Where("household_id IN (?)", s.db.Model(&db.Household{}).Select("id").Where("user_id = ?", userID)).
		Order("date ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list trash: %w", err)
	}
	return records, nil
}

// GetForUser 返回用户在指定日期的记录
func (s *TrashService) GetForUser(userID uint, date time.Time) (*db.Trash, error) {
	var record db.Trash
	err := s.db.Where("household_id IN (?)", s.db.Model(&db.Household{}).Select("id").Where("user_id = ?", userID)).
		Where("date = ?", tracking.Day(date)).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTrashNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trash: %w", err)
	}
	return &record, nil
}

// MissingDates 返回从今天往前 window 天内尚未记录的日期（最多 limit 个，至少包含今天）
func (s *TrashService) MissingDates(userID uint, window, limit int) ([]time.Time, error) {
	today := tracking.Day(s.now())
	dates := []time.Time{today}

	for i := 1; i < window && len(dates) < limit; i++ {
		day := today.AddDate(0, 0, -i)
		if _, err := s.GetForUser(userID, day); err == nil {
			continue
		} else if !errors.Is(err, ErrTrashNotFound) {
			return nil, err
		}
		dates = append(dates, day)
	}
	return dates, nil
}

func validateVolume(litres float64) error {
	if math.IsNaN(litres) || math.IsInf(litres, 0) || litres < 0 {
		return fmt.Errorf("%w: volume must be >= 0", ErrValidation)
	}
	return nil
}

func householdLockKey(id uint) string {
	return fmt.Sprintf("household:%d", id)
}
