package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/trashinator/internal/db"
	"github.com/trashinator/internal/tracking"
	"gorm.io/gorm"
)

var (
	// ErrValidation 表示输入不满足业务约束，错误信息会附带具体原因
	ErrValidation = errors.New("validation error")
	// ErrUniquenessViolation 表示同一住户同一天已存在记录
	ErrUniquenessViolation = errors.New("trash record already exists for household and date")
	// ErrTrashNotFound 在指定记录不存在时返回
	ErrTrashNotFound = errors.New("trash record not found")
	// ErrPeriodNotFound 在指定追踪周期不存在时返回
	ErrPeriodNotFound = errors.New("tracking period not found")
	// ErrHouseholdNotFound 在指定住户不存在时返回
	ErrHouseholdNotFound = errors.New("household not found")
)

// Locker 用于串行化同一住户的周期划分（读-判断-写）
type Locker interface {
	Acquire(key string) (release func(), err error)
}

// SnapshotCache 保存全站统计快照，RedisService 与 cache.Memory 均满足该接口
type SnapshotCache interface {
	Get(key string, dest interface{}) error
	Set(key string, value interface{}, expiration time.Duration) error
	Delete(key string) error
}

// PeriodAggregate 是一个周期及其全部记录，用于推导起止日期与人均每周体积
type PeriodAggregate struct {
	ID         uint
	Status     tracking.Status
	Population int
	Entries    []tracking.Entry
}

// DateSpan 返回周期的起止日期
func (p PeriodAggregate) DateSpan() (began, latest time.Time, ok bool) {
	return tracking.DateSpan(p.Entries)
}

// VolumePerPersonPerWeek 返回人均每周体积（升），不适合计入统计时 ok 为 false
func (p PeriodAggregate) VolumePerPersonPerWeek() (float64, bool) {
	return tracking.VolumePerPersonPerWeek(p.Status, p.Entries, p.Population)
}

// countedPeriods 返回状态为 PROGRESS/COMPLETE 且至少有一条记录的周期查询
func countedPeriods(tx *gorm.DB) *gorm.DB {
	return tx.Model(&db.TrackingPeriod{}).
		Where("status IN ?", []string{string(tracking.StatusProgress), string(tracking.StatusComplete)}).
		Where("id IN (?)", tx.Model(&db.Trash{}).Select("tracking_period_id"))
}

// userPeriodIDs 返回包含该用户任一住户记录的周期 ID 子查询
func userPeriodIDs(tx *gorm.DB, userID uint) *gorm.DB {
	return tx.Model(&db.Trash{}).
		Select("tracking_period_id").
		Where("household_id IN (?)", tx.Model(&db.Household{}).Select("id").Where("user_id = ?", userID))
}

// loadAggregates 加载 query 选出的周期及其记录。
// 人口取周期内最早一条记录所属住户。
func loadAggregates(tx *gorm.DB, query *gorm.DB) ([]PeriodAggregate, error) {
	var periods []db.TrackingPeriod
	if err := query.Order("id ASC").Find(&periods).Error; err != nil {
		return nil, fmt.Errorf("list tracking periods: %w", err)
	}
	if len(periods) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(periods))
	for _, period := range periods {
		ids = append(ids, period.ID)
	}

	var records []db.Trash
	if err := tx.Preload("Household").
		Where("tracking_period_id IN ?", ids).
		Order("date ASC, id ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list period trash: %w", err)
	}

	byPeriod := make(map[uint][]db.Trash, len(periods))
	for _, record := range records {
		byPeriod[record.TrackingPeriodID] = append(byPeriod[record.TrackingPeriodID], record)
	}

	result := make([]PeriodAggregate, 0, len(periods))
	for _, period := range periods {
		status, err := tracking.ParseStatus(period.Status)
		if err != nil {
			return nil, fmt.Errorf("period %d: %w", period.ID, err)
		}
		result = append(result, newAggregate(period.ID, status, byPeriod[period.ID]))
	}
	return result, nil
}

func newAggregate(id uint, status tracking.Status, records []db.Trash) PeriodAggregate {
	agg := PeriodAggregate{ID: id, Status: status, Entries: make([]tracking.Entry, 0, len(records))}
	for _, record := range records {
		agg.Entries = append(agg.Entries, tracking.Entry{Date: record.Date, Litres: record.Volume})
	}
	if len(records) > 0 {
		agg.Population = records[0].Household.Population
	}
	return agg
}

// loadAggregate 加载单个周期，不存在时返回 ErrPeriodNotFound
func loadAggregate(tx *gorm.DB, periodID uint) (PeriodAggregate, error) {
	var period db.TrackingPeriod
	if err := tx.First(&period, periodID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PeriodAggregate{}, ErrPeriodNotFound
		}
		return PeriodAggregate{}, fmt.Errorf("get tracking period: %w", err)
	}

	aggs, err := loadAggregates(tx, tx.Model(&db.TrackingPeriod{}).Where("id = ?", period.ID))
	if err != nil {
		return PeriodAggregate{}, err
	}
	if len(aggs) == 0 {
		return PeriodAggregate{}, ErrPeriodNotFound
	}
	return aggs[0], nil
}
