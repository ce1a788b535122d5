package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/trashinator/internal/db"
	"github.com/trashinator/internal/metrics"
	"github.com/trashinator/internal/tracking"
	"gorm.io/gorm"
)

// PeriodService 负责追踪周期的关闭与派生数据
type PeriodService struct {
	db       *gorm.DB
	metrics  *metrics.Metrics
	maxSplit int
	now      func() time.Time
}

// CloseResult 汇总一次过期周期扫描
type CloseResult struct {
	Completed int64
	Voided    int64
}

// PeriodView 是周期对外展示的派生视图
type PeriodView struct {
	ID                     uint
	Status                 tracking.Status
	RecordCount            int
	Began                  *time.Time
	Latest                 *time.Time
	VolumePerPersonPerWeek *float64
}

// NewPeriodService 构造 PeriodService，maxSplit <= 0 时使用默认间隔
func NewPeriodService(gdb *gorm.DB, maxSplit int) *PeriodService {
	if maxSplit <= 0 {
		maxSplit = tracking.DefaultMaxTrackingSplit
	}
	return &PeriodService{db: gdb, maxSplit: maxSplit, now: time.Now}
}

// WithMetrics 设置指标收集器
func (s *PeriodService) WithMetrics(m *metrics.Metrics) *PeriodService {
	s.metrics = m
	return s
}

// WithClock 允许在测试中固定“今天”
func (s *PeriodService) WithClock(now func() time.Time) *PeriodService {
	if now != nil {
		s.now = now
	}
	return s
}

// CloseStale 将最新记录早于 today-maxSplit 的 PROGRESS 周期关闭：
// 记录数 >= 2 的转为 COMPLETE，其余（含没有记录的周期）转为 VOID。
// 更新均以 status = PROGRESS 为条件，重复执行不会产生新的转换。
func (s *PeriodService) CloseStale() (CloseResult, error) {
	cutoff := tracking.Cutoff(s.now(), s.maxSplit)
	var result CloseResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		stale := func(having string) *gorm.DB {
			return tx.Model(&db.Trash{}).
				Select("tracking_period_id").
				Group("tracking_period_id").
				Having("MAX(date) < ? AND "+having, cutoff, tracking.MinCompleteRecords)
		}

		completed := tx.Model(&db.TrackingPeriod{}).
			Where("status = ?", string(tracking.StatusProgress)).
			Where("id IN (?)", stale("COUNT(*) >= ?")).
			Update("status", string(tracking.StatusComplete))
		if completed.Error != nil {
			return fmt.Errorf("complete stale periods: %w", completed.Error)
		}
		result.Completed = completed.RowsAffected

		voided := tx.Model(&db.TrackingPeriod{}).
			Where("status = ?", string(tracking.StatusProgress)).
			Where("id IN (?) OR id NOT IN (?)", stale("COUNT(*) < ?"), tx.Model(&db.Trash{}).Select("tracking_period_id")).
			Update("status", string(tracking.StatusVoid))
		if voided.Error != nil {
			return fmt.Errorf("void stale periods: %w", voided.Error)
		}
		result.Voided = voided.RowsAffected
		return nil
	})
	if err != nil {
		return CloseResult{}, err
	}

	s.metrics.Closed(result.Completed, result.Voided)
	log.Printf("[tracking] closed stale periods cutoff=%s completed=%d voided=%d", cutoff.Format(dateLayout), result.Completed, result.Voided)
	return result, nil
}

// DateSpan 返回周期的起止日期；周期不存在或没有记录时 ok 为 false
func (s *PeriodService) DateSpan(periodID uint) (began, latest time.Time, ok bool, err error) {
	agg, err := loadAggregate(s.db, periodID)
	if errors.Is(err, ErrPeriodNotFound) {
		return time.Time{}, time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	began, latest, ok = agg.DateSpan()
	return began, latest, ok, nil
}

// VolumePerPersonPerWeek 返回周期的人均每周体积（升）；不存在或无意义时 ok 为 false
func (s *PeriodService) VolumePerPersonPerWeek(periodID uint) (float64, bool, error) {
	agg, err := loadAggregate(s.db, periodID)
	if errors.Is(err, ErrPeriodNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	value, ok := agg.VolumePerPersonPerWeek()
	return value, ok, nil
}

// Get 返回周期的派生视图
func (s *PeriodService) Get(periodID uint) (*PeriodView, error) {
	agg, err := loadAggregate(s.db, periodID)
	if err != nil {
		return nil, err
	}
	view := newPeriodView(agg)
	return &view, nil
}

// ListForUser 返回包含该用户记录的全部周期，按 ID 升序
func (s *PeriodService) ListForUser(userID uint) ([]PeriodView, error) {
	aggs, err := loadAggregates(s.db, s.db.Model(&db.TrackingPeriod{}).Where("id IN (?)", userPeriodIDs(s.db, userID)))
	if err != nil {
		return nil, err
	}

	views := make([]PeriodView, 0, len(aggs))
	for _, agg := range aggs {
		views = append(views, newPeriodView(agg))
	}
	return views, nil
}

func newPeriodView(agg PeriodAggregate) PeriodView {
	view := PeriodView{ID: agg.ID, Status: agg.Status, RecordCount: len(agg.Entries)}
	if began, latest, ok := agg.DateSpan(); ok {
		view.Began = &began
		view.Latest = &latest
	}
	if value, ok := agg.VolumePerPersonPerWeek(); ok {
		view.VolumePerPersonPerWeek = &value
	}
	return view
}
