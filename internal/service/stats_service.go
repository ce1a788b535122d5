package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/trashinator/internal/cache"
	"github.com/trashinator/internal/db"
	"github.com/trashinator/internal/metrics"
	"github.com/trashinator/internal/tracking"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const siteStatsCacheKey = "trashinator:site_stats"

// SiteSummary 是全站统计快照，体积单位为升
type SiteSummary struct {
	MeanPerPersonPerWeek   float64   `json:"mean"`
	StdDevPerPersonPerWeek float64   `json:"stddev"`
	PeriodCount            int       `json:"period_count"`
	RecalculatedAt         time.Time `json:"recalculated_at"`
}

// UserSummary 是单个用户的实时统计，体积单位为升
type UserSummary struct {
	MeanPerPersonPerWeek float64
	PeriodCount          int
}

// StatsService 负责全站与个人的人均每周体积统计。
// 全站统计是显式重算的快照，读取不会触发计算；个人统计每次实时计算。
type StatsService struct {
	db      *gorm.DB
	cache   SnapshotCache
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewStatsService 构造 StatsService
func NewStatsService(gdb *gorm.DB) *StatsService {
	return &StatsService{db: gdb, now: time.Now}
}

// WithCache 为快照读取增加缓存层
func (s *StatsService) WithCache(c SnapshotCache) *StatsService {
	s.cache = c
	return s
}

// WithMetrics 设置指标收集器
func (s *StatsService) WithMetrics(m *metrics.Metrics) *StatsService {
	s.metrics = m
	return s
}

// WithClock 允许在测试中固定时间
func (s *StatsService) WithClock(now func() time.Time) *StatsService {
	if now != nil {
		s.now = now
	}
	return s
}

// Recompute 重新计算全站均值与样本标准差，并整行替换快照
func (s *StatsService) Recompute() (SiteSummary, error) {
	aggs, err := loadAggregates(s.db, countedPeriods(s.db))
	if err != nil {
		return SiteSummary{}, err
	}

	summary := tracking.Summarize(meaningfulValues(aggs))
	snapshot := SiteSummary{
		MeanPerPersonPerWeek:   summary.Mean,
		StdDevPerPersonPerWeek: summary.StdDev,
		PeriodCount:            summary.Count,
		RecalculatedAt:         s.now().UTC(),
	}

	row := db.SiteStats{
		ID:                      db.SiteStatsID,
		VolumePerPersonPerWeek:  snapshot.MeanPerPersonPerWeek,
		VolumeStandardDeviation: snapshot.StdDevPerPersonPerWeek,
		PeriodCount:             snapshot.PeriodCount,
		RecalculatedAt:          snapshot.RecalculatedAt,
	}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"volume_per_person_per_week", "volume_standard_deviation", "period_count", "recalculated_at", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return SiteSummary{}, fmt.Errorf("save site stats: %w", err)
	}

	if err := s.replaceCached(snapshot); err != nil {
		return SiteSummary{}, err
	}
	s.metrics.Recomputed(snapshot.MeanPerPersonPerWeek, snapshot.StdDevPerPersonPerWeek, snapshot.PeriodCount)
	log.Printf("[stats] recomputed site stats periods=%d mean=%.2f stddev=%.2f", snapshot.PeriodCount, snapshot.MeanPerPersonPerWeek, snapshot.StdDevPerPersonPerWeek)
	return snapshot, nil
}

// Load 返回最近一次重算的快照；从未重算时返回零值快照
func (s *StatsService) Load() (SiteSummary, error) {
	if s.cache != nil {
		var cached SiteSummary
		err := s.cache.Get(siteStatsCacheKey, &cached)
		if err == nil {
			s.metrics.SnapshotHit()
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			log.Printf("[stats] snapshot cache read failed: %v", err)
		}
		s.metrics.SnapshotMiss()
	}

	var row db.SiteStats
	err := s.db.First(&row, db.SiteStatsID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return SiteSummary{}, nil
	}
	if err != nil {
		return SiteSummary{}, fmt.Errorf("load site stats: %w", err)
	}

	snapshot := SiteSummary{
		MeanPerPersonPerWeek:   row.VolumePerPersonPerWeek,
		StdDevPerPersonPerWeek: row.VolumeStandardDeviation,
		PeriodCount:            row.PeriodCount,
		RecalculatedAt:         row.RecalculatedAt,
	}
	s.storeCached(snapshot)
	return snapshot, nil
}

// UserSummary 实时计算用户参与统计的周期均值
func (s *StatsService) UserSummary(userID uint) (UserSummary, error) {
	query := countedPeriods(s.db).Where("id IN (?)", userPeriodIDs(s.db, userID))
	aggs, err := loadAggregates(s.db, query)
	if err != nil {
		return UserSummary{}, err
	}

	summary := tracking.Summarize(meaningfulValues(aggs))
	return UserSummary{MeanPerPersonPerWeek: summary.Mean, PeriodCount: summary.Count}, nil
}

func (s *StatsService) storeCached(snapshot SiteSummary) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(siteStatsCacheKey, snapshot, 0); err != nil {
		log.Printf("[stats] snapshot cache write failed: %v", err)
	}
}

// replaceCached 写入新快照；写入失败时删除旧快照，让 Load 回退到数据库行
func (s *StatsService) replaceCached(snapshot SiteSummary) error {
	if s.cache == nil {
		return nil
	}
	setErr := s.cache.Set(siteStatsCacheKey, snapshot, 0)
	if setErr == nil {
		return nil
	}
	log.Printf("[stats] snapshot cache write failed, invalidating: %v", setErr)
	if err := s.cache.Delete(siteStatsCacheKey); err != nil {
		return fmt.Errorf("invalidate site stats cache: %w", errors.Join(setErr, err))
	}
	return nil
}

// meaningfulValues 过滤掉无法计算人均每周体积的周期
func meaningfulValues(aggs []PeriodAggregate) []float64 {
	values := make([]float64, 0, len(aggs))
	for _, agg := range aggs {
		if !agg.Status.Counted() {
			continue
		}
		if value, ok := agg.VolumePerPersonPerWeek(); ok {
			values = append(values, value)
		}
	}
	return values
}
