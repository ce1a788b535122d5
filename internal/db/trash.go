package db

import "time"

// TrackingPeriod 表示一段持续提交记录的时间区间。
// 起止日期不落库，由所属 Trash 记录推导；住户同样通过记录间接获得。
type TrackingPeriod struct {
	ID        uint   `gorm:"primaryKey"`
	Status    string `gorm:"size:8;not null;default:PROGRESS;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定自定义表名。
func (TrackingPeriod) TableName() string {
	return "tracking_periods"
}

// Trash 记录某个住户某一天的垃圾体积，统一以升存储。
// HouseholdID + Date 采用唯一索引，同一住户每天只有一条记录。
type Trash struct {
	ID               uint           `gorm:"primaryKey"`
	Date             time.Time      `gorm:"not null;index;uniqueIndex:idx_trash_household_date"`
	HouseholdID      uint           `gorm:"not null;index;uniqueIndex:idx_trash_household_date"`
	Household        Household      `gorm:"constraint:OnDelete:RESTRICT"`
	Volume           float64        `gorm:"not null"`
	TrackingPeriodID uint           `gorm:"not null;index"`
	TrackingPeriod   TrackingPeriod `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName 指定自定义表名。
func (Trash) TableName() string {
	return "trashes"
}

// SiteStats 缓存全站人均每周体积的均值与标准差（升），只保留 ID=1 一行。
type SiteStats struct {
	ID                      uint    `gorm:"primaryKey"`
	VolumePerPersonPerWeek  float64 `gorm:"default:0"`
	VolumeStandardDeviation float64 `gorm:"default:0"`
	PeriodCount             int     `gorm:"default:0"`
	RecalculatedAt          time.Time
	UpdatedAt               time.Time
}

// SiteStatsID 是 SiteStats 唯一一行的主键
const SiteStatsID = 1

// TableName 指定自定义表名。
func (SiteStats) TableName() string {
	return "site_stats"
}
