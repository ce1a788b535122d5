package db

import "time"

// 度量体系，对应个人资料中的 System 字段
const (
	SystemUS     = "U"
	SystemMetric = "M"
)

// Household 描述一个住户的人口与所在国家，Trash 记录通过它关联到用户。
// 创建后不再原地修改人口，资料变更时会切换到另一条 Household，
// 这样历史记录的人均计算不受影响。
type Household struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     uint   `gorm:"index;not null"`
	User       User   `gorm:"constraint:OnDelete:CASCADE"`
	Population int    `gorm:"not null"`
	Country    string `gorm:"size:3;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName 指定自定义表名。
func (Household) TableName() string {
	return "households"
}

// TrashProfile 保存用户的度量偏好与当前住户，每个用户至多一条
type TrashProfile struct {
	ID                 uint      `gorm:"primaryKey"`
	UserID             uint      `gorm:"uniqueIndex;not null"`
	User               User      `gorm:"constraint:OnDelete:CASCADE"`
	CurrentHouseholdID uint      `gorm:"uniqueIndex;not null"`
	CurrentHousehold   Household `gorm:"constraint:OnDelete:RESTRICT"`
	System             string    `gorm:"size:1;not null"`
	Created            time.Time
	UpdatedAt          time.Time
}

// TableName 指定自定义表名。
func (TrashProfile) TableName() string {
	return "trash_profiles"
}
