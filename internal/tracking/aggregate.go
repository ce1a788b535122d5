package tracking

import (
	"math"
	"time"
)

// Entry 是周期内单日的体积记录（升）
type Entry struct {
	Date   time.Time
	Litres float64
}

// DateSpan 返回记录的最早与最晚日期，没有记录时 ok 为 false
func DateSpan(entries []Entry) (began, latest time.Time, ok bool) {
	if len(entries) == 0 {
		return time.Time{}, time.Time{}, false
	}

	began = Day(entries[0].Date)
	latest = began
	for _, entry := range entries[1:] {
		day := Day(entry.Date)
		if day.Before(began) {
			began = day
		}
		if day.After(latest) {
			latest = day
		}
	}
	return began, latest, true
}

// Weeks 计算跨度对应的周数，不足一周按一周计，至少为 1
func Weeks(began, latest time.Time) int {
	days := int(Day(latest).Sub(Day(began)).Hours() / 24)
	weeks := int(math.Ceil(float64(days) / 7.0))
	if weeks <= 0 {
		weeks = 1
	}
	return weeks
}

// VolumePerPersonPerWeek 计算周期的人均每周体积（升）。
// VOID 周期、空周期、人口非法或结果恰为 0 时 ok 为 false，调用方不应将其计入平均值。
func VolumePerPersonPerWeek(status Status, entries []Entry, population int) (float64, bool) {
	if status == StatusVoid || population < 1 {
		return 0, false
	}

	began, latest, ok := DateSpan(entries)
	if !ok {
		return 0, false
	}

	var total float64
	for _, entry := range entries {
		total += entry.Litres
	}

	value := total / float64(population) / float64(Weeks(began, latest))
	if value == 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}
