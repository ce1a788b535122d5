package tracking

import "time"

// DefaultMaxTrackingSplit 默认的间隔容忍天数
const DefaultMaxTrackingSplit = 3

// Decision 描述新记录的周期归属
type Decision int

const (
	// DecisionNew 新建一个 PROGRESS 周期
	DecisionNew Decision = iota
	// DecisionExtend 追加到上一条记录所在的周期
	DecisionExtend
	// DecisionForced 调用方显式指定了周期
	DecisionForced
)

// String 用于日志与指标标签
func (d Decision) String() string {
	switch d {
	case DecisionExtend:
		return "extended"
	case DecisionForced:
		return "forced"
	default:
		return "new"
	}
}

// Day 将时间截断到 UTC 零点，所有日期比较都基于它
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Cutoff 返回 today - maxSplit 天
func Cutoff(today time.Time, maxSplit int) time.Time {
	return Day(today).AddDate(0, 0, -maxSplit)
}

// Previous 是同一住户最近一条记录所在周期的快照
type Previous struct {
	Status Status
	Latest time.Time
}

// Decide 决定新记录是延续上一周期还是开启新周期。
// prev 为 nil 表示住户尚无记录。
func Decide(prev *Previous, cutoff time.Time) Decision {
	if prev == nil {
		return DecisionNew
	}
	if prev.Status == StatusProgress && Day(prev.Latest).After(Day(cutoff)) {
		return DecisionExtend
	}
	return DecisionNew
}

// Stale 判断最新记录日期是否严格早于 cutoff
func Stale(latest, cutoff time.Time) bool {
	return Day(latest).Before(Day(cutoff))
}
