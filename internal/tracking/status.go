package tracking

import (
	"errors"
	"fmt"
)

// Status 表示追踪周期所处的阶段
type Status string

const (
	// StatusProgress 周期仍在接收新的记录
	StatusProgress Status = "PROGRESS"
	// StatusComplete 周期已结束且数据足够
	StatusComplete Status = "COMPLETE"
	// StatusVoid 周期已结束但记录过少，不参与统计
	StatusVoid Status = "VOID"
)

// ErrInvalidTransition 在终态周期上尝试转换时返回
var ErrInvalidTransition = errors.New("invalid tracking period transition")

// MinCompleteRecords 周期被标记为 COMPLETE 所需的最少记录数
const MinCompleteRecords = 2

// ParseStatus 将存储值解析为 Status
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusProgress, StatusComplete, StatusVoid:
		return Status(raw), nil
	default:
		return "", fmt.Errorf("unknown tracking period status %q", raw)
	}
}

// Terminal 判断是否为终态
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusVoid
}

// Counted 判断该状态的周期是否参与统计
func (s Status) Counted() bool {
	return s == StatusProgress || s == StatusComplete
}

// Label 返回面向展示的文字
func (s Status) Label() string {
	switch s {
	case StatusProgress:
		return "in progress"
	case StatusComplete:
		return "complete"
	case StatusVoid:
		return "void"
	default:
		return string(s)
	}
}

// Close 根据记录数计算过期周期的终态：
// 记录数 >= MinCompleteRecords 为 COMPLETE，否则为 VOID。
func (s Status) Close(recordCount int) (Status, error) {
	if s != StatusProgress {
		return s, fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, s)
	}
	if recordCount >= MinCompleteRecords {
		return StatusComplete, nil
	}
	return StatusVoid, nil
}
