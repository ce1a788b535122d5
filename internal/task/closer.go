package task

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/trashinator/internal/service"
)

// StaleCloser 关闭过期的追踪周期
type StaleCloser interface {
	CloseStale() (service.CloseResult, error)
}

// Recomputer 重算全站统计快照
type Recomputer interface {
	Recompute() (service.SiteSummary, error)
}

// Sweep 先关闭过期周期再重算全站统计。
// 关闭失败时仍然重算。
func Sweep(closer StaleCloser, stats Recomputer) error {
	start := time.Now()

	result, closeErr := closer.CloseStale()
	if closeErr != nil {
		log.Printf("[closer] close stale periods failed: %v", closeErr)
	}

	summary, err := stats.Recompute()
	if err != nil {
		log.Printf("[closer] recompute site stats failed: %v", err)
		return err
	}

	log.Printf("[closer] sweep completed in %v completed=%d voided=%d periods=%d",
		time.Since(start).Round(time.Millisecond), result.Completed, result.Voided, summary.PeriodCount)
	return closeErr
}

// RunPeriodCloser 启动时执行一次，之后按 interval 周期执行 Sweep，直到 ctx 取消
func RunPeriodCloser(ctx context.Context, closer StaleCloser, stats Recomputer, interval time.Duration, wg *sync.WaitGroup) {
	defer wg.Done()

	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[closer] period closer started (runs every %v)", interval)
	_ = Sweep(closer, stats)

	for {
		select {
		case <-ticker.C:
			_ = Sweep(closer, stats)
		case <-ctx.Done():
			log.Println("[closer] stopping period closer")
			return
		}
	}
}
