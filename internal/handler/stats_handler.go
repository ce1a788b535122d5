package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/trashinator/internal/service"
)

// SiteStats 返回最近一次重算的全站统计，不触发计算
func (a *API) SiteStats(c *gin.Context) {
	snapshot, err := a.stats.Load()
	if err != nil {
		respondServiceError(c, err, "could not load site stats")
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": siteStatsPayload(snapshot)})
}

// RecalculateStats 重算全站统计快照
func (a *API) RecalculateStats(c *gin.Context) {
	snapshot, err := a.stats.Recompute()
	if err != nil {
		respondServiceError(c, err, "could not recompute site stats")
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": siteStatsPayload(snapshot)})
}

// MyStats 实时计算当前用户的人均每周体积
func (a *API) MyStats(c *gin.Context) {
	summary, err := a.stats.UserSummary(currentUserID(c))
	if err != nil {
		respondServiceError(c, err, "could not compute user stats")
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": gin.H{
		"volume_per_person_per_week": volumePayload(summary.MeanPerPersonPerWeek),
		"period_count":               summary.PeriodCount,
	}})
}

func siteStatsPayload(snapshot service.SiteSummary) gin.H {
	payload := gin.H{
		"volume_per_person_per_week": volumePayload(snapshot.MeanPerPersonPerWeek),
		"standard_deviation":         volumePayload(snapshot.StdDevPerPersonPerWeek),
		"period_count":               snapshot.PeriodCount,
		"recalculated_at":            nil,
	}
	if !snapshot.RecalculatedAt.IsZero() {
		payload["recalculated_at"] = snapshot.RecalculatedAt
	}
	return payload
}
