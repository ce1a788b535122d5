package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/trashinator/internal/service"
)

// Services 汇总 handler 依赖的业务服务
type Services struct {
	Trashes  *service.TrashService
	Periods  *service.PeriodService
	Stats    *service.StatsService
	Profiles *service.ProfileService
	Auth     *service.AuthService
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	trashes  *service.TrashService
	periods  *service.PeriodService
	stats    *service.StatsService
	profiles *service.ProfileService
	auth     *service.AuthService
}

// NewAPI constructs a handler set with shared services.
func NewAPI(s Services) *API {
	return &API{
		trashes:  s.Trashes,
		periods:  s.Periods,
		stats:    s.Stats,
		profiles: s.Profiles,
		auth:     s.Auth,
	}
}

const siteName = "Trashinator"

// renderHTML 为模板统一附加站点名称与当前登录用户
func (a *API) renderHTML(c *gin.Context, status int, template string, data gin.H) {
	payload := gin.H{}
	for key, value := range data {
		payload[key] = value
	}
	if _, exists := payload["siteName"]; !exists {
		payload["siteName"] = siteName
	}
	if _, exists := payload["username"]; !exists {
		if username, ok := c.Get(usernameContextKey); ok {
			payload["username"] = username
		}
	}

	c.HTML(status, template, payload)
}
