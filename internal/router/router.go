package router

import (
	"html/template"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/trashinator/internal/handler"
	"github.com/trashinator/internal/metrics"
)

// SetupRouter 配置 Gin 引擎和路由
// templateGlob 为空时不加载模板，由调用方自行设置 HTMLRender
func SetupRouter(api *handler.API, m *metrics.Metrics, sessionSecret, templateGlob string) *gin.Engine {
	r := gin.Default()
	r.Use(m.Middleware())

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	r.Use(sessions.Sessions("trashinator_session", store))

	r.SetFuncMap(template.FuncMap{
		"upper": strings.ToUpper,
	})
	if templateGlob != "" {
		r.LoadHTMLGlob(templateGlob)
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	r.GET("/login", api.ShowLoginPage)
	r.POST("/login", api.Login)
	r.GET("/logout", api.Logout)

	// 表单页面使用会话认证
	pages := r.Group("")
	pages.Use(api.SessionRequired())
	{
		pages.GET("/", api.ShowTrashForm)
		pages.POST("/", api.SubmitTrashForm)
		pages.GET("/settings", api.ShowProfileForm)
		pages.POST("/settings", api.SubmitProfileForm)
	}

	r.POST("/api/token", api.IssueToken)

	// API 使用令牌认证
	apiGroup := r.Group("/api")
	apiGroup.Use(api.TokenRequired())
	{
		apiGroup.GET("/trash", api.ListTrash)
		apiGroup.POST("/trash", api.SaveTrash)
		apiGroup.GET("/trash/:date", api.GetTrash)

		apiGroup.GET("/periods", api.ListPeriods)
		apiGroup.GET("/periods/:id", api.GetPeriod)

		apiGroup.GET("/profile", api.GetProfile)
		apiGroup.PUT("/profile", api.SaveProfile)
		apiGroup.PUT("/profile/household", api.SetCurrentHousehold)
		apiGroup.GET("/households", api.ListHouseholds)

		apiGroup.GET("/stats/site", api.SiteStats)
		apiGroup.GET("/stats/me", api.MyStats)
	}

	// 运维接口仅限管理员
	adminGroup := apiGroup.Group("")
	adminGroup.Use(api.AdminRequired())
	{
		adminGroup.POST("/periods/close-stale", api.CloseStalePeriods)
		adminGroup.POST("/stats/recalculate", api.RecalculateStats)
	}

	return r
}
