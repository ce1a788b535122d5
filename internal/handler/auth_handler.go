package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/trashinator/internal/service"
)

const (
	userIDContextKey   = "user_id"
	usernameContextKey = "username"
)

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ShowLoginPage 渲染登录页面
func (a *API) ShowLoginPage(c *gin.Context) {
	a.renderHTML(c, http.StatusOK, "login.html", gin.H{"title": "Log in"})
}

// Login 处理表单登录并写入会话
func (a *API) Login(c *gin.Context) {
	user, err := a.auth.Authenticate(c.PostForm("username"), c.PostForm("password"))
	if err != nil {
		status := http.StatusInternalServerError
		message := "login failed"
		if errors.Is(err, service.ErrInvalidCredentials) {
			status = http.StatusUnauthorized
			message = err.Error()
		}
		a.renderHTML(c, status, "login.html", gin.H{"title": "Log in", "error": message})
		return
	}

	session := sessions.Default(c)
	session.Set(userIDContextKey, user.ID)
	session.Set(usernameContextKey, user.Username)
	if err := session.Save(); err != nil {
		a.renderHTML(c, http.StatusInternalServerError, "login.html", gin.H{"title": "Log in", "error": "could not save session"})
		return
	}

	c.Redirect(http.StatusFound, "/")
}

// Logout 处理用户登出
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.Redirect(http.StatusFound, "/login")
}

// IssueToken 校验账号密码并返回 API 令牌
func (a *API) IssueToken(c *gin.Context) {
	var payload tokenRequest
	if !bindJSON(c, &payload, "username and password are required") {
		return
	}

	token, user, err := a.auth.Login(payload.Username, payload.Password)
	if err != nil {
		respondServiceError(c, err, "could not issue token")
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user_id": user.ID})
}

// TokenRequired 从 Authorization: Bearer 头或 token 参数解析当前用户
func (a *API) TokenRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := a.auth.Resolve(requestToken(c))
		if err != nil {
			respondError(c, http.StatusUnauthorized, service.ErrUnauthenticated.Error())
			c.Abort()
			return
		}
		c.Set(userIDContextKey, userID)
		c.Next()
	}
}

// AdminRequired 限制运维接口只对管理员开放，需放在 TokenRequired 之后
func (a *API) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.auth.RequireAdmin(currentUserID(c)); err != nil {
			respondServiceError(c, err, "could not check permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// SessionRequired 是表单页面的认证中间件
func (a *API) SessionRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, ok := session.Get(userIDContextKey).(uint)
		if !ok || userID == 0 {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Set(userIDContextKey, userID)
		if username, ok := session.Get(usernameContextKey).(string); ok {
			c.Set(usernameContextKey, username)
		}
		c.Next()
	}
}

func requestToken(c *gin.Context) string {
	if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
		if scheme, token, found := strings.Cut(header, " "); found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if token := c.Query("token"); token != "" {
		return token
	}
	return c.PostForm("token")
}

func currentUserID(c *gin.Context) uint {
	return c.GetUint(userIDContextKey)
}
