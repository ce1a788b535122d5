package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/trashinator/internal/cache"
	"github.com/trashinator/internal/db"
	"github.com/trashinator/internal/service"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubHTMLRender struct {
	last *stubHTMLInstance
}

type stubHTMLInstance struct {
	name string
	data interface{}
}

func (r *stubHTMLRender) Instance(name string, data interface{}) render.Render {
	r.last = &stubHTMLInstance{name: name, data: data}
	return r.last
}

func (r *stubHTMLInstance) Render(http.ResponseWriter) error {
	return nil
}

func (r *stubHTMLInstance) WriteContentType(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
}

func (r *stubHTMLRender) lastData(t *testing.T) gin.H {
	t.Helper()
	if r.last == nil {
		t.Fatal("expected a template to be rendered")
	}
	data, ok := r.last.data.(gin.H)
	if !ok {
		t.Fatalf("unexpected template data %T", r.last.data)
	}
	return data
}

type testServer struct {
	db       *gorm.DB
	router   *gin.Engine
	renderer *stubHTMLRender
	tokens   *service.TokenService
}

func setupHandlerTest(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := db.Open(dsn, logger.Silent)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := gdb.AutoMigrate(db.Models()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		sqlDB.Close()
	})

	tokens := service.NewTokenService("test-secret", time.Hour)
	api := NewAPI(Services{
		Trashes:  service.NewTrashService(gdb, 3),
		Periods:  service.NewPeriodService(gdb, 3),
		Stats:    service.NewStatsService(gdb).WithCache(cache.NewMemory()),
		Profiles: service.NewProfileService(gdb),
		Auth:     service.NewAuthService(gdb, tokens),
	})

	renderer := &stubHTMLRender{}
	router := gin.New()
	router.HTMLRender = renderer
	router.Use(sessions.Sessions("trashinator_session", cookie.NewStore([]byte("test-secret"))))

	router.GET("/login", api.ShowLoginPage)
	router.POST("/login", api.Login)
	router.GET("/logout", api.Logout)
	pages := router.Group("")
	pages.Use(api.SessionRequired())
	pages.GET("/", api.ShowTrashForm)
	pages.POST("/", api.SubmitTrashForm)
	pages.GET("/settings", api.ShowProfileForm)
	pages.POST("/settings", api.SubmitProfileForm)

	router.POST("/api/token", api.IssueToken)
	apiGroup := router.Group("/api")
	apiGroup.Use(api.TokenRequired())
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
	adminGroup := apiGroup.Group("")
	adminGroup.Use(api.AdminRequired())
	adminGroup.POST("/periods/close-stale", api.CloseStalePeriods)
	adminGroup.POST("/stats/recalculate", api.RecalculateStats)

	return &testServer{db: gdb, router: router, renderer: renderer, tokens: tokens}
}

func (s *testServer) createUser(t *testing.T, username, password string) *db.User {
	t.Helper()
	user, err := db.CreateUser(s.db, username, password)
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return user
}

func (s *testServer) createAdmin(t *testing.T, username, password string) *db.User {
	t.Helper()
	user, err := db.CreateAdminUser(s.db, username, password)
	if err != nil {
		t.Fatalf("create admin failed: %v", err)
	}
	return user
}

func (s *testServer) token(t *testing.T, userID uint) string {
	t.Helper()
	token, err := s.tokens.Issue(userID)
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}
	return token
}

func (s *testServer) doJSON(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	s.router.ServeHTTP(recorder, request)

	var payload map[string]interface{}
	if recorder.Body.Len() > 0 {
		if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode response %q: %v", recorder.Body.String(), err)
		}
	}
	return recorder, payload
}

func (s *testServer) postForm(t *testing.T, path string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		request.AddCookie(c)
	}
	recorder := httptest.NewRecorder()
	s.router.ServeHTTP(recorder, request)
	return recorder
}

func (s *testServer) get(t *testing.T, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		request.AddCookie(c)
	}
	recorder := httptest.NewRecorder()
	s.router.ServeHTTP(recorder, request)
	return recorder
}

// login 通过表单登录并返回会话 cookie
func (s *testServer) login(t *testing.T, username, password string) []*http.Cookie {
	t.Helper()
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	recorder := s.postForm(t, "/login", form, nil)
	if recorder.Code != http.StatusFound {
		t.Fatalf("expected login redirect, got %d", recorder.Code)
	}
	cookies := recorder.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected session cookie")
	}
	return cookies
}
