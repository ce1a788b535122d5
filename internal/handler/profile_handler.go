package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/trashinator/internal/db"
	"github.com/trashinator/internal/service"
)

type profileRequest struct {
	System     string `json:"system"`
	Country    string `json:"country"`
	Population int    `json:"population"`
}

type currentHouseholdRequest struct {
	HouseholdID uint `json:"household_id"`
}

type profileFormValues struct {
	System     string
	Country    string
	Population string
}

// GetProfile 返回当前用户的资料，未填写时为 null
func (a *API) GetProfile(c *gin.Context) {
	profile, err := a.profiles.GetProfile(currentUserID(c))
	if errors.Is(err, service.ErrProfileNotFound) {
		c.JSON(http.StatusOK, gin.H{"profile": nil})
		return
	}
	if err != nil {
		respondServiceError(c, err, "could not load profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profilePayload(*profile)})
}

// SaveProfile 创建或更新当前用户的资料
func (a *API) SaveProfile(c *gin.Context) {
	var payload profileRequest
	if !bindJSON(c, &payload, "system, country and population are required") {
		return
	}

	profile, err := a.profiles.SaveProfile(currentUserID(c), service.ProfileInput{
		System:     payload.System,
		Country:    payload.Country,
		Population: payload.Population,
	})
	if err != nil {
		respondServiceError(c, err, "could not save profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profilePayload(*profile)})
}

// SetCurrentHousehold 切换当前住户
func (a *API) SetCurrentHousehold(c *gin.Context) {
	var payload currentHouseholdRequest
	if !bindJSON(c, &payload, "household_id is required") {
		return
	}

	profile, err := a.profiles.SetCurrentHousehold(currentUserID(c), payload.HouseholdID)
	if err != nil {
		respondServiceError(c, err, "could not change household")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profilePayload(*profile)})
}

// ListHouseholds 返回当前用户的全部住户
func (a *API) ListHouseholds(c *gin.Context) {
	households, err := a.profiles.ListHouseholds(currentUserID(c))
	if err != nil {
		respondServiceError(c, err, "could not list households")
		return
	}

	items := make([]gin.H, 0, len(households))
	for _, household := range households {
		items = append(items, householdPayload(household))
	}
	c.JSON(http.StatusOK, gin.H{"households": items})
}

// ShowProfileForm 渲染资料表单，已有资料时回填
func (a *API) ShowProfileForm(c *gin.Context) {
	values := profileFormValues{System: db.SystemUS, Country: "USA", Population: "1"}

	profile, err := a.profiles.GetProfile(currentUserID(c))
	switch {
	case err == nil:
		values = profileFormValues{
			System:     profile.System,
			Country:    profile.CurrentHousehold.Country,
			Population: strconv.Itoa(profile.CurrentHousehold.Population),
		}
	case !errors.Is(err, service.ErrProfileNotFound):
		a.renderProfileForm(c, http.StatusInternalServerError, values, "could not load profile", false)
		return
	}

	a.renderProfileForm(c, http.StatusOK, values, "", false)
}

// SubmitProfileForm 保存资料表单，校验失败返回 400 并回显表单
func (a *API) SubmitProfileForm(c *gin.Context) {
	values := profileFormValues{
		System:     strings.TrimSpace(c.PostForm("system")),
		Country:    strings.TrimSpace(c.PostForm("country")),
		Population: strings.TrimSpace(c.PostForm("population")),
	}

	population, err := strconv.Atoi(values.Population)
	if err != nil {
		a.renderProfileForm(c, http.StatusBadRequest, values, "household size must be a whole number", false)
		return
	}

	_, err = a.profiles.SaveProfile(currentUserID(c), service.ProfileInput{
		System:     values.System,
		Country:    values.Country,
		Population: population,
	})
	if err != nil {
		status := http.StatusInternalServerError
		message := "could not save profile"
		if errors.Is(err, service.ErrValidation) {
			status = http.StatusBadRequest
			message = err.Error()
		}
		a.renderProfileForm(c, status, values, message, false)
		return
	}

	a.renderProfileForm(c, http.StatusOK, values, "", true)
}

func (a *API) renderProfileForm(c *gin.Context, status int, values profileFormValues, formError string, saved bool) {
	a.renderHTML(c, status, "trash_profile_form.html", gin.H{
		"title": "Settings",
		"form":  values,
		"systems": []gin.H{
			{"value": db.SystemUS, "label": "US (gallons)"},
			{"value": db.SystemMetric, "label": "Metric (litres)"},
		},
		"error": formError,
		"saved": saved,
	})
}

func profilePayload(profile db.TrashProfile) gin.H {
	return gin.H{
		"system":            profile.System,
		"unit":              string(service.UnitForSystem(profile.System)),
		"created":           profile.Created.Format(dateFormat),
		"current_household": householdPayload(profile.CurrentHousehold),
	}
}

func householdPayload(household db.Household) gin.H {
	return gin.H{
		"id":         household.ID,
		"population": household.Population,
		"country":    household.Country,
	}
}
