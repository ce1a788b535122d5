package handler

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/trashinator/internal/db"
	"github.com/trashinator/internal/service"
	"github.com/trashinator/internal/tracking"
)

const (
	// 表单最多回溯的天数与一次最多填写的日期数
	formLookbackDays = 7
	formMaxDates     = 3
)

type saveTrashRequest struct {
	Date   string   `json:"date"`
	Unit   string   `json:"unit"`
	Volume *float64 `json:"volume"`
}

type trashFormField struct {
	Date  string
	Value string
	Error string
}

// SaveTrash 新建或修改用户某天的记录
func (a *API) SaveTrash(c *gin.Context) {
	var payload saveTrashRequest
	if !bindJSON(c, &payload, "date, unit and volume are required") {
		return
	}
	if payload.Volume == nil {
		respondError(c, http.StatusBadRequest, "volume is required")
		return
	}

	date, err := parseDate(payload.Date)
	if err != nil {
		respondServiceError(c, err, "could not save trash")
		return
	}

	unit, err := tracking.ParseUnit(payload.Unit)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	record, err := a.trashes.Save(currentUserID(c), date, unit, *payload.Volume)
	if err != nil {
		respondServiceError(c, err, "could not save trash")
		return
	}

	c.JSON(http.StatusOK, gin.H{"trash": trashPayload(*record)})
}

// ListTrash 返回用户全部记录
func (a *API) ListTrash(c *gin.Context) {
	records, err := a.trashes.ListForUser(currentUserID(c))
	if err != nil {
		respondServiceError(c, err, "could not list trash")
		return
	}

	items := make([]gin.H, 0, len(records))
	for _, record := range records {
		items = append(items, trashPayload(record))
	}
	c.JSON(http.StatusOK, gin.H{"trash": items})
}

// GetTrash 返回用户某天的记录，不存在时为 null
func (a *API) GetTrash(c *gin.Context) {
	date, err := parseDate(c.Param("date"))
	if err != nil {
		respondServiceError(c, err, "could not load trash")
		return
	}

	record, err := a.trashes.GetForUser(currentUserID(c), date)
	if errors.Is(err, service.ErrTrashNotFound) {
		c.JSON(http.StatusOK, gin.H{"trash": nil})
		return
	}
	if err != nil {
		respondServiceError(c, err, "could not load trash")
		return
	}
	c.JSON(http.StatusOK, gin.H{"trash": trashPayload(*record)})
}

// GetPeriod 返回周期的派生信息，不存在时为 null
func (a *API) GetPeriod(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	view, err := a.periods.Get(id)
	if errors.Is(err, service.ErrPeriodNotFound) {
		c.JSON(http.StatusOK, gin.H{"period": nil})
		return
	}
	if err != nil {
		respondServiceError(c, err, "could not load period")
		return
	}
	c.JSON(http.StatusOK, gin.H{"period": periodPayload(*view)})
}

// ListPeriods 返回包含用户记录的全部周期
func (a *API) ListPeriods(c *gin.Context) {
	views, err := a.periods.ListForUser(currentUserID(c))
	if err != nil {
		respondServiceError(c, err, "could not list periods")
		return
	}

	items := make([]gin.H, 0, len(views))
	for _, view := range views {
		items = append(items, periodPayload(view))
	}
	c.JSON(http.StatusOK, gin.H{"periods": items})
}

// CloseStalePeriods 手动触发一次过期周期关闭
func (a *API) CloseStalePeriods(c *gin.Context) {
	result, err := a.periods.CloseStale()
	if err != nil {
		respondServiceError(c, err, "could not close stale periods")
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed": result.Completed, "voided": result.Voided})
}

// ShowTrashForm 渲染最近几天的记录表单，未填写资料时跳转到设置页
func (a *API) ShowTrashForm(c *gin.Context) {
	userID := currentUserID(c)
	profile, err := a.profiles.GetProfile(userID)
	if errors.Is(err, service.ErrProfileNotFound) {
		c.Redirect(http.StatusFound, "/settings")
		return
	}
	if err != nil {
		a.renderHTML(c, http.StatusInternalServerError, "trash_form.html", gin.H{"title": "Trash", "error": "could not load profile"})
		return
	}

	a.renderTrashForm(c, http.StatusOK, userID, profile, nil, "")
}

// SubmitTrashForm 处理表单提交，字段名为 volume[YYYY-MM-DD]
func (a *API) SubmitTrashForm(c *gin.Context) {
	userID := currentUserID(c)
	profile, err := a.profiles.GetProfile(userID)
	if errors.Is(err, service.ErrProfileNotFound) {
		c.Redirect(http.StatusFound, "/settings")
		return
	}
	if err != nil {
		a.renderHTML(c, http.StatusInternalServerError, "trash_form.html", gin.H{"title": "Trash", "error": "could not load profile"})
		return
	}

	raw := c.PostFormMap("volume")
	if len(raw) < 1 || len(raw) > formMaxDates {
		a.renderTrashForm(c, http.StatusBadRequest, userID, profile, nil, "provide between 1 and 3 dates")
		return
	}

	// 只接受表单展示过的日期：今天及之前尚未记录的几天
	openDates, err := a.trashes.MissingDates(userID, formLookbackDays, formMaxDates)
	if err != nil {
		a.renderTrashForm(c, http.StatusInternalServerError, userID, profile, nil, "could not load dates")
		return
	}
	open := make(map[string]bool, len(openDates))
	for _, date := range openDates {
		open[date.Format(dateFormat)] = true
	}

	type entry struct {
		date   time.Time
		volume float64
	}
	entries := make([]entry, 0, len(raw))
	fields := make([]trashFormField, 0, len(raw))
	invalid := false
	for _, key := range sortedKeys(raw) {
		field := trashFormField{Date: key, Value: raw[key]}
		date, dateErr := parseDate(key)
		volume, volumeErr := strconv.ParseFloat(strings.TrimSpace(raw[key]), 64)
		switch {
		case dateErr != nil:
			field.Error = "invalid date"
		case !open[date.Format(dateFormat)]:
			field.Error = "this date is not open for entry"
		case volumeErr != nil:
			field.Error = "enter a number"
		case volume < 0:
			field.Error = "must be zero or more"
		default:
			entries = append(entries, entry{date: date, volume: volume})
		}
		if field.Error != "" {
			invalid = true
		}
		fields = append(fields, field)
	}
	if invalid {
		a.renderTrashForm(c, http.StatusBadRequest, userID, profile, fields, "")
		return
	}

	unit := service.UnitForSystem(profile.System)
	for _, e := range entries {
		if _, err := a.trashes.Save(userID, e.date, unit, e.volume); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, service.ErrValidation) || errors.Is(err, service.ErrUniquenessViolation) {
				status = http.StatusBadRequest
			}
			a.renderTrashForm(c, status, userID, profile, fields, err.Error())
			return
		}
	}

	a.renderTrashForm(c, http.StatusOK, userID, profile, nil, "")
}

func (a *API) renderTrashForm(c *gin.Context, status int, userID uint, profile *db.TrashProfile, fields []trashFormField, formError string) {
	if fields == nil {
		dates, err := a.trashes.MissingDates(userID, formLookbackDays, formMaxDates)
		if err != nil {
			status = http.StatusInternalServerError
			formError = "could not load dates"
		}
		for _, date := range dates {
			fields = append(fields, trashFormField{Date: date.Format(dateFormat)})
		}
	}

	a.renderHTML(c, status, "trash_form.html", gin.H{
		"title":  "Trash",
		"unit":   string(service.UnitForSystem(profile.System)),
		"fields": fields,
		"error":  formError,
		"saved":  status == http.StatusOK && c.Request.Method == http.MethodPost,
	})
}

func trashPayload(record db.Trash) gin.H {
	return gin.H{
		"id":                 record.ID,
		"date":               record.Date.Format(dateFormat),
		"household_id":       record.HouseholdID,
		"tracking_period_id": record.TrackingPeriodID,
		"volume":             volumePayload(record.Volume),
	}
}

func periodPayload(view service.PeriodView) gin.H {
	item := gin.H{
		"id":           view.ID,
		"status":       string(view.Status),
		"status_label": view.Status.Label(),
		"record_count": view.RecordCount,
		"began":        formatDate(view.Began),
		"latest":       formatDate(view.Latest),
	}
	if view.VolumePerPersonPerWeek != nil {
		item["volume_per_person_per_week"] = volumePayload(*view.VolumePerPersonPerWeek)
	} else {
		item["volume_per_person_per_week"] = nil
	}
	return item
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys
}
