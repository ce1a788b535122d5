package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/trashinator/internal/db"
	"github.com/trashinator/internal/tracking"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

var (
	// ErrProfileNotFound 在用户尚未填写资料时返回
	ErrProfileNotFound = errors.New("trash profile not found")
)

// ProfileService 负责用户资料与住户的维护
// 资料变更不会原地修改住户，而是复用或新建一条匹配的住户并设为当前住户

type ProfileService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewProfileService 构造 ProfileService
func NewProfileService(gdb *gorm.DB) *ProfileService {
	return &ProfileService{db: gdb, now: time.Now}
}

// ProfileInput 描述资料表单可设置的字段
type ProfileInput struct {
	System     string
	Country    string
	Population int
}

// GetProfile 返回用户资料并预加载当前住户
func (s *ProfileService) GetProfile(userID uint) (*db.TrashProfile, error) {
	var profile db.TrashProfile
	if err := s.db.Preload("CurrentHousehold").Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get trash profile: %w", err)
	}
	return &profile, nil
}

// SaveProfile 创建或更新用户资料。
// 已有 (population, country) 相同的住户时复用，否则新建。
func (s *ProfileService) SaveProfile(userID uint, input ProfileInput) (*db.TrashProfile, error) {
	system, country, err := validateProfileInput(input)
	if err != nil {
		return nil, err
	}

	var profile db.TrashProfile
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var household db.Household
		err := tx.Where("user_id = ? AND population = ? AND country = ?", userID, input.Population, country).
			Order("id ASC").
			First(&household).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			household = db.Household{UserID: userID, Population: input.Population, Country: country}
			if err := tx.Create(&household).Error; err != nil {
				return fmt.Errorf("create household: %w", err)
			}
		case err != nil:
			return fmt.Errorf("find household: %w", err)
		}

		err = tx.Where("user_id = ?", userID).First(&profile).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			profile = db.TrashProfile{UserID: userID, Created: tracking.Day(s.now())}
		case err != nil:
			return fmt.Errorf("find trash profile: %w", err)
		}

		profile.System = system
		profile.CurrentHouseholdID = household.ID
		profile.CurrentHousehold = household
		if err := tx.Omit("User", "CurrentHousehold").Save(&profile).Error; err != nil {
			return fmt.Errorf("save trash profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// SetCurrentHousehold 切换当前住户，住户必须属于该用户
func (s *ProfileService) SetCurrentHousehold(userID, householdID uint) (*db.TrashProfile, error) {
	var household db.Household
	if err := s.db.First(&household, householdID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHouseholdNotFound
		}
		return nil, fmt.Errorf("get household: %w", err)
	}
	if household.UserID != userID {
		return nil, fmt.Errorf("%w: current household cannot belong to someone else", ErrValidation)
	}

	profile, err := s.GetProfile(userID)
	if err != nil {
		return nil, err
	}

	if err := s.db.Model(profile).Update("current_household_id", household.ID).Error; err != nil {
		return nil, fmt.Errorf("update current household: %w", err)
	}
	profile.CurrentHouseholdID = household.ID
	profile.CurrentHousehold = household
	return profile, nil
}

// ListHouseholds 返回用户的全部住户
func (s *ProfileService) ListHouseholds(userID uint) ([]db.Household, error) {
	var households []db.Household
	if err := s.db.Where("user_id = ?", userID).Order("id ASC").Find(&households).Error; err != nil {
		return nil, fmt.Errorf("list households: %w", err)
	}
	return households, nil
}

func validateProfileInput(input ProfileInput) (system, country string, err error) {
	system = strings.ToUpper(strings.TrimSpace(input.System))
	if system != db.SystemUS && system != db.SystemMetric {
		return "", "", fmt.Errorf("%w: unsupported measurement system %q", ErrValidation, input.System)
	}

	if input.Population < 1 {
		return "", "", fmt.Errorf("%w: population must be >= 1", ErrValidation)
	}

	country, err = NormalizeCountry(input.Country)
	if err != nil {
		return "", "", err
	}
	return system, country, nil
}

// NormalizeCountry 校验 ISO 3166-1 alpha-3 国家代码并返回大写形式
func NormalizeCountry(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != 3 {
		return "", fmt.Errorf("%w: country must be an ISO 3166 alpha-3 code", ErrValidation)
	}

	region, err := language.ParseRegion(code)
	if err != nil || !region.IsCountry() || region.ISO3() != code {
		return "", fmt.Errorf("%w: unknown country %q", ErrValidation, raw)
	}
	return code, nil
}

// UnitForSystem 返回度量体系对应的体积单位
func UnitForSystem(system string) tracking.Unit {
	if system == db.SystemUS {
		return tracking.UnitGallons
	}
	return tracking.UnitLitres
}
