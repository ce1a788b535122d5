package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/trashinator/internal/db"
	"github.com/trashinator/internal/tracking"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// today 作为测试中的“今天”
var today = time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:service-%d?mode=memory&cache=shared", time.Now().UnixNano())
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
	return gdb
}

func createUser(t *testing.T, gdb *gorm.DB, username string) db.User {
	t.Helper()
	user := db.User{Username: username, Password: "not-a-hash"}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func createHousehold(t *testing.T, gdb *gorm.DB, userID uint, population int) db.Household {
	t.Helper()
	household := db.Household{UserID: userID, Population: population, Country: "USA"}
	if err := gdb.Create(&household).Error; err != nil {
		t.Fatalf("failed to create household: %v", err)
	}
	return household
}

// dailyTrash 模拟用户每天当天提交：提交时的“今天”即记录日期
type dailyTrash struct {
	svc     *TrashService
	current time.Time
}

func newDailyTrash(gdb *gorm.DB) *dailyTrash {
	d := &dailyTrash{current: today}
	d.svc = NewTrashService(gdb, tracking.DefaultMaxTrackingSplit).WithClock(func() time.Time { return d.current })
	return d
}

func (d *dailyTrash) submit(t *testing.T, householdID uint, date time.Time, litres float64) db.Trash {
	t.Helper()
	d.current = date
	record, err := d.svc.Assign(AssignInput{HouseholdID: householdID, Date: date, Litres: litres})
	if err != nil {
		t.Fatalf("assign %s failed: %v", date.Format(dateLayout), err)
	}
	return *record
}

func day(offset int) time.Time {
	return today.AddDate(0, 0, offset)
}

func clockAt(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func periodStatus(t *testing.T, gdb *gorm.DB, id uint) tracking.Status {
	t.Helper()
	var period db.TrackingPeriod
	if err := gdb.First(&period, id).Error; err != nil {
		t.Fatalf("failed to load period %d: %v", id, err)
	}
	return tracking.Status(period.Status)
}
