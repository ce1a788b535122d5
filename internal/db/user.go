package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User 是登录账号；身份本身由令牌服务解析，这里只保存凭据
type User struct {
	gorm.Model
	Username string `gorm:"unique;not null"`
	Password string `gorm:"not null"`
	// IsAdmin 允许调用关闭过期周期、重算全站统计等运维接口
	IsAdmin bool `gorm:"not null;default:false"`
}

// ErrUserExists 表示用户名已被占用
var ErrUserExists = errors.New("user already exists")

// CreateUser 以 bcrypt 哈希保存密码并创建普通账号
func CreateUser(gdb *gorm.DB, username, password string) (*User, error) {
	return createUser(gdb, username, password, false)
}

// CreateAdminUser 创建可以调用运维接口的管理员账号
func CreateAdminUser(gdb *gorm.DB, username, password string) (*User, error) {
	return createUser(gdb, username, password, true)
}

func createUser(gdb *gorm.DB, username, password string, admin bool) (*User, error) {
	trimmedUser := strings.TrimSpace(username)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedUser == "" || trimmedPassword == "" {
		return nil, errors.New("username and password are required")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := User{Username: trimmedUser, Password: string(hashed), IsAdmin: admin}
	if err := gdb.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return &user, nil
}

// EnsureUser 存在性检查：若提供的用户名与密码均非空且不存在对应账号，则创建一个 bcrypt 哈希的管理员。
// 账号已存在时确保其具有管理员权限。
func EnsureUser(username, password string) error {
	trimmedUser := strings.TrimSpace(username)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedUser == "" || trimmedPassword == "" {
		return nil
	}

	if DB == nil {
		return errors.New("database not initialized")
	}

	var existing User
	if err := DB.Where("username = ?", trimmedUser).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		_, err = CreateAdminUser(DB, trimmedUser, trimmedPassword)
		return err
	}

	if !existing.IsAdmin {
		return DB.Model(&existing).Update("is_admin", true).Error
	}
	return nil
}

// CheckPassword 校验明文密码是否与哈希匹配
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}
