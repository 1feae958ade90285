package model

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// 登录方式
const (
	ProviderCredentials = "credentials"
	ProviderGoogle      = "google"
)

// User 用户模型
type User struct {
	ID             int            `json:"id" gorm:"primaryKey"`
	Email          string         `json:"email" gorm:"uniqueIndex;not null"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	Name           string         `json:"name"`
	PasswordHash   string         `json:"-"`
	GoogleID       *string        `json:"-" gorm:"uniqueIndex"`
	Image          string         `json:"image"`
	Provider       string         `json:"provider" gorm:"default:credentials"`
	Role           string         `json:"role" gorm:"default:user"`
	FavoriteGenres pq.StringArray `json:"favorite_genres" gorm:"type:text[]"`
	LastLoginAt    *time.Time     `json:"last_login_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// DisplayName 展示用名称，优先 Name，其次姓名拼接，最后邮箱前缀
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if full := strings.TrimSpace(u.FirstName + " " + u.LastName); full != "" {
		return full
	}
	if i := strings.Index(u.Email, "@"); i > 0 {
		return u.Email[:i]
	}
	return u.Email
}

// Public 对外暴露的用户信息
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.DisplayName(),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Image:     u.Image,
	}
}

// PublicUser 会话接口返回的用户信息
type PublicUser struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Image     string `json:"image,omitempty"`
}

// SessionUser 专门用于 Session 存储的用户信息结构
type SessionUser struct {
	ID    int
	Email string
	Name  string
	Role  string
}
