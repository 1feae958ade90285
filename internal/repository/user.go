package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/user/moodflix/internal/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrEmailTaken 邮箱已被注册
var ErrEmailTaken = errors.New("email already registered")

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create 使用邮箱密码创建用户
func (r *UserRepository) Create(firstName, lastName, email, password string) (*model.User, error) {
	// 密码哈希
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        normalizeEmail(email),
		FirstName:    firstName,
		LastName:     lastName,
		Name:         strings.TrimSpace(firstName + " " + lastName),
		PasswordHash: string(hash),
		Provider:     model.ProviderCredentials,
		Role:         "user",
	}

	if err := r.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	return user, nil
}

// FindByEmail 根据邮箱查找用户
func (r *UserRepository) FindByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.db.Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// FindByID 根据 ID 查找用户
func (r *UserRepository) FindByID(id int) (*model.User, error) {
	var user model.User
	err := r.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// UpsertGoogleUser Google 登录：按 google_id 或邮箱关联已有账户，否则新建
func (r *UserRepository) UpsertGoogleUser(googleID, email, name, image string) (*model.User, error) {
	var user model.User
	err := r.db.Where("google_id = ?", googleID).
		Or("email = ?", normalizeEmail(email)).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		first, last, _ := strings.Cut(name, " ")
		user = model.User{
			Email:     normalizeEmail(email),
			Name:      name,
			FirstName: first,
			LastName:  last,
			GoogleID:  &googleID,
			Image:     image,
			Provider:  model.ProviderGoogle,
			Role:      "user",
		}
		if err := r.db.Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"google_id": googleID}
	if user.Image == "" && image != "" {
		updates["image"] = image
	}
	if err := r.db.Model(&user).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CheckPassword 验证密码，第三方登录账户没有密码
func (r *UserRepository) CheckPassword(user *model.User, password string) bool {
	if user.PasswordHash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	return err == nil
}

// TouchLogin 记录最后登录时间
func (r *UserRepository) TouchLogin(userID int) error {
	return r.db.Model(&model.User{}).Where("id = ?", userID).Update("last_login_at", time.Now()).Error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
