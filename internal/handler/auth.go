package handler

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/user/moodflix/internal/middleware"
	"github.com/user/moodflix/internal/model"
	"github.com/user/moodflix/internal/repository"
	"github.com/user/moodflix/internal/service"
	"github.com/user/moodflix/internal/utils"
)

const oauthStateKey = "oauth_state"

type signupRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginPage 登录页，已登录直接回首页
func (h *Handler) LoginPage(c *gin.Context) {
	if middleware.GetUserID(c) > 0 {
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.HTML(http.StatusOK, "login.html", h.RenderData(c, gin.H{
		"Title":    "Sign in - " + h.Config.SiteName,
		"Redirect": safeRedirect(c.Query("redirect")),
		"Error":    c.Query("error"),
	}))
}

// RegisterPage 注册页
func (h *Handler) RegisterPage(c *gin.Context) {
	if middleware.GetUserID(c) > 0 {
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.HTML(http.StatusOK, "register.html", h.RenderData(c, gin.H{
		"Title": "Create account - " + h.Config.SiteName,
	}))
}

// Session 当前登录用户
func (h *Handler) Session(c *gin.Context) {
	uid := middleware.GetUserID(c)
	if uid == 0 {
		utils.Success(c, gin.H{"user": nil})
		return
	}

	user, err := h.Repos.User.FindByID(uid)
	if err != nil {
		log.Printf("[Auth] 查询会话用户 %d 失败: %v", uid, err)
		utils.Success(c, gin.H{"user": nil})
		return
	}
	if user == nil {
		utils.Success(c, gin.H{"user": nil})
		return
	}
	utils.Success(c, gin.H{"user": user.Public()})
}

// Signup 注册
func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" ||
		strings.TrimSpace(req.Email) == "" || req.Password == "" {
		utils.BadRequest(c, "All fields are required")
		return
	}
	if len(req.Password) < 6 {
		utils.BadRequest(c, "Password must be at least 6 characters")
		return
	}

	user, err := h.Repos.User.Create(req.FirstName, req.LastName, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			utils.Conflict(c, "User already exists", nil)
			return
		}
		log.Printf("[Auth] 注册失败: %v", err)
		utils.InternalServerError(c, "An error occurred while registering user")
		return
	}

	h.trackActivity(user.ID, model.ActivitySignup, "Created an account", map[string]interface{}{"provider": model.ProviderCredentials})
	utils.Created(c, "User registered successfully", gin.H{"user": user.Public()})
}

// Login 邮箱密码登录
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, validationMessage(err))
		return
	}

	user, err := h.Repos.User.FindByEmail(req.Email)
	if err != nil {
		log.Printf("[Auth] 查询用户失败: %v", err)
		utils.InternalServerError(c, "")
		return
	}
	if user == nil || !h.Repos.User.CheckPassword(user, req.Password) {
		utils.Unauthorized(c, "Invalid email or password")
		return
	}

	token, err := h.signIn(c, user)
	if err != nil {
		log.Printf("[Auth] 生成 Token 失败: %v", err)
		utils.InternalServerError(c, "Login failed, please try again")
		return
	}

	utils.SuccessWithMessage(c, "Logged in", gin.H{"user": user.Public(), "token": token})
}

// Logout 退出登录
func (h *Handler) Logout(c *gin.Context) {
	uid := middleware.GetUserID(c)
	middleware.ClearTokenCookie(c)

	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		log.Printf("[Auth] 清理 Session 失败: %v", err)
	}

	h.trackActivity(uid, model.ActivityLogout, "Signed out", nil)
	utils.SuccessWithMessage(c, "Logged out", nil)
}

// GoogleLogin 跳转 Google 授权
func (h *Handler) GoogleLogin(c *gin.Context) {
	state, err := service.NewState()
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	authURL, err := h.OAuth.AuthURL(state)
	if err != nil {
		c.Redirect(http.StatusFound, "/login?error="+url.QueryEscape("Google sign-in is not available"))
		return
	}

	session := sessions.Default(c)
	session.Set(oauthStateKey, state)
	if err := session.Save(); err != nil {
		log.Printf("[Auth] 保存 OAuth state 失败: %v", err)
	}

	c.Redirect(http.StatusFound, authURL)
}

// GoogleCallback Google 授权回调
func (h *Handler) GoogleCallback(c *gin.Context) {
	session := sessions.Default(c)
	expected, _ := session.Get(oauthStateKey).(string)
	session.Delete(oauthStateKey)
	_ = session.Save()

	if expected == "" || c.Query("state") != expected {
		c.Redirect(http.StatusFound, "/login?error="+url.QueryEscape("Sign-in session expired, please try again"))
		return
	}
	if c.Query("error") != "" || c.Query("code") == "" {
		c.Redirect(http.StatusFound, "/login?error="+url.QueryEscape("Google sign-in was cancelled"))
		return
	}

	profile, err := h.OAuth.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		log.Printf("[Auth] Google 登录失败: %v", err)
		c.Redirect(http.StatusFound, "/login?error="+url.QueryEscape("Google sign-in failed"))
		return
	}

	user, err := h.Repos.User.UpsertGoogleUser(profile.Sub, profile.Email, profile.Name, profile.Picture)
	if err != nil {
		log.Printf("[Auth] 保存 Google 用户失败: %v", err)
		c.Redirect(http.StatusFound, "/login?error="+url.QueryEscape("Google sign-in failed"))
		return
	}

	if _, err := h.signIn(c, user); err != nil {
		log.Printf("[Auth] 生成 Token 失败: %v", err)
		c.Redirect(http.StatusFound, "/login?error="+url.QueryEscape("Google sign-in failed"))
		return
	}
	c.Redirect(http.StatusFound, "/")
}

// signIn 下发 JWT Cookie 并写入 Session
func (h *Handler) signIn(c *gin.Context, user *model.User) (string, error) {
	token, err := middleware.GenerateToken(user.ID, user.Email, user.Role, h.Config.AppSecret, h.Config.JWTExpiry)
	if err != nil {
		return "", err
	}
	middleware.SetTokenCookie(c, token, h.Config.JWTExpiry)

	session := sessions.Default(c)
	session.Set(sessionUserKey, model.SessionUser{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.DisplayName(),
		Role:  user.Role,
	})
	if err := session.Save(); err != nil {
		log.Printf("[Auth] 保存 Session 失败: %v", err)
	}

	if err := h.Repos.User.TouchLogin(user.ID); err != nil {
		log.Printf("[Auth] 更新登录时间失败: %v", err)
	}
	h.trackActivity(user.ID, model.ActivityLogin, "Signed in", map[string]interface{}{"provider": user.Provider})
	return token, nil
}

// safeRedirect 只允许站内相对路径
func safeRedirect(target string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return "/"
	}
	return target
}
