package controllers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/expo25/eventpass/middleware"
	"github.com/expo25/eventpass/models"
	"github.com/expo25/eventpass/utils"
)

// UserController handles attendee registration, session restore and the
// check-in progression.
type UserController struct {
	db *gorm.DB
}

// NewUserController creates a UserController.
func NewUserController(db *gorm.DB) *UserController {
	return &UserController{db: db}
}

var mobilePattern = regexp.MustCompile(`^\d{10}$`)

// Register creates an attendee record and opens a session for it.
func (u *UserController) Register(ctx *gin.Context) {
	var req struct {
		Name   string `json:"name" binding:"required"`
		Mobile string `json:"mobile" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "name and mobile number are required")
		return
	}

	name := utils.Sanitize(strings.TrimSpace(req.Name))
	mobile := strings.TrimSpace(req.Mobile)
	if name == "" || mobile == "" {
		utils.Error(ctx, http.StatusBadRequest, 40001, "name and mobile number are required")
		return
	}
	// Validated before any database call
	if !mobilePattern.MatchString(mobile) {
		utils.Error(ctx, http.StatusBadRequest, 40002, "please enter a valid 10-digit mobile number")
		return
	}

	ip := ctx.ClientIP()
	if !utils.RegistrationCooldownTry(ip) {
		utils.Error(ctx, http.StatusTooManyRequests, 42910, "too many attempts, please wait a moment")
		return
	}
	if !utils.RegistrationDailyLimitCheck(ip) {
		utils.Error(ctx, http.StatusTooManyRequests, 42911, "registration limit reached for today")
		return
	}

	// Pre-insert existence query; not a database constraint, so two
	// near-simultaneous registrations can still both pass.
	var existing models.User
	if err := u.db.Where("mobile = ?", mobile).First(&existing).Error; err == nil {
		utils.Error(ctx, http.StatusConflict, 40901, "a user with this mobile number is already registered")
		return
	}

	user := models.User{
		Name:       name,
		Mobile:     mobile,
		RegisterIP: ip,
	}
	if err := u.db.Create(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to register, please try again")
		return
	}
	utils.RegistrationDailyIncrement(ip)
	utils.PublishChange("users")

	token := utils.CreateSession(user)
	utils.Success(ctx, gin.H{
		"user":          user,
		"session_token": token,
	})
}

// Session restores the attendee flow after a reload. The persisted user
// record is the source of truth, so it is re-read and mirrored back into the
// session rather than trusting the cached snapshot.
func (u *UserController) Session(ctx *gin.Context) {
	token, session := currentSession(ctx)

	var user models.User
	if err := u.db.First(&user, session.User.ID).Error; err != nil {
		// Deleted by an administrator while this tab was idle
		photo := utils.DeleteSession(token)
		removeUploadedFile(photo)
		utils.Error(ctx, http.StatusUnauthorized, 40110, "user no longer registered")
		return
	}
	utils.UpdateSessionUser(token, user)

	utils.Success(ctx, gin.H{
		"user":      user,
		"has_photo": session.PhotoPath != "",
	})
}

// Logout clears the session and any cached photo. No backend record is
// touched.
func (u *UserController) Logout(ctx *gin.Context) {
	token, _ := currentSession(ctx)
	photo := utils.DeleteSession(token)
	removeUploadedFile(photo)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// CheckInState reports the sorted step list and the attendee's position in it.
func (u *UserController) CheckInState(ctx *gin.Context) {
	_, session := currentSession(ctx)

	var user models.User
	if err := u.db.First(&user, session.User.ID).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "user no longer registered")
		return
	}

	steps, err := fetchStepsSorted(u.db)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50010, "could not load check-in tasks")
		return
	}

	index := user.CurrentCheckInIndex
	current := models.CurrentStep(steps, index)
	completed := user.AllChecksCompleted || current == nil

	utils.Success(ctx, gin.H{
		"steps":         steps,
		"current_index": index,
		"current_step":  current,
		"progress":      models.ProgressPercent(index, len(steps)),
		"completed":     completed,
	})
}

// CheckIn advances the attendee to the next step and persists the result.
func (u *UserController) CheckIn(ctx *gin.Context) {
	token, session := currentSession(ctx)

	var user models.User
	if err := u.db.First(&user, session.User.ID).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "user no longer registered")
		return
	}

	steps, err := fetchStepsSorted(u.db)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50010, "could not load check-in tasks")
		return
	}

	user.Advance(len(steps))
	updates := map[string]interface{}{
		"current_check_in_index": user.CurrentCheckInIndex,
		"all_checks_completed":   user.AllChecksCompleted,
	}
	if err := u.db.Model(&user).Updates(updates).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50011, "something went wrong, please try again")
		return
	}
	utils.UpdateSessionUser(token, user)
	utils.PublishChange("users")

	utils.Success(ctx, gin.H{
		"user":      user,
		"completed": user.AllChecksCompleted,
	})
}

const stepsCacheKey = "cache:steps:list"

// fetchStepsSorted returns the full step collection in natural name order.
// Ordering is recomputed on every read so it stays a pure function of the
// current name set. Admin writes invalidate the cache.
func fetchStepsSorted(db *gorm.DB) ([]models.CheckInStep, error) {
	if b, ok := utils.CacheGetBytes(stepsCacheKey); ok {
		var steps []models.CheckInStep
		if json.Unmarshal(b, &steps) == nil {
			return steps, nil
		}
	}

	var steps []models.CheckInStep
	if err := db.Find(&steps).Error; err != nil {
		return nil, err
	}
	models.SortStepsNatural(steps)
	utils.CacheSetJSON(stepsCacheKey, steps, time.Hour)
	return steps, nil
}

func currentSession(ctx *gin.Context) (string, utils.Session) {
	token := ctx.GetString(middleware.ContextSessionTokenKey)
	value, _ := ctx.Get(middleware.ContextSessionKey)
	session, _ := value.(utils.Session)
	return token, session
}
