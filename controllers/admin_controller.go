package controllers

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/expo25/eventpass/config"
	"github.com/expo25/eventpass/models"
	"github.com/expo25/eventpass/utils"
)

const adminTokenTTL = 12 * time.Hour

// watchable collections exposed over the admin realtime stream
var watchableCollections = map[string]bool{
	"steps":     true,
	"users":     true,
	"feedbacks": true,
}

// AdminController manages the console: step list CRUD, user administration,
// the spreadsheet export and the realtime snapshot stream.
type AdminController struct {
	db *gorm.DB
}

// NewAdminController creates an AdminController.
func NewAdminController(db *gorm.DB) *AdminController {
	return &AdminController{db: db}
}

// Login verifies the console password server-side and issues an admin token.
func (a *AdminController) Login(ctx *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40050, "password is required")
		return
	}

	cfg := config.Get()
	if !utils.CheckPassword(cfg.AdminPasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40150, "incorrect password, please try again")
		return
	}

	token, err := utils.GenerateAdminToken(adminTokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to issue token")
		return
	}
	utils.Success(ctx, gin.H{"token": token})
}

// Logout revokes the presented admin token.
func (a *AdminController) Logout(ctx *gin.Context) {
	authHeader := ctx.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 {
		token := strings.TrimSpace(parts[1])
		if claims, err := utils.ParseToken(token); err == nil && claims.ExpiresAt != nil {
			utils.BlacklistToken(token, claims.ExpiresAt.Time)
		}
	}
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// idParam parses the :id route parameter. gorm treats a non-numeric inline
// condition as raw SQL, so the id must be a number before it reaches a query.
func idParam(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// ListSteps returns the step collection in display order.
func (a *AdminController) ListSteps(ctx *gin.Context) {
	steps, err := fetchStepsSorted(a.db)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to load check-in steps")
		return
	}
	utils.Success(ctx, gin.H{"items": steps})
}

// CreateStep adds a check-in step. Blank or whitespace-only names are
// rejected; duplicate names are permitted.
func (a *AdminController) CreateStep(ctx *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40051, "check-in name cannot be empty")
		return
	}
	name := utils.Sanitize(strings.TrimSpace(req.Name))
	if name == "" {
		utils.Error(ctx, http.StatusBadRequest, 40051, "check-in name cannot be empty")
		return
	}

	step := models.CheckInStep{Name: name}
	if err := a.db.Create(&step).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50052, "failed to add check-in")
		return
	}
	utils.InvalidateByPrefix("cache:steps:")
	utils.PublishChange("steps")

	utils.Success(ctx, gin.H{"step": step})
}

// DeleteStep removes a check-in step by id. The confirmation prompt lives in
// the console UI; this is the remote delete call behind it.
func (a *AdminController) DeleteStep(ctx *gin.Context) {
	id, ok := idParam(ctx)
	if !ok {
		utils.Error(ctx, http.StatusNotFound, 40450, "check-in step not found")
		return
	}
	res := a.db.Delete(&models.CheckInStep{}, id)
	if res.Error != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50053, "failed to delete check-in")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40450, "check-in step not found")
		return
	}
	utils.InvalidateByPrefix("cache:steps:")
	utils.PublishChange("steps")

	utils.Success(ctx, gin.H{"message": "check-in deleted"})
}

// ListUsers returns all registered users, newest first.
func (a *AdminController) ListUsers(ctx *gin.Context) {
	var users []models.User
	if err := a.db.Order("created_at DESC").Find(&users).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50054, "failed to load users")
		return
	}
	utils.Success(ctx, gin.H{"items": users})
}

// UpdateUser performs a partial update of just the name and mobile fields.
func (a *AdminController) UpdateUser(ctx *gin.Context) {
	var req struct {
		Name   string `json:"name" binding:"required"`
		Mobile string `json:"mobile" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40052, "name and mobile number are required")
		return
	}
	name := utils.Sanitize(strings.TrimSpace(req.Name))
	mobile := strings.TrimSpace(req.Mobile)
	if name == "" || !mobilePattern.MatchString(mobile) {
		utils.Error(ctx, http.StatusBadRequest, 40053, "invalid name or mobile number")
		return
	}

	id, ok := idParam(ctx)
	if !ok {
		utils.Error(ctx, http.StatusNotFound, 40451, "user not found")
		return
	}
	var user models.User
	if err := a.db.First(&user, id).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40451, "user not found")
		return
	}

	if err := a.db.Model(&user).Updates(map[string]interface{}{
		"name":   name,
		"mobile": mobile,
	}).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50055, "failed to update user")
		return
	}
	utils.PublishChange("users")

	utils.Success(ctx, gin.H{"user": user})
}

// DeleteUser removes only the user record. Feedback entries keep their soft
// reference and are not cascaded.
func (a *AdminController) DeleteUser(ctx *gin.Context) {
	id, ok := idParam(ctx)
	if !ok {
		utils.Error(ctx, http.StatusNotFound, 40451, "user not found")
		return
	}
	res := a.db.Delete(&models.User{}, id)
	if res.Error != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50056, "failed to delete user")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40451, "user not found")
		return
	}
	utils.PublishChange("users")

	utils.Success(ctx, gin.H{"message": "user deleted"})
}

// Export streams the point-in-time user/feedback join as an xlsx download.
func (a *AdminController) Export(ctx *gin.Context) {
	var users []models.User
	if err := a.db.Order("created_at ASC").Find(&users).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50057, "failed to load users")
		return
	}
	var feedbacks []models.Feedback
	if err := a.db.Order("submitted_at ASC").Find(&feedbacks).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50057, "failed to load feedback")
		return
	}

	f, err := utils.BuildUserExport(users, feedbacks)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50058, "failed to build export")
		return
	}
	defer f.Close()

	ctx.Header("Content-Disposition", `attachment; filename="event-users.xlsx"`)
	ctx.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(ctx.Writer); err != nil {
		utils.Sugar.Warnf("export write failed: %v", err)
	}
}

// Stats returns aggregate figures for the console dashboard.
func (a *AdminController) Stats(ctx *gin.Context) {
	var userCount, completedCount, feedbackCount, stepCount, dailyActivity int64

	if err := a.db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		userCount = 0
	}
	if err := a.db.Model(&models.User{}).Where("all_checks_completed = ?", true).Count(&completedCount).Error; err != nil {
		completedCount = 0
	}
	if err := a.db.Model(&models.Feedback{}).Count(&feedbackCount).Error; err != nil {
		feedbackCount = 0
	}
	if err := a.db.Model(&models.CheckInStep{}).Count(&stepCount).Error; err != nil {
		stepCount = 0
	}

	// Local midnight matches how the recorder keys the date column
	now := time.Now().In(time.Local)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := a.db.Model(&models.Activity{}).
		Where("date = ?", today).
		Select("COALESCE(SUM(count),0)").
		Scan(&dailyActivity).Error; err != nil {
		dailyActivity = 0
	}

	utils.Success(ctx, gin.H{
		"user_count":      userCount,
		"completed_count": completedCount,
		"feedback_count":  feedbackCount,
		"step_count":      stepCount,
		"daily_activity":  dailyActivity,
	})
}

// Watch streams full collection snapshots over SSE: one on connect, then one
// for every change, never incremental diffs. The subscription is disposed
// when the client disconnects.
func (a *AdminController) Watch(ctx *gin.Context) {
	collection := ctx.Param("collection")
	if !watchableCollections[collection] {
		utils.Error(ctx, http.StatusNotFound, 40452, "unknown collection")
		return
	}

	changes, cancel := utils.SubscribeChanges(collection)
	defer cancel()

	ctx.Header("Content-Type", "text/event-stream")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")

	// Initial snapshot so new subscribers start from current state
	snapshot, err := a.collectionSnapshot(collection)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50059, "failed to load snapshot")
		return
	}
	ctx.SSEvent("snapshot", snapshot)
	ctx.Writer.Flush()

	ctx.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Request.Context().Done():
			return false
		case <-changes:
			snapshot, err := a.collectionSnapshot(collection)
			if err != nil {
				utils.Sugar.Warnf("watch snapshot reload failed: %v", err)
				return true
			}
			ctx.SSEvent("snapshot", snapshot)
			return true
		}
	})
}

func (a *AdminController) collectionSnapshot(collection string) (interface{}, error) {
	switch collection {
	case "steps":
		return fetchStepsSorted(a.db)
	case "users":
		var users []models.User
		err := a.db.Order("created_at DESC").Find(&users).Error
		return users, err
	default:
		var feedbacks []models.Feedback
		err := a.db.Order("submitted_at DESC").Find(&feedbacks).Error
		return feedbacks, err
	}
}
