package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/expo25/eventpass/models"
	"github.com/expo25/eventpass/utils"
)

// FeedbackController handles the optional post-event feedback submission.
type FeedbackController struct {
	db *gorm.DB
}

// NewFeedbackController creates a FeedbackController.
func NewFeedbackController(db *gorm.DB) *FeedbackController {
	return &FeedbackController{db: db}
}

// Submit stores one feedback entry for the attendee. Submission is optional
// and accepted at most once per user; there is no edit or delete path from
// the end-user side.
func (f *FeedbackController) Submit(ctx *gin.Context) {
	_, session := currentSession(ctx)

	var req struct {
		Feedback string `json:"feedback" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "feedback cannot be empty")
		return
	}
	text := utils.Sanitize(strings.TrimSpace(req.Feedback))
	if text == "" {
		utils.Error(ctx, http.StatusBadRequest, 40010, "feedback cannot be empty")
		return
	}

	var user models.User
	if err := f.db.First(&user, session.User.ID).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "user no longer registered")
		return
	}

	var existing models.Feedback
	if err := f.db.Where("user_id = ?", user.ID).First(&existing).Error; err == nil {
		utils.Error(ctx, http.StatusConflict, 40910, "feedback already submitted")
		return
	}

	entry := models.Feedback{
		UserID:      user.ID,
		Name:        user.Name,
		Feedback:    text,
		SubmittedAt: time.Now(),
	}
	if err := f.db.Create(&entry).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50015, "failed to submit feedback")
		return
	}
	utils.PublishChange("feedbacks")

	utils.Success(ctx, gin.H{"feedback": entry})
}
