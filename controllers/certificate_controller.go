package controllers

import (
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/image/font"
	"gorm.io/gorm"

	"github.com/expo25/eventpass/config"
	"github.com/expo25/eventpass/models"
	"github.com/expo25/eventpass/utils"
)

// Default photo placement, matching the initial on-screen position before the
// attendee drags or zooms.
const (
	defaultPhotoX     = 150
	defaultPhotoY     = 210
	defaultPhotoScale = 1.0
)

// CertificateController renders, downloads and publishes the personalized
// certificate image.
type CertificateController struct {
	db *gorm.DB

	loadOnce sync.Once
	template image.Image
	fontFace font.Face
}

// NewCertificateController creates a CertificateController.
func NewCertificateController(db *gorm.DB) *CertificateController {
	return &CertificateController{db: db}
}

// UploadPhoto stores the attendee's photo for compositing and records it on
// the session.
func (c *CertificateController) UploadPhoto(ctx *gin.Context) {
	token, session := currentSession(ctx)

	file, header, err := ctx.Request.FormFile("photo")
	if err != nil {
		file, header, err = ctx.Request.FormFile("file")
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40030, "no photo uploaded")
			return
		}
	}
	defer file.Close()

	cfg := config.Get()
	maxSize := int64(cfg.MaxPhotoSizeMB) * 1024 * 1024
	if header.Size > 0 && header.Size > maxSize {
		utils.Error(ctx, http.StatusBadRequest, 40031, fmt.Sprintf("photo exceeds %dMB", cfg.MaxPhotoSizeMB))
		return
	}

	now := time.Now()
	baseDir := filepath.Join(cfg.UploadsDir, now.Format("2006"), now.Format("01"), now.Format("02"))
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to create upload directory")
		return
	}

	fname := filepath.Base(header.Filename)
	if fname == "." || fname == "" {
		fname = fmt.Sprintf("photo_%d", now.UnixNano())
	}
	// prevent collisions: prefix with timestamp and user id
	safeName := fmt.Sprintf("%d_%d_%s", now.UnixNano(), session.User.ID, fname)
	dstPath := filepath.Join(baseDir, safeName)

	out, err := os.Create(dstPath)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to save photo")
		return
	}
	defer out.Close()

	lr := &io.LimitedReader{R: file, N: maxSize + 1}
	written, err := io.Copy(out, lr)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(dstPath)
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to write photo")
		return
	}
	if written > maxSize {
		_ = out.Close()
		_ = os.Remove(dstPath)
		utils.Error(ctx, http.StatusBadRequest, 40031, fmt.Sprintf("photo exceeds %dMB", cfg.MaxPhotoSizeMB))
		return
	}

	// Reject files the compositor cannot draw
	if _, err := decodeImageFile(dstPath); err != nil {
		_ = os.Remove(dstPath)
		utils.Error(ctx, http.StatusBadRequest, 40032, "unsupported image format")
		return
	}

	// A fresh upload replaces any previous photo for this session
	removeUploadedFile(session.PhotoPath)
	utils.SetSessionPhoto(token, dstPath)

	utils.Success(ctx, gin.H{"message": "photo uploaded"})
}

// Preview renders the certificate canvas with the current placement. The
// photo is optional at this stage so the attendee sees the frame and name
// while adjusting.
func (c *CertificateController) Preview(ctx *gin.Context) {
	data, ok := c.renderForSession(ctx, false)
	if !ok {
		return
	}
	ctx.Data(http.StatusOK, "image/png", data)
}

// Download serves the rendered certificate as a same-device download. It
// refuses to export without a photo rather than producing a partial image.
func (c *CertificateController) Download(ctx *gin.Context) {
	_, session := currentSession(ctx)
	data, ok := c.renderForSession(ctx, true)
	if !ok {
		return
	}
	filename := utils.CertificateFileName(session.User.Name)
	ctx.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	ctx.Data(http.StatusOK, "image/png", data)
}

// Share renders the certificate, publishes it under the static shares
// directory named by content hash, and returns the shareable URL. Publish
// failures surface to the caller so the action can be retried manually.
func (c *CertificateController) Share(ctx *gin.Context) {
	_, session := currentSession(ctx)
	data, ok := c.renderForSession(ctx, true)
	if !ok {
		return
	}

	cfg := config.Get()
	if err := os.MkdirAll(cfg.SharesDir, 0o755); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to publish certificate, please try again")
		return
	}
	fname := utils.ShareFileName(data)
	dstPath := filepath.Join(cfg.SharesDir, fname)
	if err := os.WriteFile(dstPath, data, 0o644); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to publish certificate, please try again")
		return
	}

	url := "/" + filepath.ToSlash(dstPath)
	record := models.SharedCertificate{
		UserID:   session.User.ID,
		FilePath: dstPath,
		URL:      url,
		ExpireAt: time.Now().Add(time.Duration(cfg.ShareTTLMinutes) * time.Minute),
	}
	// Best-effort record for timed cleanup; the share itself already succeeded
	if err := c.db.Create(&record).Error; err != nil {
		utils.Sugar.Warnf("failed to record shared certificate: %v", err)
	}

	utils.Success(ctx, gin.H{"url": url})
}

// renderForSession composes the certificate for the current session. When
// requirePhoto is set and no photo was uploaded, a blocking message is
// returned instead of a blank or partial export.
func (c *CertificateController) renderForSession(ctx *gin.Context, requirePhoto bool) ([]byte, bool) {
	_, session := currentSession(ctx)

	if requirePhoto && session.PhotoPath == "" {
		utils.Error(ctx, http.StatusBadRequest, 40040, "please upload your photo first")
		return nil, false
	}

	var photo image.Image
	if session.PhotoPath != "" {
		img, err := decodeImageFile(session.PhotoPath)
		if err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to load your photo, please upload it again")
			return nil, false
		}
		photo = img
	}

	c.loadAssets()
	cfg := config.Get()

	cert := utils.Certificate{
		Width:       cfg.CertWidth,
		Height:      cfg.CertHeight,
		Template:    c.template,
		Name:        session.User.Name,
		FontFace:    c.fontFace,
		NameOffsetY: cfg.CertNameOffsetY,
		Photo:       photo,
		PhotoX:      queryFloat(ctx, "x", defaultPhotoX),
		PhotoY:      queryFloat(ctx, "y", defaultPhotoY),
		PhotoScale:  utils.ClampPhotoScale(queryFloat(ctx, "scale", defaultPhotoScale)),
	}

	data, err := cert.Compose()
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to render certificate")
		return nil, false
	}
	return data, true
}

// loadAssets reads the frame template and font once. A missing template is
// tolerated so the flow keeps working before event assets are installed.
func (c *CertificateController) loadAssets() {
	c.loadOnce.Do(func() {
		cfg := config.Get()
		if img, err := utils.LoadTemplateImage(cfg.CertTemplatePath); err == nil {
			c.template = img
		} else {
			utils.Sugar.Warnf("certificate template unavailable at %s: %v", cfg.CertTemplatePath, err)
		}
		face, err := utils.LoadCertificateFont(cfg.CertFontPath, cfg.CertFontSize)
		if err != nil {
			utils.Sugar.Warnf("certificate font unavailable at %s: %v", cfg.CertFontPath, err)
			face, _ = utils.LoadCertificateFont("", cfg.CertFontSize)
		}
		c.fontFace = face
	})
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

func queryFloat(ctx *gin.Context, key string, def float64) float64 {
	raw := ctx.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

func removeUploadedFile(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}
