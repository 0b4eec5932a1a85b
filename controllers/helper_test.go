package controllers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/expo25/eventpass/config"
	"github.com/expo25/eventpass/models"
	"github.com/expo25/eventpass/routes"
	"github.com/expo25/eventpass/utils"
)

const testAdminPassword = "console-secret"

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
}

// newTestEnv boots the full router against a throwaway sqlite database.
// Abuse-guard limits are zeroed so Redis stays out of the request path.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hash, err := utils.HashPassword(testAdminPassword)
	if err != nil {
		t.Fatalf("hash admin password: %v", err)
	}

	tmp := t.TempDir()
	cfg := config.AppConfig{
		AppPort:            "0",
		JWTSecret:          "test-secret",
		AdminPasswordHash:  hash,
		RateLimitPerMinute: 100000,
		AllowedOrigins:     []string{"*"},
		GinMode:            "test",
		GinPath:            filepath.Join(tmp, "gin.log"),
		LogLevel:           "error",
		CertWidth:          300,
		CertHeight:         200,
		CertFontSize:       16,
		CertNameOffsetY:    40,
		UploadsDir:         filepath.Join(tmp, "uploads"),
		SharesDir:          filepath.Join(tmp, "shares"),
		ShareTTLMinutes:    60,
		MaxPhotoSizeMB:     5,
	}
	config.SetForTesting(cfg)
	if err := utils.InitLogger(cfg); err != nil {
		t.Fatalf("init logger: %v", err)
	}

	db, err := gorm.Open(sqlite.Open(filepath.Join(tmp, "test.db")), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.CheckInStep{},
		&models.Feedback{},
		&models.SharedCertificate{},
		&models.Activity{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return &testEnv{router: routes.SetupRouter(db), db: db}
}

// do performs one request against the router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func sessionHeaders(token string) map[string]string {
	return map[string]string{"X-Session-Token": token}
}

func adminHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// decodeData parses the response envelope and returns its data object.
func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var envelope struct {
		Code    int                    `json:"code"`
		Message string                 `json:"message"`
		Data    map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return envelope.Data
}

// register creates an attendee and returns their session token.
func (e *testEnv) register(t *testing.T, name, mobile string) string {
	t.Helper()

	w := e.do(t, http.MethodPost, "/api/v1/register", gin.H{"name": name, "mobile": mobile}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("register %s/%s: status %d body %s", name, mobile, w.Code, w.Body.String())
	}
	data := decodeData(t, w)
	token, _ := data["session_token"].(string)
	if token == "" {
		t.Fatalf("register returned no session token: %v", data)
	}
	return token
}

// adminLogin returns a fresh admin token.
func (e *testEnv) adminLogin(t *testing.T) string {
	t.Helper()

	w := e.do(t, http.MethodPost, "/api/v1/admin/login", gin.H{"password": testAdminPassword}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin login: status %d body %s", w.Code, w.Body.String())
	}
	token, _ := decodeData(t, w)["token"].(string)
	if token == "" {
		t.Fatal("admin login returned no token")
	}
	return token
}

// seedSteps inserts steps directly, bypassing the admin API. The step cache
// is invalidated the way the API handlers would.
func (e *testEnv) seedSteps(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := e.db.Create(&models.CheckInStep{Name: name}).Error; err != nil {
			t.Fatalf("seed step %q: %v", name, err)
		}
	}
	utils.InvalidateByPrefix("cache:steps:")
}
