package controllers_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/expo25/eventpass/models"
)

func TestRegisterCreatesUserAndSession(t *testing.T) {
	env := newTestEnv(t)

	token := env.register(t, "Asha Verma", "9876543210")

	var user models.User
	if err := env.db.Where("mobile = ?", "9876543210").First(&user).Error; err != nil {
		t.Fatalf("user not persisted: %v", err)
	}
	if user.Name != "Asha Verma" {
		t.Errorf("name = %q, want %q", user.Name, "Asha Verma")
	}
	if user.CurrentCheckInIndex != 0 || user.AllChecksCompleted {
		t.Errorf("new user should start at index 0 with completion unset, got %d/%v",
			user.CurrentCheckInIndex, user.AllChecksCompleted)
	}

	// The token restores the session on a fresh request
	w := env.do(t, http.MethodGet, "/api/v1/session", nil, sessionHeaders(token))
	if w.Code != http.StatusOK {
		t.Fatalf("session restore: status %d body %s", w.Code, w.Body.String())
	}
}

func TestRegisterDuplicateMobileRejected(t *testing.T) {
	env := newTestEnv(t)

	env.register(t, "First", "9876543210")

	w := env.do(t, http.MethodPost, "/api/v1/register",
		gin.H{"name": "Second", "mobile": "9876543210"}, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register: status %d, want 409", w.Code)
	}

	var count int64
	env.db.Model(&models.User{}).Count(&count)
	if count != 1 {
		t.Errorf("user count = %d after duplicate register, want 1", count)
	}
}

func TestRegisterValidatesMobileBeforePersisting(t *testing.T) {
	env := newTestEnv(t)

	for _, mobile := range []string{"12345", "98765432101", "98765abc10", ""} {
		w := env.do(t, http.MethodPost, "/api/v1/register",
			gin.H{"name": "Someone", "mobile": mobile}, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("mobile %q: status %d, want 400", mobile, w.Code)
		}
	}

	var count int64
	env.db.Model(&models.User{}).Count(&count)
	if count != 0 {
		t.Errorf("user count = %d after invalid registrations, want 0", count)
	}
}

func TestRegisterRejectsBlankName(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/register",
		gin.H{"name": "   ", "mobile": "9876543210"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank name: status %d, want 400", w.Code)
	}
}

func TestSessionRejectsUnknownToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/session", nil, sessionHeaders("not-a-token"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown token: status %d, want 401", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/session", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status %d, want 401", w.Code)
	}
}

func TestSessionAfterUserDeleted(t *testing.T) {
	env := newTestEnv(t)

	token := env.register(t, "Gone Soon", "9876543210")
	if err := env.db.Where("mobile = ?", "9876543210").Delete(&models.User{}).Error; err != nil {
		t.Fatalf("delete user: %v", err)
	}

	// The deleted account invalidates the session on the next restore
	w := env.do(t, http.MethodGet, "/api/v1/session", nil, sessionHeaders(token))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("session for deleted user: status %d, want 401", w.Code)
	}

	// And the invalidated token no longer works at all
	w = env.do(t, http.MethodGet, "/api/v1/checkin", nil, sessionHeaders(token))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("reuse of invalidated token: status %d, want 401", w.Code)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	env := newTestEnv(t)

	token := env.register(t, "Leaver", "9876543210")
	w := env.do(t, http.MethodPost, "/api/v1/logout", nil, sessionHeaders(token))
	if w.Code != http.StatusOK {
		t.Fatalf("logout: status %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/session", nil, sessionHeaders(token))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("session after logout: status %d, want 401", w.Code)
	}

	// Logout removes no backend record
	var count int64
	env.db.Model(&models.User{}).Count(&count)
	if count != 1 {
		t.Errorf("user count = %d after logout, want 1", count)
	}
}

func TestCheckInStateSortsStepsNaturally(t *testing.T) {
	env := newTestEnv(t)
	env.seedSteps(t, "Step 10", "Step 2", "Step 1")

	token := env.register(t, "Walker", "9876543210")

	w := env.do(t, http.MethodGet, "/api/v1/checkin", nil, sessionHeaders(token))
	if w.Code != http.StatusOK {
		t.Fatalf("checkin state: status %d body %s", w.Code, w.Body.String())
	}
	data := decodeData(t, w)

	steps, _ := data["steps"].([]interface{})
	if len(steps) != 3 {
		t.Fatalf("steps length = %d, want 3", len(steps))
	}
	var names []string
	for _, s := range steps {
		m := s.(map[string]interface{})
		names = append(names, m["name"].(string))
	}
	want := []string{"Step 1", "Step 2", "Step 10"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("step order = %v, want %v", names, want)
		}
	}

	current, _ := data["current_step"].(map[string]interface{})
	if current == nil || current["name"] != "Step 1" {
		t.Errorf("current_step = %v, want Step 1", data["current_step"])
	}
	if completed, _ := data["completed"].(bool); completed {
		t.Error("fresh attendee should not be completed")
	}
}

func TestCheckInAdvancesToCompletion(t *testing.T) {
	env := newTestEnv(t)
	env.seedSteps(t, "Registration Desk", "Welcome Session", "Closing Note")

	token := env.register(t, "Walker", "9876543210")

	for i := 0; i < 3; i++ {
		w := env.do(t, http.MethodPost, "/api/v1/checkin", nil, sessionHeaders(token))
		if w.Code != http.StatusOK {
			t.Fatalf("check-in %d: status %d body %s", i+1, w.Code, w.Body.String())
		}
		data := decodeData(t, w)
		completed, _ := data["completed"].(bool)
		if wantDone := i == 2; completed != wantDone {
			t.Errorf("after check-in %d: completed = %v, want %v", i+1, completed, wantDone)
		}
	}

	var user models.User
	env.db.Where("mobile = ?", "9876543210").First(&user)
	if user.CurrentCheckInIndex != 3 || !user.AllChecksCompleted {
		t.Errorf("persisted state = %d/%v, want 3/true", user.CurrentCheckInIndex, user.AllChecksCompleted)
	}

	// Completion survives a further check-in; the index keeps moving
	w := env.do(t, http.MethodPost, "/api/v1/checkin", nil, sessionHeaders(token))
	if w.Code != http.StatusOK {
		t.Fatalf("extra check-in: status %d", w.Code)
	}
	env.db.Where("mobile = ?", "9876543210").First(&user)
	if user.CurrentCheckInIndex != 4 || !user.AllChecksCompleted {
		t.Errorf("after extra check-in = %d/%v, want 4/true", user.CurrentCheckInIndex, user.AllChecksCompleted)
	}
}

func TestCheckInWithNoStepsCompletesImmediately(t *testing.T) {
	env := newTestEnv(t)

	token := env.register(t, "Early Bird", "9876543210")

	w := env.do(t, http.MethodGet, "/api/v1/checkin", nil, sessionHeaders(token))
	if w.Code != http.StatusOK {
		t.Fatalf("checkin state: status %d", w.Code)
	}
	data := decodeData(t, w)
	if completed, _ := data["completed"].(bool); !completed {
		t.Error("empty step list should read as completed")
	}
	if progress, _ := data["progress"].(float64); progress != 100 {
		t.Errorf("progress = %v, want 100", progress)
	}
}
