package controllers_test

import (
	"bufio"
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/expo25/eventpass/models"
	"github.com/expo25/eventpass/utils"
)

func TestAdminLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/admin/login", gin.H{"password": "wrong"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status %d, want 401", w.Code)
	}

	token := env.adminLogin(t)

	// The issued token opens the protected surface
	w = env.do(t, http.MethodGet, "/api/v1/admin/stats", nil, adminHeaders(token))
	if w.Code != http.StatusOK {
		t.Fatalf("stats with valid token: status %d body %s", w.Code, w.Body.String())
	}
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/admin/users", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d, want 401", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/admin/users", nil, adminHeaders("garbage"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status %d, want 401", w.Code)
	}
}

func TestAdminTokenAcceptedViaQueryParam(t *testing.T) {
	env := newTestEnv(t)

	token := env.adminLogin(t)

	// EventSource clients cannot set headers, so the token may ride the query string
	w := env.do(t, http.MethodGet, "/api/v1/admin/stats?token="+token, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("query token: status %d body %s", w.Code, w.Body.String())
	}
}

func TestAdminLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)

	token := env.adminLogin(t)

	w := env.do(t, http.MethodPost, "/api/v1/admin/logout", nil, adminHeaders(token))
	if w.Code != http.StatusOK {
		t.Fatalf("logout: status %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/admin/stats", nil, adminHeaders(token))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token: status %d, want 401", w.Code)
	}
}

func TestStepCreateRejectsBlankName(t *testing.T) {
	env := newTestEnv(t)

	token := env.adminLogin(t)

	for _, name := range []string{"", "   ", "\t"} {
		w := env.do(t, http.MethodPost, "/api/v1/admin/steps", gin.H{"name": name}, adminHeaders(token))
		if w.Code != http.StatusBadRequest {
			t.Errorf("name %q: status %d, want 400", name, w.Code)
		}
	}

	var count int64
	env.db.Model(&models.CheckInStep{}).Count(&count)
	if count != 0 {
		t.Errorf("step count = %d after rejected creates, want 0", count)
	}
}

func TestStepCreateAllowsDuplicates(t *testing.T) {
	env := newTestEnv(t)

	token := env.adminLogin(t)

	for i := 0; i < 2; i++ {
		w := env.do(t, http.MethodPost, "/api/v1/admin/steps", gin.H{"name": "Lunch"}, adminHeaders(token))
		if w.Code != http.StatusOK {
			t.Fatalf("create %d: status %d", i+1, w.Code)
		}
	}

	var count int64
	env.db.Model(&models.CheckInStep{}).Count(&count)
	if count != 2 {
		t.Errorf("step count = %d, want 2", count)
	}
}

func TestStepListUsesNaturalOrder(t *testing.T) {
	env := newTestEnv(t)
	env.seedSteps(t, "Step 10", "Step 2", "Step 1")

	token := env.adminLogin(t)

	w := env.do(t, http.MethodGet, "/api/v1/admin/steps", nil, adminHeaders(token))
	if w.Code != http.StatusOK {
		t.Fatalf("list steps: status %d", w.Code)
	}
	items, _ := decodeData(t, w)["items"].([]interface{})
	if len(items) != 3 {
		t.Fatalf("items length = %d, want 3", len(items))
	}
	want := []string{"Step 1", "Step 2", "Step 10"}
	for i, item := range items {
		name := item.(map[string]interface{})["name"]
		if name != want[i] {
			t.Fatalf("position %d = %v, want %v", i, name, want[i])
		}
	}
}

func TestStepDelete(t *testing.T) {
	env := newTestEnv(t)

	token := env.adminLogin(t)

	w := env.do(t, http.MethodPost, "/api/v1/admin/steps", gin.H{"name": "Badge Pickup"}, adminHeaders(token))
	if w.Code != http.StatusOK {
		t.Fatalf("create step: status %d", w.Code)
	}
	step, _ := decodeData(t, w)["step"].(map[string]interface{})
	id := int(step["id"].(float64))

	path := fmt.Sprintf("/api/v1/admin/steps/%d", id)
	w = env.do(t, http.MethodDelete, path, nil, adminHeaders(token))
	if w.Code != http.StatusOK {
		t.Fatalf("delete step: status %d", w.Code)
	}

	w = env.do(t, http.MethodDelete, path, nil, adminHeaders(token))
	if w.Code != http.StatusNotFound {
		t.Fatalf("delete missing step: status %d, want 404", w.Code)
	}
}

func TestStepDeleteRejectsNonNumericID(t *testing.T) {
	env := newTestEnv(t)
	env.seedSteps(t, "Step 1", "Step 2", "Step 3")

	token := env.adminLogin(t)

	// A crafted id must never reach the query as raw SQL and wipe the table
	for _, id := range []string{"1%20OR%201=1", "1%3B--", "abc"} {
		w := env.do(t, http.MethodDelete, "/api/v1/admin/steps/"+id, nil, adminHeaders(token))
		if w.Code != http.StatusNotFound {
			t.Errorf("id %q: status %d, want 404", id, w.Code)
		}
	}

	var count int64
	env.db.Model(&models.CheckInStep{}).Count(&count)
	if count != 3 {
		t.Errorf("step count = %d after malformed deletes, want 3", count)
	}
}

func TestUserEndpointsRejectNonNumericID(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "Survivor", "9876543210")

	token := env.adminLogin(t)

	w := env.do(t, http.MethodDelete, "/api/v1/admin/users/1%20OR%201=1", nil, adminHeaders(token))
	if w.Code != http.StatusNotFound {
		t.Errorf("delete with crafted id: status %d, want 404", w.Code)
	}

	w = env.do(t, http.MethodPatch, "/api/v1/admin/users/1%20OR%201=1",
		gin.H{"name": "Hacked", "mobile": "9123456789"}, adminHeaders(token))
	if w.Code != http.StatusNotFound {
		t.Errorf("update with crafted id: status %d, want 404", w.Code)
	}

	var user models.User
	if err := env.db.Where("mobile = ?", "9876543210").First(&user).Error; err != nil {
		t.Fatalf("user removed by malformed request: %v", err)
	}
	if user.Name != "Survivor" {
		t.Errorf("user renamed by malformed request: %q", user.Name)
	}
}

func TestUserPartialUpdate(t *testing.T) {
	env := newTestEnv(t)

	env.register(t, "Old Name", "9876543210")
	var user models.User
	env.db.Where("mobile = ?", "9876543210").First(&user)

	token := env.adminLogin(t)
	path := fmt.Sprintf("/api/v1/admin/users/%d", user.ID)

	w := env.do(t, http.MethodPatch, path,
		gin.H{"name": "New Name", "mobile": "9123456789"}, adminHeaders(token))
	if w.Code != http.StatusOK {
		t.Fatalf("update user: status %d body %s", w.Code, w.Body.String())
	}

	var updated models.User
	env.db.First(&updated, user.ID)
	if updated.Name != "New Name" || updated.Mobile != "9123456789" {
		t.Errorf("updated user = %q/%q", updated.Name, updated.Mobile)
	}
	// Only name and mobile change; progress is untouched
	if updated.CurrentCheckInIndex != user.CurrentCheckInIndex {
		t.Errorf("check-in index changed by profile edit")
	}

	w = env.do(t, http.MethodPatch, path,
		gin.H{"name": "New Name", "mobile": "12345"}, adminHeaders(token))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid mobile: status %d, want 400", w.Code)
	}
}

func TestUserDeleteKeepsFeedback(t *testing.T) {
	env := newTestEnv(t)

	sessionToken := env.register(t, "Departing", "9876543210")
	w := env.do(t, http.MethodPost, "/api/v1/feedback",
		gin.H{"feedback": "it was fine"}, sessionHeaders(sessionToken))
	if w.Code != http.StatusOK {
		t.Fatalf("submit feedback: status %d", w.Code)
	}

	var user models.User
	env.db.Where("mobile = ?", "9876543210").First(&user)

	token := env.adminLogin(t)
	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/users/%d", user.ID), nil, adminHeaders(token))
	if w.Code != http.StatusOK {
		t.Fatalf("delete user: status %d", w.Code)
	}

	var userCount, feedbackCount int64
	env.db.Model(&models.User{}).Count(&userCount)
	env.db.Model(&models.Feedback{}).Count(&feedbackCount)
	if userCount != 0 {
		t.Errorf("user count = %d after delete, want 0", userCount)
	}
	// Feedback references are soft; deleting the user does not cascade
	if feedbackCount != 1 {
		t.Errorf("feedback count = %d after user delete, want 1", feedbackCount)
	}
}

func TestExportJoinsUsersWithFeedback(t *testing.T) {
	env := newTestEnv(t)

	withFeedback := env.register(t, "Asha Verma", "9876543210")
	env.register(t, "Silent Guest", "9123456789")
	w := env.do(t, http.MethodPost, "/api/v1/feedback",
		gin.H{"feedback": "wonderful"}, sessionHeaders(withFeedback))
	if w.Code != http.StatusOK {
		t.Fatalf("submit feedback: status %d", w.Code)
	}

	token := env.adminLogin(t)
	w = env.do(t, http.MethodGet, "/api/v1/admin/export", nil, adminHeaders(token))
	if w.Code != http.StatusOK {
		t.Fatalf("export: status %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); cd == "" {
		t.Error("export missing Content-Disposition header")
	}

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("open exported workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(utils.ExportSheetName)
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2 users", len(rows))
	}
	if rows[0][0] != "Name" || rows[0][1] != "Mobile" || rows[0][2] != "Feedback" {
		t.Errorf("header row = %v", rows[0])
	}
	if rows[1][2] != "wonderful" {
		t.Errorf("first user feedback = %q, want %q", rows[1][2], "wonderful")
	}
	if rows[2][2] != utils.NoFeedbackPlaceholder {
		t.Errorf("second user feedback = %q, want %q", rows[2][2], utils.NoFeedbackPlaceholder)
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	env.seedSteps(t, "Only Step")

	done := env.register(t, "Done", "9876543210")
	env.register(t, "Pending", "9123456789")

	w := env.do(t, http.MethodPost, "/api/v1/checkin", nil, sessionHeaders(done))
	if w.Code != http.StatusOK {
		t.Fatalf("check-in: status %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/v1/feedback",
		gin.H{"feedback": "thanks"}, sessionHeaders(done))
	if w.Code != http.StatusOK {
		t.Fatalf("feedback: status %d", w.Code)
	}

	token := env.adminLogin(t)
	w = env.do(t, http.MethodGet, "/api/v1/admin/stats", nil, adminHeaders(token))
	if w.Code != http.StatusOK {
		t.Fatalf("stats: status %d", w.Code)
	}
	data := decodeData(t, w)

	checks := map[string]float64{
		"user_count":      2,
		"completed_count": 1,
		"feedback_count":  1,
		"step_count":      1,
	}
	for key, want := range checks {
		if got, _ := data[key].(float64); got != want {
			t.Errorf("%s = %v, want %v", key, data[key], want)
		}
	}
}

func TestWatchRejectsUnknownCollection(t *testing.T) {
	env := newTestEnv(t)

	token := env.adminLogin(t)
	w := env.do(t, http.MethodGet, "/api/v1/admin/watch/nonsense", nil, adminHeaders(token))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown collection: status %d, want 404", w.Code)
	}
}

// readSSEData reads one server-sent event off the stream and returns its data
// payload, failing the test on timeout.
func readSSEData(t *testing.T, r *bufio.Reader) string {
	t.Helper()

	dataCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		var data strings.Builder
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				errCh <- err
				return
			}
			line = strings.TrimRight(line, "\r\n")
			if strings.HasPrefix(line, "data:") {
				data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
				continue
			}
			if line == "" && data.Len() > 0 {
				dataCh <- data.String()
				return
			}
		}
	}()

	select {
	case data := <-dataCh:
		return data
	case err := <-errCh:
		t.Fatalf("read event stream: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a snapshot event")
	}
	return ""
}

func TestWatchStreamsSnapshotsOnChange(t *testing.T) {
	env := newTestEnv(t)
	env.seedSteps(t, "Step 1")

	token := env.adminLogin(t)

	// A live server is needed here: the stream stays open until the client
	// disconnects, which a plain recorder cannot model.
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/admin/watch/steps?token=" + token)
	if err != nil {
		t.Fatalf("open watch stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("watch stream: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("Content-Type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)

	// Full snapshot delivered on connect
	first := readSSEData(t, reader)
	if !strings.Contains(first, "Step 1") {
		t.Fatalf("initial snapshot = %q, want it to contain Step 1", first)
	}
	if strings.Contains(first, "Step 2") {
		t.Fatalf("initial snapshot already contains Step 2: %q", first)
	}

	// A mutation triggers a fresh full snapshot, not a diff
	w := env.do(t, http.MethodPost, "/api/v1/admin/steps", gin.H{"name": "Step 2"}, adminHeaders(token))
	if w.Code != http.StatusOK {
		t.Fatalf("create step: status %d", w.Code)
	}

	second := readSSEData(t, reader)
	if !strings.Contains(second, "Step 1") || !strings.Contains(second, "Step 2") {
		t.Fatalf("snapshot after change = %q, want both steps", second)
	}
}
