package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ascendlabs/ascend/backend/internal/activities"
	"github.com/ascendlabs/ascend/backend/internal/tracking"
	"github.com/ascendlabs/ascend/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// stubTokenManager maps "token-<id>" back to "<id>" so router tests do
// not depend on real signing.
type stubTokenManager struct {
	issueErr    error
	validateErr error
}

func (s stubTokenManager) IssueToken(userID string) (string, int64, error) {
	if s.issueErr != nil {
		return "", 0, s.issueErr
	}
	return "token-" + userID, 3600, nil
}

func (s stubTokenManager) ValidateToken(token string) (string, error) {
	if s.validateErr != nil {
		return "", s.validateErr
	}
	if !strings.HasPrefix(token, "token-") {
		return "", errors.New("malformed token")
	}
	return strings.TrimPrefix(token, "token-"), nil
}

type routerIDGenerator struct {
	next int
}

func (g *routerIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("router-id-%d", g.next), nil
}

type routerFixture struct {
	handler http.Handler
	db      *gorm.DB
}

func newRouterFixture(t *testing.T) routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&users.User{},
		&activities.Activity{},
		&tracking.BookmarkFlag{},
		&tracking.DailyCommitment{},
		&tracking.CompletionEntry{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	idGen := &routerIDGenerator{}
	accountService, err := users.NewService(users.ServiceConfig{Database: db, IDProvider: idGen})
	if err != nil {
		t.Fatalf("failed to build users service: %v", err)
	}
	trackerService, err := tracking.NewService(tracking.ServiceConfig{Database: db, IDProvider: idGen})
	if err != nil {
		t.Fatalf("failed to build tracking service: %v", err)
	}
	catalogService, err := activities.NewService(activities.ServiceConfig{
		Database:   db,
		IDProvider: idGen,
		Cleaner:    trackerService,
	})
	if err != nil {
		t.Fatalf("failed to build catalog service: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		TokenManager: stubTokenManager{},
		Users:        accountService,
		Catalog:      catalogService,
		Tracker:      trackerService,
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return routerFixture{handler: handler, db: db}
}

func (f routerFixture) seedUser(t *testing.T, userID string) {
	t.Helper()
	user := users.User{
		UserID:       userID,
		Username:     userID,
		Email:        userID + "@example.com",
		PasswordHash: "x",
		Level:        1,
	}
	if err := f.db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
}

func (f routerFixture) seedActivity(t *testing.T, activityID string, category activities.Category) {
	t.Helper()
	activity := activities.Activity{
		ActivityID: activityID,
		Name:       "Activity " + activityID,
		Category:   category.String(),
		Origin:     activities.OriginDefault,
		XPValue:    10,
	}
	if err := f.db.Create(&activity).Error; err != nil {
		t.Fatalf("failed to seed activity: %v", err)
	}
}

func (f routerFixture) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if userID != "" {
		request.Header.Set("Authorization", "Bearer token-"+userID)
	}
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return body
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	fixture := newRouterFixture(t)

	recorder := fixture.do(t, http.MethodGet, "/api/profile", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, recorder.Code)
	}
}

func TestRegisterIssuesSession(t *testing.T) {
	fixture := newRouterFixture(t)

	recorder := fixture.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "ada",
		"email":    "ada@example.com",
		"password": "correct horse",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)
	if body["access_token"] == "" || body["token_type"] != "Bearer" {
		t.Fatalf("unexpected session payload: %v", body)
	}
	user, ok := body["user"].(map[string]interface{})
	if !ok || user["username"] != "ada" || user["level"] != float64(1) {
		t.Fatalf("unexpected user payload: %v", body["user"])
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	fixture := newRouterFixture(t)

	recorder := fixture.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "nobody",
		"password": "whatever1",
	})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, recorder.Code)
	}
}

func TestLoginReportsStorageOutageAsUnavailable(t *testing.T) {
	fixture := newRouterFixture(t)
	if err := fixture.db.Migrator().DropTable(&users.User{}); err != nil {
		t.Fatalf("failed to drop table: %v", err)
	}

	recorder := fixture.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "ada",
		"password": "correct horse",
	})
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("a storage failure must not read as bad credentials, got %d: %s",
			recorder.Code, recorder.Body.String())
	}
}

func TestBookmarkOverCapReturnsConflict(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.seedUser(t, "user-1")
	for i := 0; i < 6; i++ {
		fixture.seedActivity(t, fmt.Sprintf("act-%d", i), activities.CategoryMindBody)
	}

	for i := 0; i < 5; i++ {
		recorder := fixture.do(t, http.MethodPost, fmt.Sprintf("/api/activities/act-%d/bookmark", i), "user-1",
			map[string]bool{"bookmarked": true})
		if recorder.Code != http.StatusOK {
			t.Fatalf("bookmark %d failed with %d: %s", i, recorder.Code, recorder.Body.String())
		}
	}

	recorder := fixture.do(t, http.MethodPost, "/api/activities/act-5/bookmark", "user-1",
		map[string]bool{"bookmarked": true})
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d: %s", http.StatusConflict, recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)
	if body["category"] != activities.CategoryMindBody.String() {
		t.Fatalf("conflict payload should name the category: %v", body)
	}
	if body["count"] != float64(5) || body["limit"] != float64(5) {
		t.Fatalf("conflict payload should carry count and limit: %v", body)
	}
}

func TestBookmarkRequiresExplicitDirection(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.seedUser(t, "user-1")
	fixture.seedActivity(t, "act-1", activities.CategoryMindBody)

	recorder := fixture.do(t, http.MethodPost, "/api/activities/act-1/bookmark", "user-1", map[string]string{})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, recorder.Code)
	}
}

func TestCommitmentOnUnbookmarkedActivityIsForbidden(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.seedUser(t, "user-1")
	fixture.seedActivity(t, "act-1", activities.CategoryMindBody)

	recorder := fixture.do(t, http.MethodPost, "/api/activities/act-1/commitment", "user-1", nil)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d: %s", http.StatusForbidden, recorder.Code, recorder.Body.String())
	}
}

func TestUnknownActivityReturnsNotFound(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.seedUser(t, "user-1")

	recorder := fixture.do(t, http.MethodPost, "/api/activities/missing/bookmark", "user-1",
		map[string]bool{"bookmarked": true})
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d: %s", http.StatusNotFound, recorder.Code, recorder.Body.String())
	}
}

func TestSubmitDayWithoutFullCommitmentIsBadRequest(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.seedUser(t, "user-1")

	recorder := fixture.do(t, http.MethodPost, "/api/day/submit", "user-1", nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d: %s", http.StatusBadRequest, recorder.Code, recorder.Body.String())
	}
}

func TestProgressionStatsResponseShape(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.seedUser(t, "user-1")

	recorder := fixture.do(t, http.MethodGet, "/api/progress/stats", "user-1", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)
	for _, key := range []string{"total_xp", "level", "streak_days", "multiplier", "xp_into_level", "xp_needed_for_level", "percent"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("stats payload missing %q: %v", key, body)
		}
	}
}

func TestListActivitiesAnnotatesBookmarks(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.seedUser(t, "user-1")
	fixture.seedActivity(t, "act-1", activities.CategoryMindBody)
	fixture.seedActivity(t, "act-2", activities.CategoryMindBody)

	recorder := fixture.do(t, http.MethodPost, "/api/activities/act-1/bookmark", "user-1",
		map[string]bool{"bookmarked": true})
	if recorder.Code != http.StatusOK {
		t.Fatalf("bookmark failed with %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = fixture.do(t, http.MethodGet, "/api/activities", "user-1", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
	var response struct {
		Categories []struct {
			Category   string `json:"category"`
			Activities []struct {
				ID         string `json:"id"`
				Bookmarked bool   `json:"bookmarked"`
			} `json:"activities"`
		} `json:"categories"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode listing: %v", err)
	}
	if len(response.Categories) != 3 {
		t.Fatalf("expected all three categories, got %d", len(response.Categories))
	}
	flagged := map[string]bool{}
	for _, category := range response.Categories {
		for _, activity := range category.Activities {
			flagged[activity.ID] = activity.Bookmarked
		}
	}
	if !flagged["act-1"] || flagged["act-2"] {
		t.Fatalf("unexpected bookmark annotations: %v", flagged)
	}
}

func TestDeleteCustomActivityRemovesBookmark(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.seedUser(t, "user-1")

	recorder := fixture.do(t, http.MethodPost, "/api/activities/custom", "user-1", map[string]string{
		"name":     "Juggling",
		"category": activities.CategoryMindBody.String(),
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	created := decodeBody(t, recorder)
	activityID, _ := created["id"].(string)
	if activityID == "" {
		t.Fatalf("expected created activity id, got %v", created)
	}

	recorder = fixture.do(t, http.MethodPost, "/api/activities/"+activityID+"/bookmark", "user-1",
		map[string]bool{"bookmarked": true})
	if recorder.Code != http.StatusOK {
		t.Fatalf("bookmark failed with %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = fixture.do(t, http.MethodDelete, "/api/activities/custom/"+activityID, "user-1", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("delete failed with %d: %s", recorder.Code, recorder.Body.String())
	}

	var flags int64
	if err := fixture.db.Model(&tracking.BookmarkFlag{}).
		Where("activity_id = ?", activityID).Count(&flags).Error; err != nil {
		t.Fatalf("failed to count flags: %v", err)
	}
	if flags != 0 {
		t.Fatalf("expected cascade to remove flags, got %d", flags)
	}
}

func TestCORSPreflightAllowsAuthorizationHeader(t *testing.T) {
	fixture := newRouterFixture(t)

	request := httptest.NewRequest(http.MethodOptions, "/api/activities", http.NoBody)
	request.Header.Set("Origin", "https://app.example.com")
	request.Header.Set("Access-Control-Request-Method", http.MethodGet)
	request.Header.Set("Access-Control-Request-Headers", "Authorization")

	recorder := httptest.NewRecorder()
	fixture.handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, recorder.Code)
	}
	allowHeaders := recorder.Header().Get("Access-Control-Allow-Headers")
	if !strings.Contains(strings.ToLower(allowHeaders), "authorization") {
		t.Fatalf("expected Authorization in allowed headers, got %q", allowHeaders)
	}
}
