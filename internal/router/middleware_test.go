package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/parcel-next/internal/config"
	"github.com/parcel-next/internal/models"
	"github.com/parcel-next/internal/repository"
	"github.com/parcel-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const testJWTSecret = "unit-test-secret-key-0123456789abcdef"

func newAuthTestEnv(t *testing.T) (*gorm.DB, repository.UserRepository, *service.UserAuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := repository.NewUserRepository(db)
	cfg := &config.Config{}
	cfg.JWT.SecretKey = testJWTSecret
	cfg.JWT.ExpireHours = 1
	return db, repo, service.NewUserAuthService(cfg, repo)
}

func mintToken(t *testing.T, auth *service.UserAuthService, repo repository.UserRepository, email string, isAdmin bool) string {
	t.Helper()
	user := &models.User{Email: email, PasswordHash: "x", IsAdmin: isAdmin}
	if err := repo.Create(user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, _, err := auth.GenerateUserJWT(user)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func authTestEngine(repo repository.UserRepository, adminOnly bool) *gin.Engine {
	r := gin.New()
	handlers := []gin.HandlerFunc{UserJWTAuthMiddleware(testJWTSecret, repo)}
	if adminOnly {
		handlers = append(handlers, AdminRequiredMiddleware())
	}
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status_code": 0, "user_id": c.GetUint("user_id")})
	})
	r.GET("/protected", handlers...)
	return r
}

func TestUserJWTAuthMiddlewareHeaderToken(t *testing.T) {
	_, repo, auth := newAuthTestEnv(t)
	token := mintToken(t, auth, repo, "user@parcel.local", false)
	r := authTestEngine(repo, false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), `"status_code":0`) {
		t.Fatalf("valid header token rejected: %s", w.Body.String())
	}
}

func TestUserJWTAuthMiddlewareQueryToken(t *testing.T) {
	_, repo, auth := newAuthTestEnv(t)
	token := mintToken(t, auth, repo, "user@parcel.local", false)
	r := authTestEngine(repo, false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected?jwt="+token, nil)
	r.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), `"status_code":0`) {
		t.Fatalf("valid query token rejected: %s", w.Body.String())
	}
}

func TestUserJWTAuthMiddlewareMissingToken(t *testing.T) {
	_, repo, _ := newAuthTestEnv(t)
	r := authTestEngine(repo, false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), `"status_code":401`) {
		t.Fatalf("missing token should be unauthorized: %s", w.Body.String())
	}
}

func TestUserJWTAuthMiddlewareRevokedTokenVersion(t *testing.T) {
	db, repo, auth := newAuthTestEnv(t)
	token := mintToken(t, auth, repo, "user@parcel.local", false)
	if err := db.Model(&models.User{}).Where("email = ?", "user@parcel.local").
		Update("token_version", 1).Error; err != nil {
		t.Fatalf("bump token version: %v", err)
	}
	r := authTestEngine(repo, false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), `"status_code":401`) {
		t.Fatalf("revoked token should be unauthorized: %s", w.Body.String())
	}
}

func TestAdminRequiredMiddleware(t *testing.T) {
	_, repo, auth := newAuthTestEnv(t)
	userToken := mintToken(t, auth, repo, "user@parcel.local", false)
	adminToken := mintToken(t, auth, repo, "admin@parcel.local", true)
	r := authTestEngine(repo, true)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	r.ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), `"status_code":403`) {
		t.Fatalf("non-admin should be forbidden: %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	r.ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), `"status_code":0`) {
		t.Fatalf("admin should pass: %s", w.Body.String())
	}
}

func TestResolveAllowedOrigin(t *testing.T) {
	if got := resolveAllowedOrigin("https://a.example", []string{"*"}, false); got != "*" {
		t.Fatalf("wildcard without credentials should stay wildcard, got %q", got)
	}
	if got := resolveAllowedOrigin("https://a.example", []string{"*"}, true); got != "https://a.example" {
		t.Fatalf("wildcard with credentials should echo origin, got %q", got)
	}
	if got := resolveAllowedOrigin("https://a.example", []string{"https://A.example"}, false); got != "https://a.example" {
		t.Fatalf("origin match should be case-insensitive, got %q", got)
	}
	if got := resolveAllowedOrigin("https://evil.example", []string{"https://a.example"}, false); got != "" {
		t.Fatalf("unlisted origin must be rejected, got %q", got)
	}
}
