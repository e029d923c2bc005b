package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/zentrolabs/zentro/internal/auth"
	"github.com/zentrolabs/zentro/internal/database/testutil"
	"github.com/zentrolabs/zentro/internal/middleware"
	"github.com/zentrolabs/zentro/internal/services"
)

type captureNotifier struct {
	mu    sync.Mutex
	codes map[string]string
}

func (n *captureNotifier) record(email, code string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.codes == nil {
		n.codes = make(map[string]string)
	}
	n.codes[email] = code
}

func (n *captureNotifier) VerificationCode(_ context.Context, email, _, code string) {
	n.record(email, code)
}

func (n *captureNotifier) PasswordResetCode(_ context.Context, email, _, code string) {
	n.record(email, code)
}

func (n *captureNotifier) Welcome(context.Context, string, string)                   {}
func (n *captureNotifier) PasswordResetConfirmation(context.Context, string, string) {}

func (n *captureNotifier) codeFor(t *testing.T, email string) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	code, ok := n.codes[email]
	require.True(t, ok, "no code captured for %s", email)
	return code
}

type testEnv struct {
	router   *gin.Engine
	notifier *captureNotifier
}

const testAdminSecret = "super-secret"

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)
	notifier := &captureNotifier{}

	tokens, err := iauth.NewTokenService(iauth.TokenConfig{Secret: "test-secret-key"})
	require.NoError(t, err)

	otp, err := iauth.NewOTPService(db, iauth.OTPConfig{})
	require.NoError(t, err)

	refresh, err := iauth.NewRefreshStore(db, iauth.RefreshStoreConfig{})
	require.NoError(t, err)

	authSvc, err := services.NewAuthService(db, services.AuthConfig{
		Tokens:       tokens,
		OTP:          otp,
		RefreshStore: refresh,
		Notifier:     notifier,
	})
	require.NoError(t, err)

	userSvc, err := services.NewUserService(db, services.UserConfig{RefreshStore: refresh})
	require.NoError(t, err)

	authHandler := NewAuthHandler(authSvc, testAdminSecret)
	userHandler := NewUserHandler(userSvc)

	r := gin.New()
	v1 := r.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/signup", authHandler.Signup)
	authGroup.POST("/admin/signup", authHandler.AdminSignup)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/verify-email", authHandler.VerifyEmail)
	authGroup.POST("/resend-otp", authHandler.ResendOTP)
	authGroup.POST("/forgot-password", authHandler.ForgotPassword)
	authGroup.POST("/verify-reset-otp", authHandler.VerifyResetOTP)
	authGroup.POST("/reset-password", authHandler.ResetPassword)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/logout", middleware.Auth(tokens), authHandler.Logout)

	users := v1.Group("/users", middleware.Auth(tokens))
	users.GET("/me", userHandler.GetProfile)
	users.PUT("/me", userHandler.UpdateProfile)
	users.PUT("/me/username", userHandler.ChangeUsername)
	users.DELETE("/me", userHandler.DeleteAccount)

	r.GET("/health", Health(db))

	return &testEnv{router: r, notifier: notifier}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	return payload
}

func dataField(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	payload := decodeBody(t, w)
	data, ok := payload["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

// signupAndVerify registers a user, confirms the emailed code and returns the
// issued token pair.
func (e *testEnv) signupAndVerify(t *testing.T, email, password string) map[string]any {
	t.Helper()

	w := e.do(t, http.MethodPost, "/api/v1/auth/signup", gin.H{
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"email":      email,
		"password":   password,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(t, http.MethodPost, "/api/v1/auth/verify-email", gin.H{
		"email": email,
		"otp":   e.notifier.codeFor(t, email),
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return dataField(t, w)
}

func TestSignupVerifyLoginOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	pair := env.signupAndVerify(t, "ada@example.com", "lovelace1815")
	require.NotEmpty(t, pair["accessToken"])
	require.NotEmpty(t, pair["refreshToken"])
	require.Equal(t, "Bearer", pair["tokenType"])

	// login before verification would have failed; verified login succeeds
	w := env.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    "ada@example.com",
		"password": "lovelace1815",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := dataField(t, w)
	user, ok := data["user"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "ada@example.com", user["email"])
	require.Equal(t, "USER", user["role"])
	require.NotContains(t, user, "password_hash")
}

func TestLoginBeforeVerificationRejected(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/auth/signup", gin.H{
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"email":      "ada@example.com",
		"password":   "lovelace1815",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    "ada@example.com",
		"password": "lovelace1815",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	payload := decodeBody(t, w)
	errInfo, ok := payload["error"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "EMAIL_NOT_VERIFIED", errInfo["code"])
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/auth/signup", gin.H{
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"email":      "not-an-email",
		"password":   "short",
	}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	payload := decodeBody(t, w)
	errInfo := payload["error"].(map[string]any)
	msg := errInfo["message"].(string)
	require.Contains(t, msg, "email must be a valid email address")
	require.Contains(t, msg, "password must be at least 8 characters")
}

func TestAdminSignupRequiresSecret(t *testing.T) {
	env := newTestEnv(t)

	body := gin.H{
		"first_name": "Root",
		"last_name":  "Admin",
		"email":      "root@example.com",
		"password":   "adminpass123",
	}

	w := env.do(t, http.MethodPost, "/api/v1/auth/admin/signup", body, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/auth/admin/signup", body, map[string]string{
		AdminSecretHeader: "wrong",
	})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/auth/admin/signup", body, map[string]string{
		AdminSecretHeader: testAdminSecret,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	verify := env.do(t, http.MethodPost, "/api/v1/auth/verify-email", gin.H{
		"email": "root@example.com",
		"otp":   env.notifier.codeFor(t, "root@example.com"),
	}, nil)
	require.Equal(t, http.StatusOK, verify.Code)

	user := dataField(t, verify)["user"].(map[string]any)
	require.Equal(t, "ADMIN", user["role"])
}

func TestPasswordResetOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.signupAndVerify(t, "ada@example.com", "lovelace1815")

	w := env.do(t, http.MethodPost, "/api/v1/auth/forgot-password", gin.H{
		"email": "ada@example.com",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/auth/verify-reset-otp", gin.H{
		"email": "ada@example.com",
		"otp":   env.notifier.codeFor(t, "ada@example.com"),
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	tempToken := dataField(t, w)["temporaryToken"].(string)
	require.NotEmpty(t, tempToken)

	w = env.do(t, http.MethodPost, "/api/v1/auth/reset-password", gin.H{
		"temporary_token": tempToken,
		"new_password":    "bernoulli1843",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    "ada@example.com",
		"password": "lovelace1815",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    "ada@example.com",
		"password": "bernoulli1843",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshAndLogoutOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	pair := env.signupAndVerify(t, "ada@example.com", "lovelace1815")

	refreshToken := pair["refreshToken"].(string)
	accessToken := pair["accessToken"].(string)

	w := env.do(t, http.MethodPost, "/api/v1/auth/refresh", gin.H{
		"refresh_token": refreshToken,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, refreshToken, dataField(t, w)["refreshToken"])

	w = env.do(t, http.MethodPost, "/api/v1/auth/logout", nil, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/auth/refresh", gin.H{
		"refresh_token": refreshToken,
	}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProfileEndpoints(t *testing.T) {
	env := newTestEnv(t)
	pair := env.signupAndVerify(t, "ada@example.com", "lovelace1815")
	authHeader := map[string]string{"Authorization": "Bearer " + pair["accessToken"].(string)}

	w := env.do(t, http.MethodGet, "/api/v1/users/me", nil, authHeader)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ada", dataField(t, w)["username"])

	w = env.do(t, http.MethodPut, "/api/v1/users/me", gin.H{
		"first_name":   "Augusta",
		"last_name":    "King",
		"phone_number": "+44123456",
	}, authHeader)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Augusta", dataField(t, w)["first_name"])

	w = env.do(t, http.MethodPut, "/api/v1/users/me/username", gin.H{
		"username": "countess",
	}, authHeader)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "countess", dataField(t, w)["username"])

	// immediate second change hits the cooldown
	w = env.do(t, http.MethodPut, "/api/v1/users/me/username", gin.H{
		"username": "enchantress",
	}, authHeader)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// unauthenticated access rejected
	w = env.do(t, http.MethodGet, "/api/v1/users/me", nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDeleteAccountOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	pair := env.signupAndVerify(t, "ada@example.com", "lovelace1815")
	authHeader := map[string]string{"Authorization": "Bearer " + pair["accessToken"].(string)}

	w := env.do(t, http.MethodDelete, "/api/v1/users/me", nil, authHeader)
	require.Equal(t, http.StatusOK, w.Code)

	// logging in again restores the account
	w = env.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    "ada@example.com",
		"password": "lovelace1815",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", dataField(t, w)["status"].(string))
}
