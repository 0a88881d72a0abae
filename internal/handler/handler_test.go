package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studyshare/backend/internal/broker"
	"github.com/studyshare/backend/internal/middleware"
	"github.com/studyshare/backend/internal/repository"
	"github.com/studyshare/backend/internal/service"
	"github.com/studyshare/backend/internal/testutil"
	"github.com/studyshare/backend/pkg/logger"
)

const testJWTSecret = "handler-test-secret"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := logger.Init(true); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type testServer struct {
	router *gin.Engine
	db     *testutil.TestDatabase
}

// newTestServer wires the full HTTP surface against real in-memory
// dependencies, mirroring the production router minus CORS and rate
// limiting.
func newTestServer(t *testing.T, maxUpload int64) *testServer {
	t.Helper()

	db := testutil.SetupTestDatabase(t)
	redis := testutil.SetupTestRedis(t)
	blobs := testutil.SetupTestStorage(t)
	uploadJournal := testutil.SetupTestJournal(t)

	events, err := broker.NewRedisEventBroker(redis.URL)
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(db.DB)
	materialRepo := repository.NewMaterialRepository(db.DB)
	commentRepo := repository.NewCommentRepository(db.DB)

	authService := service.NewAuthService(userRepo, blobs, uploadJournal, testJWTSecret, 12*time.Hour, 168*time.Hour, "test", maxUpload)
	materialService := service.NewMaterialService(materialRepo, userRepo, blobs, uploadJournal, events, maxUpload)
	commentService := service.NewCommentService(commentRepo, materialRepo, events)
	adminService := service.NewAdminService(userRepo, blobs, uploadJournal)

	authHandler := NewAuthHandler(authService)
	materialHandler := NewMaterialHandler(materialService, commentService)
	commentHandler := NewCommentHandler(commentService)
	profileHandler := NewProfileHandler(authService)
	adminHandler := NewAdminHandler(adminService)

	router := gin.New()

	router.POST("/api/auth/register", authHandler.Register)
	router.POST("/api/auth/login", authHandler.Login)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(testJWTSecret))
	{
		protected.POST("/auth/logout", authHandler.Logout)

		protected.GET("/materials", materialHandler.List)
		protected.POST("/materials", middleware.BodyLimitMiddleware(maxUpload), materialHandler.Upload)
		protected.GET("/materials/:id", materialHandler.Get)
		protected.GET("/materials/:id/download", materialHandler.Download)
		protected.GET("/materials/:id/preview", materialHandler.Preview)
		protected.POST("/materials/:id/like", materialHandler.Like)
		protected.DELETE("/materials/:id", materialHandler.Delete)
		protected.POST("/materials/:id/comments", commentHandler.Post)

		protected.GET("/profile", profileHandler.Get)
		protected.PUT("/profile/password", profileHandler.ChangePassword)
	}

	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(testJWTSecret))
	admin.Use(middleware.AdminMiddleware(userRepo))
	{
		admin.GET("/users", adminHandler.ListUsers)
		admin.DELETE("/users/:id", adminHandler.DeleteUser)
	}

	t.Cleanup(func() {
		testutil.CleanDatabase(t, db.DB)
		events.Close()
		redis.Teardown(t)
		db.Teardown(t)
	})

	return &testServer{router: router, db: db}
}

func (ts *testServer) doJSON(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "token", Value: token})
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

// register creates an account and logs in, returning the session token.
func (ts *testServer) register(t *testing.T, username, password string) string {
	t.Helper()

	w := ts.doJSON(t, http.MethodPost, "/api/auth/register", gin.H{
		"username": username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, "registration should succeed: %s", w.Body.String())

	return ts.login(t, username, password)
}

func (ts *testServer) login(t *testing.T, username, password string) string {
	t.Helper()

	w := ts.doJSON(t, http.MethodPost, "/api/auth/login", gin.H{
		"username": username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, w.Code, "login should succeed: %s", w.Body.String())

	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "token" && cookie.Value != "" {
			return cookie.Value
		}
	}
	t.Fatal("login response carried no session cookie")
	return ""
}

// uploadMaterial posts a multipart form and returns the recorder.
func (ts *testServer) uploadMaterial(t *testing.T, token, filename, subject string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("subject", subject))
	require.NoError(t, writer.WriteField("description", "uploaded in a test"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/materials", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.AddCookie(&http.Cookie{Name: "token", Value: token})

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	return parsed
}

func TestRegister_Success(t *testing.T) {
	ts := newTestServer(t, 1<<20)

	w := ts.doJSON(t, http.MethodPost, "/api/auth/register", gin.H{
		"username": "alice",
		"password": "Password123",
	}, "")

	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, "admin", user["role"], "First account should be the admin")
}

func TestRegister_DuplicateUsername(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	ts.register(t, "taken", "Password123")

	w := ts.doJSON(t, http.MethodPost, "/api/auth/register", gin.H{
		"username": "taken",
		"password": "OtherPassword456",
	}, "")

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegister_MissingFields(t *testing.T) {
	ts := newTestServer(t, 1<<20)

	w := ts.doJSON(t, http.MethodPost, "/api/auth/register", gin.H{
		"username": "incomplete",
	}, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_SetsHTTPOnlyCookie(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	ts.register(t, "cookieuser", "Password123")

	w := ts.doJSON(t, http.MethodPost, "/api/auth/login", gin.H{
		"username": "cookieuser",
		"password": "Password123",
	}, "")

	require.Equal(t, http.StatusOK, w.Code)

	var sessionCookie *http.Cookie
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "token" {
			sessionCookie = cookie
		}
	}
	require.NotNil(t, sessionCookie, "login should set the session cookie")
	assert.True(t, sessionCookie.HttpOnly, "session cookie must be HTTP-only")
	assert.Equal(t, 0, sessionCookie.MaxAge, "plain login should issue a browser-session cookie")

	body := decodeBody(t, w)
	user := body["user"].(map[string]any)
	assert.NotNil(t, user["badges"])
}

func TestLogin_RememberSetsPersistentCookie(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	ts.register(t, "longhaul", "Password123")

	w := ts.doJSON(t, http.MethodPost, "/api/auth/login", gin.H{
		"username": "longhaul",
		"password": "Password123",
		"remember": true,
	}, "")

	require.Equal(t, http.StatusOK, w.Code)
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "token" {
			assert.Equal(t, int((168 * time.Hour).Seconds()), cookie.MaxAge,
				"remember-me should persist the cookie for the long expiry")
			return
		}
	}
	t.Fatal("no session cookie set")
}

func TestLogin_WrongPassword(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	ts.register(t, "victim", "Password123")

	w := ts.doJSON(t, http.MethodPost, "/api/auth/login", gin.H{
		"username": "victim",
		"password": "WrongPassword",
	}, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogout_ClearsCookie(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	token := ts.register(t, "leaver", "Password123")

	w := ts.doJSON(t, http.MethodPost, "/api/auth/logout", nil, token)

	require.Equal(t, http.StatusOK, w.Code)
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "token" {
			assert.Empty(t, cookie.Value)
			assert.Negative(t, cookie.MaxAge, "logout should expire the cookie")
			return
		}
	}
	t.Fatal("logout did not touch the session cookie")
}

func TestProtectedRoutes_RequireSession(t *testing.T) {
	ts := newTestServer(t, 1<<20)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/materials"},
		{http.MethodGet, "/api/profile"},
		{http.MethodPost, "/api/auth/logout"},
		{http.MethodGet, "/api/admin/users"},
	} {
		w := ts.doJSON(t, route.method, route.path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s should demand a session", route.method, route.path)
	}
}

func TestProtectedRoutes_RejectGarbageToken(t *testing.T) {
	ts := newTestServer(t, 1<<20)

	w := ts.doJSON(t, http.MethodGet, "/api/materials", nil, "not-a-real-token")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMaterialLifecycle(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	token := ts.register(t, "author", "Password123")

	content := []byte("%PDF-1.4 integration test body")

	// Upload
	w := ts.uploadMaterial(t, token, "lecture one.pdf", "Mathematics", content)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	material := decodeBody(t, w)["material"].(map[string]any)
	materialID := material["id"].(string)
	assert.Equal(t, "Mathematics", material["subject"])

	// List shows it with filter options
	w = ts.doJSON(t, http.MethodGet, "/api/materials", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	listBody := decodeBody(t, w)
	assert.EqualValues(t, 1, listBody["count"])
	assert.Contains(t, listBody["subjects"], "Mathematics")
	assert.Contains(t, listBody["file_types"], "pdf")

	// Detail view carries the (empty) comment thread
	w = ts.doJSON(t, http.MethodGet, "/api/materials/"+materialID, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decodeBody(t, w)
	assert.NotNil(t, detail["material"])
	assert.Empty(t, detail["comments"])

	// Download returns the original bytes as an attachment
	w = ts.doJSON(t, http.MethodGet, "/api/materials/"+materialID+"/download", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, content, w.Body.Bytes())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Header().Get("Content-Type"), "application/pdf")

	// Preview serves inline
	w = ts.doJSON(t, http.MethodGet, "/api/materials/"+materialID+"/preview", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "inline")

	// Like twice
	w = ts.doJSON(t, http.MethodPost, "/api/materials/"+materialID+"/like", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeBody(t, w)["like_count"])
	w = ts.doJSON(t, http.MethodPost, "/api/materials/"+materialID+"/like", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decodeBody(t, w)["like_count"])

	// Comment and reply
	w = ts.doJSON(t, http.MethodPost, "/api/materials/"+materialID+"/comments", gin.H{
		"text": "very useful, thanks",
	}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	comment := decodeBody(t, w)["comment"].(map[string]any)

	w = ts.doJSON(t, http.MethodPost, "/api/materials/"+materialID+"/comments", gin.H{
		"text":      "glad it helped",
		"parent_id": comment["id"],
	}, token)
	require.Equal(t, http.StatusCreated, w.Code)

	// Thread shows up on the detail view
	w = ts.doJSON(t, http.MethodGet, "/api/materials/"+materialID, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	comments := decodeBody(t, w)["comments"].([]any)
	require.Len(t, comments, 1, "Reply should nest under its parent, not appear at top level")
	replies := comments[0].(map[string]any)["replies"].([]any)
	assert.Len(t, replies, 1)

	// Delete by the owner
	w = ts.doJSON(t, http.MethodDelete, "/api/materials/"+materialID, nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.doJSON(t, http.MethodGet, "/api/materials/"+materialID, nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpload_RejectsDisallowedExtension(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	token := ts.register(t, "trouble", "Password123")

	w := ts.uploadMaterial(t, token, "malware.exe", "Security", []byte("MZ"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_OversizedBodyGets413(t *testing.T) {
	ts := newTestServer(t, 1024) // 1 KiB ceiling
	token := ts.register(t, "bigspender", "Password123")

	w := ts.uploadMaterial(t, token, "huge.pdf", "Economics", make([]byte, 8192))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestDelete_NonOwnerForbidden(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	ownerToken := ts.register(t, "owner", "Password123") // first account: admin
	strangerToken := ts.register(t, "stranger", "Password123")

	w := ts.uploadMaterial(t, ownerToken, "mine.pdf", "Law", []byte("content"))
	require.Equal(t, http.StatusCreated, w.Code)
	materialID := decodeBody(t, w)["material"].(map[string]any)["id"].(string)

	w = ts.doJSON(t, http.MethodDelete, "/api/materials/"+materialID, nil, strangerToken)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestComment_TooLongRejected(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	token := ts.register(t, "rambler", "Password123")

	w := ts.uploadMaterial(t, token, "notes.pdf", "Literature", []byte("content"))
	require.Equal(t, http.StatusCreated, w.Code)
	materialID := decodeBody(t, w)["material"].(map[string]any)["id"].(string)

	long := bytes.Repeat([]byte("a"), 501)
	w = ts.doJSON(t, http.MethodPost, "/api/materials/"+materialID+"/comments", gin.H{
		"text": string(long),
	}, token)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfile_GetAndChangePassword(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	token := ts.register(t, "selfservice", "Password123")

	w := ts.doJSON(t, http.MethodGet, "/api/profile", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "selfservice", body["user"].(map[string]any)["username"])
	assert.Contains(t, body["badges"], "Admin", "First account carries the Admin badge")

	w = ts.doJSON(t, http.MethodPut, "/api/profile/password", gin.H{
		"current_password": "Password123",
		"new_password":     "NewPassword456",
	}, token)
	require.Equal(t, http.StatusOK, w.Code)

	ts.login(t, "selfservice", "NewPassword456")
}

func TestAdminRoutes_RegularUserForbidden(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	ts.register(t, "theadmin", "Password123")
	userToken := ts.register(t, "pleb", "Password123")

	w := ts.doJSON(t, http.MethodGet, "/api/admin/users", nil, userToken)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminRoutes_ListAndDelete(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	adminToken := ts.register(t, "theadmin", "Password123")
	userToken := ts.register(t, "target", "Password123")

	// Target uploads something so the cascade has work to do
	w := ts.uploadMaterial(t, userToken, "doomed.pdf", "History", []byte("content"))
	require.Equal(t, http.StatusCreated, w.Code)
	materialID := decodeBody(t, w)["material"].(map[string]any)["id"].(string)

	// Admin sees both accounts
	w = ts.doJSON(t, http.MethodGet, "/api/admin/users", nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decodeBody(t, w)["count"])

	// Find the target's ID from the listing
	var targetID string
	for _, u := range decodeBody(t, w)["users"].([]any) {
		user := u.(map[string]any)
		if user["username"] == "target" {
			targetID = user["id"].(string)
		}
	}
	require.NotEmpty(t, targetID)

	// Delete the target
	w = ts.doJSON(t, http.MethodDelete, "/api/admin/users/"+targetID, nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)

	// Account and material are gone
	w = ts.doJSON(t, http.MethodGet, "/api/admin/users", nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeBody(t, w)["count"])

	w = ts.doJSON(t, http.MethodGet, "/api/materials/"+materialID, nil, adminToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdmin_SelfDeletionRefused(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	adminToken := ts.register(t, "theadmin", "Password123")

	w := ts.doJSON(t, http.MethodGet, "/api/admin/users", nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	adminID := decodeBody(t, w)["users"].([]any)[0].(map[string]any)["id"].(string)

	w = ts.doJSON(t, http.MethodDelete, "/api/admin/users/"+adminID, nil, adminToken)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_RoleIsRereadFromStore(t *testing.T) {
	// A token minted while the caller was admin stops working on admin
	// routes once the stored role changes.
	ts := newTestServer(t, 1<<20)
	adminToken := ts.register(t, "demoted", "Password123")

	// Demote directly in the store; the token still says admin
	require.NoError(t, ts.db.DB.Exec("UPDATE users SET role = 'user' WHERE username = 'demoted'").Error)

	w := ts.doJSON(t, http.MethodGet, "/api/admin/users", nil, adminToken)

	assert.Equal(t, http.StatusForbidden, w.Code, "Stale admin claim must not grant admin access")
}

func TestMaterialIDValidation(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	token := ts.register(t, "validator", "Password123")

	w := ts.doJSON(t, http.MethodGet, "/api/materials/not-a-uuid", nil, token)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
