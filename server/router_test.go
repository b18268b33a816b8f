package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/itish2003/therapybot/config"
	"github.com/itish2003/therapybot/controller"
	"github.com/itish2003/therapybot/models"
	"github.com/itish2003/therapybot/services"
)

type mockRAGService struct {
	mock.Mock
}

func (m *mockRAGService) Respond(ctx context.Context, sessionID, message string) (string, error) {
	args := m.Called(ctx, sessionID, message)
	return args.String(0), args.Error(1)
}

func (m *mockRAGService) History(sessionID string) []models.Turn {
	args := m.Called(sessionID)
	turns, _ := args.Get(0).([]models.Turn)
	return turns
}

func (m *mockRAGService) Ready() bool {
	return m.Called().Bool(0)
}

type staticRetriever struct{}

func (staticRetriever) Retrieve(context.Context, string) ([]models.Chunk, error) {
	return []models.Chunk{{ID: "c1", Text: "Exams are stressful for many students."}}, nil
}

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, prompt models.Prompt) (services.Reply, error) {
	return services.Reply{Answer: "You said: " + prompt.User}, nil
}

func newTestRouter(svc services.RAGService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(RouterConfig{
		Controller: controller.NewRAGController(svc),
		SecretKey:  "test-secret",
	})
}

func postForm(msg string) *http.Request {
	form := url.Values{}
	form.Set("msg", msg)
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func postJSON(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(router *gin.Engine, req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatalf("response has no %s cookie", sessionCookieName)
	return nil
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestIndex_RendersChatPageAndSetsSession(t *testing.T) {
	router := newTestRouter(new(mockRAGService))

	w := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "/chat")
	cookie := sessionCookie(t, w)
	assert.True(t, cookie.HttpOnly)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestSessionCookie_NotSecureByDefaultEvenWithDebugOff(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DEBUG", "false")
	cfg, err := config.Load()
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := NewRouter(RouterConfig{
		Controller:    controller.NewRAGController(new(mockRAGService)),
		SecretKey:     cfg.SecretKey,
		SecureCookies: cfg.SecureCookies,
	})

	w := serve(router, httptest.NewRequest(http.MethodGet, "http://0.0.0.0:8080/", nil))
	cookie := sessionCookie(t, w)
	assert.False(t, cookie.Secure)
	assert.NotContains(t, w.Header().Get("Set-Cookie"), "Secure")
}

func TestSessionCookie_SecureWhenEnabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(RouterConfig{
		Controller:    controller.NewRAGController(new(mockRAGService)),
		SecretKey:     "test-secret",
		SecureCookies: true,
	})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, sessionCookie(t, w).Secure)
}

func TestChat_FormBody(t *testing.T) {
	svc := new(mockRAGService)
	svc.On("Respond", mock.Anything, mock.AnythingOfType("string"), "I feel anxious about exams").
		Return("That sounds hard. What worries you most?", nil)
	router := newTestRouter(svc)

	w := serve(router, postForm("I feel anxious about exams"))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.ChatResponse
	decodeJSON(t, w, &resp)
	assert.Equal(t, "That sounds hard. What worries you most?", resp.Answer)
	svc.AssertExpectations(t)
}

func TestChat_JSONBody(t *testing.T) {
	svc := new(mockRAGService)
	svc.On("Respond", mock.Anything, mock.AnythingOfType("string"), "hello").Return("hi there", nil)
	router := newTestRouter(svc)

	w := serve(router, postJSON(`{"msg":"hello"}`))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer":"hi there"}`, w.Body.String())
}

func TestChat_MissingMessage(t *testing.T) {
	tests := []struct {
		name string
		req  *http.Request
	}{
		{name: "empty form field", req: postForm("")},
		{name: "empty json object", req: postJSON(`{}`)},
		{name: "empty json msg", req: postJSON(`{"msg":""}`)},
		{name: "no body", req: httptest.NewRequest(http.MethodPost, "/chat", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockRAGService)
			router := newTestRouter(svc)

			w := serve(router, tt.req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error":"no msg provided"}`, w.Body.String())
			svc.AssertNotCalled(t, "Respond", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestChat_NotReady(t *testing.T) {
	svc := services.NewRAGService(staticRetriever{}, nil, nil)
	router := newTestRouter(svc)

	w := serve(router, postForm("hello"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"server not ready"}`, w.Body.String())
}

func TestChat_UnexpectedErrorIsNotLeaked(t *testing.T) {
	svc := new(mockRAGService)
	svc.On("Respond", mock.Anything, mock.Anything, "hello").
		Return("", errors.New("could not generate response: quota exceeded for key AIzaSecret"))
	router := newTestRouter(svc)

	w := serve(router, postForm("hello"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp models.ErrorResponse
	decodeJSON(t, w, &resp)
	assert.Equal(t, "failed to generate reply", resp.Error)
	assert.NotContains(t, w.Body.String(), "AIzaSecret")
}

func TestChat_SessionPersistsAcrossRequests(t *testing.T) {
	svc := services.NewRAGService(staticRetriever{}, echoGenerator{}, services.NewHistoryStore(services.DefaultHistoryLimit))
	router := newTestRouter(svc)

	first := serve(router, postForm("first message"))
	require.Equal(t, http.StatusOK, first.Code)
	cookie := sessionCookie(t, first)

	second := serve(router, postJSON(`{"msg":"second message"}`), cookie)
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, `{"answer":"You said: second message"}`, second.Body.String())

	w := serve(router, httptest.NewRequest(http.MethodGet, "/history", nil), cookie)
	require.Equal(t, http.StatusOK, w.Code)

	var hist models.HistoryResponse
	decodeJSON(t, w, &hist)
	assert.NotEmpty(t, hist.SessionID)
	assert.Equal(t, 4, hist.Count)
	assert.Equal(t, []models.Turn{
		{Role: models.RoleUser, Text: "first message"},
		{Role: models.RoleBot, Text: "You said: first message"},
		{Role: models.RoleUser, Text: "second message"},
		{Role: models.RoleBot, Text: "You said: second message"},
	}, hist.Turns)

	// a caller without the cookie gets a fresh, empty session
	fresh := serve(router, httptest.NewRequest(http.MethodGet, "/history", nil))
	var other models.HistoryResponse
	decodeJSON(t, fresh, &other)
	assert.NotEqual(t, hist.SessionID, other.SessionID)
	assert.Zero(t, other.Count)
}

func TestChat_TamperedCookieStartsNewSession(t *testing.T) {
	svc := services.NewRAGService(staticRetriever{}, echoGenerator{}, nil)
	router := newTestRouter(svc)

	first := serve(router, postForm("hello"))
	cookie := sessionCookie(t, first)
	cookie.Value = "tampered" + cookie.Value

	w := serve(router, httptest.NewRequest(http.MethodGet, "/history", nil), cookie)
	var hist models.HistoryResponse
	decodeJSON(t, w, &hist)
	assert.Zero(t, hist.Count)
}

func TestHealth(t *testing.T) {
	svc := new(mockRAGService)
	svc.On("Ready").Return(true)
	router := newTestRouter(svc)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"therapybot","ready":true}`, w.Body.String())
}

func TestRequestID_Propagated(t *testing.T) {
	svc := new(mockRAGService)
	svc.On("Ready").Return(false)
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := serve(router, req)

	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}
