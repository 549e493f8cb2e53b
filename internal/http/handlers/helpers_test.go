package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/insighthub/internal/domain/user"
	"github.com/geocoder89/insighthub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Make sure Gin does not spam the console during the test
func init() {
	gin.SetMode(gin.TestMode)
}

func newUUID() string {
	return uuid.NewString()
}

// asActor stands in for RequireAuth: it puts an identity on the context.
func asActor(id string, role user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middlewares.CtxUserID, id)
		c.Set(middlewares.CtxRole, role)
		c.Next()
	}
}

func setupRouter(method, path string, actor gin.HandlerFunc, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	if actor != nil {
		r.Handle(method, path, actor, h)
	} else {
		r.Handle(method, path, h)
	}
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type noticeResponse struct {
	Notice struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	} `json:"notice"`
	User *user.User `json:"user"`
}

func decodeNotice(t *testing.T, w *httptest.ResponseRecorder) noticeResponse {
	t.Helper()

	var resp noticeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal notice: %v body=%s", err, w.Body.String())
	}
	return resp
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error: %v body=%s", err, w.Body.String())
	}
	return resp.Error.Code
}
