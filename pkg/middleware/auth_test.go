package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/weiawesome/wes-io-polls/pkg/response"
)

type codedErr struct {
	code   string
	status int
}

func (e codedErr) Error() string     { return e.code }
func (e codedErr) ErrorCode() string { return e.code }
func (e codedErr) HTTPStatus() int   { return e.status }

var (
	errMissing = codedErr{code: "TOKEN_REQUIRED", status: http.StatusUnauthorized}
	errBad     = codedErr{code: "AUTH_FAILED", status: http.StatusUnauthorized}
)

type stubValidator map[string]*Principal

func (s stubValidator) ValidateToken(_ context.Context, token string) (*Principal, error) {
	if p, ok := s[token]; ok {
		return p, nil
	}
	return nil, errBad
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	validator := stubValidator{"good": {UserID: "user_1", Username: "alice", Role: "admin"}}
	mw := NewAuthMiddleware(validator, errMissing)

	r := gin.New()
	r.GET("/me", mw.RequireAuth(), func(c *gin.Context) {
		response.Success(c, GetPrincipal(c))
	})

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
		wantCode   string
	}{
		{name: "no token", wantStatus: http.StatusUnauthorized, wantCode: "TOKEN_REQUIRED"},
		{name: "bad token", header: "Bearer nope", wantStatus: http.StatusUnauthorized, wantCode: "AUTH_FAILED"},
		{name: "non bearer header", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantCode: "TOKEN_REQUIRED"},
		{name: "header token", header: "Bearer good", wantStatus: http.StatusOK},
		{name: "query token", query: "?token=good", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderKey, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}

			var body struct {
				Success bool                `json:"success"`
				Data    Principal           `json:"data"`
				Error   *response.ErrorInfo `json:"error"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if tt.wantCode != "" {
				if body.Error == nil || body.Error.Code != tt.wantCode {
					t.Errorf("error = %+v, want code %s", body.Error, tt.wantCode)
				}
				return
			}
			if body.Data.UserID != "user_1" || body.Data.Role != "admin" {
				t.Errorf("principal = %+v", body.Data)
			}
		})
	}
}

func TestFailFromErrorUnclassified(t *testing.T) {
	status, resp := response.FailFromError(errors.New("boom"))
	if status != http.StatusInternalServerError || resp.Error.Code != response.CodeInternal {
		t.Errorf("got %d %+v", status, resp.Error)
	}
}
