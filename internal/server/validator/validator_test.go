package validator

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/content-gateway/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var v *Validator

func init() {
	gin.SetMode(gin.TestMode)
	var err error
	if v, err = New(); err != nil {
		panic(err)
	}
}

func bind(t *testing.T, body string) map[string]string {
	t.Helper()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var req api.GenerateRequest
	err := c.ShouldBindJSON(&req)
	if err == nil {
		return nil
	}
	return v.ParseError(err)
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
		msg   string
	}{
		{"missing prompt", `{}`, "prompt", "prompt is a required field"},
		{"blank prompt", `{"prompt": "   "}`, "prompt", "prompt must not be blank"},
		{"non-string prompt", `{"prompt": 42}`, "prompt", "prompt must be a string"},
		{"not json", `prompt=hi`, "body", "Invalid request body format. Please fix your payload."},
		{"empty body", ``, "body", "Request body is empty."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := bind(t, tt.body)
			require.NotNil(t, errs)
			assert.Equal(t, tt.msg, errs[tt.field])
		})
	}
}

func TestValidPrompt(t *testing.T) {
	assert.Nil(t, bind(t, `{"prompt": "Hello"}`))
}
