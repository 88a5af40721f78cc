package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listRequest struct {
	Name  string   `param:"name" validate:"required,max=8"`
	Tags  []string `json:"tags" validate:"required,min=1,dive,required,max=4"`
	Limit int      `query:"limit" default:"10" validate:"gte=1,lte=50"`
}

func bindContext(t *testing.T, method, target, body string, name string) echo.Context {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := echo.New().NewContext(req, httptest.NewRecorder())
	c.SetParamNames("name")
	c.SetParamValues(name)
	return c
}

func TestReadAndValidateRequestAppliesDefaults(t *testing.T) {
	req := &listRequest{}
	c := bindContext(t, http.MethodPost, "/lists/ab", `{"tags":["x"]}`, "ab")

	assert.Nil(t, ReadAndValidateRequest(c, req))
	assert.Equal(t, "ab", req.Name)
	assert.Equal(t, 10, req.Limit)
}

func TestReadAndValidateRequestReportsTagNames(t *testing.T) {
	req := &listRequest{}
	c := bindContext(t, http.MethodGet, "/lists/ab?limit=99", `{"tags":["ok","toolong"]}`, "ab")

	out := ReadAndValidateRequest(c, req)
	errs, ok := out.([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 2)

	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}
	assert.Equal(t, "ERR_MAX", byField["tags[1]"].Code)
	assert.Equal(t, "ERR_LTE", byField["limit"].Code)
	assert.Equal(t, "50", byField["limit"].Params["max"])
}

func TestReadAndValidateRequestBindFailure(t *testing.T) {
	c := bindContext(t, http.MethodPost, "/lists/ab", `{"tags":`, "ab")

	errs, ok := ReadAndValidateRequest(c, &listRequest{}).([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_BIND", errs[0].Code)
}
