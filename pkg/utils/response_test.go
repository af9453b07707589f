package utils

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-wellness/backend/internal/apperror"
)

func TestRespondErrMapsKinds(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{err: apperror.Invalid("text", "is required"), want: http.StatusBadRequest},
		{err: apperror.Service("ritual", errors.New("boom")), want: http.StatusBadGateway},
		{err: apperror.Persistence("set", "k", errors.New("disk")), want: http.StatusInternalServerError},
		{err: errors.New("other"), want: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondErr(rr, tc.err)
		assert.Equal(t, tc.want, rr.Code, tc.err.Error())
		assert.Contains(t, rr.Body.String(), `"error"`)
	}
}

func TestDecodeJSONAcceptsEmptyBody(t *testing.T) {
	var dst struct {
		Title string `json:"title"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &dst))
	assert.Empty(t, dst.Title)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"x"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &dst))
	assert.Equal(t, "x", dst.Title)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	assert.Error(t, DecodeJSON(httptest.NewRecorder(), req, &dst))
}
