package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iyabivuz-e/SomaAI/internal/domain"
)

func TestErrorMapsDomainErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
	}{
		{domain.Invalid("grade", "must be P1-P6 or S1-S6"), http.StatusBadRequest},
		{fmt.Errorf("load: %w", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("search: %w", domain.ErrRetrievalUnavailable), http.StatusServiceUnavailable},
		{domain.ErrGenerationUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("delete: %w", domain.ErrConflict), http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		Error(c, tc.err)

		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.EqualValues(t, 0, body["ok"])
		assert.EqualValues(t, tc.status, body["code"])
	}
}

func TestOKWrapsSlices(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	OK(c, []string{"a"})

	assert.JSONEq(t, `{"data":["a"]}`, w.Body.String())
}
