package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"pfmt-portal/internal/apperr"
	"pfmt-portal/internal/store"
)

func TestStoreErr(t *testing.T) {
	require.True(t, apperr.IsNotFound(storeErr("get project", store.ErrNotFound)))

	var pErr *apperr.PersistenceError
	err := storeErr("list my projects", errors.New("connection refused"))
	require.ErrorAs(t, err, &pErr)
	require.Equal(t, "list my projects", pErr.Op)
}

func TestRespondErrStoreFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	respondErr(c, storeErr("list audit", errors.New("connection refused")))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), apperr.CodePersistence)
}

func TestRespondErrNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	respondErr(c, storeErr("get project", store.ErrNotFound))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), apperr.CodeNotFound)
}
