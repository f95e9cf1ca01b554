package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/coachdesk/coachdesk-api/internal/models"
)

func newRBACRouter(user *models.User, allowed ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/users/:id", func(c *gin.Context) {
		if user != nil {
			c.Set(ContextUserKey, user)
		}
		c.Next()
	}, RBAC(allowed...), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func performRBAC(router *gin.Engine, path string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestRBACAllowsMatchingRole(t *testing.T) {
	router := newRBACRouter(&models.User{ID: "admin-1", Role: models.RoleAdmin}, "ADMIN")
	recorder := performRBAC(router, "/users/other")
	assert.Equal(t, http.StatusNoContent, recorder.Code)
}

func TestRBACRejectsOtherRole(t *testing.T) {
	router := newRBACRouter(&models.User{ID: "student-1", Role: models.RoleStudent}, "ADMIN")
	recorder := performRBAC(router, "/users/other")
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestRBACSelfMarkerMatchesOwnID(t *testing.T) {
	router := newRBACRouter(&models.User{ID: "student-1", Role: models.RoleStudent}, "ADMIN", "SELF")

	recorder := performRBAC(router, "/users/student-1")
	assert.Equal(t, http.StatusNoContent, recorder.Code)

	recorder = performRBAC(router, "/users/student-2")
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestRBACMissingUser(t *testing.T) {
	router := newRBACRouter(nil, "ADMIN")
	recorder := performRBAC(router, "/users/other")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/admin", func(c *gin.Context) {
		c.Set(ContextUserKey, &models.User{ID: "admin-1", Role: models.RoleAdmin})
		c.Next()
	}, RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	recorder := performRBAC(router, "/admin")
	assert.Equal(t, http.StatusNoContent, recorder.Code)
}
