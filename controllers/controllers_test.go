package controllers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shantanubawankar/Stockpricetracker/controllers"
	"github.com/shantanubawankar/Stockpricetracker/middleware"
	"github.com/shantanubawankar/Stockpricetracker/models"
)

const testJWTSecret = "test-secret"

// newAPIFixture wires the auth, watchlist, and alert controllers onto a
// router the way the real route setup does
func newAPIFixture(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, models.MigrateUserModels(db))

	authController := controllers.NewAuthController(db, testJWTSecret)
	watchlistController := controllers.NewWatchlistController(db)
	alertController := controllers.NewAlertController(db)

	router := gin.New()
	api := router.Group("/api")
	api.POST("/register", authController.Register)
	api.POST("/login", authController.Login)
	api.POST("/logout", authController.Logout)

	authed := api.Group("")
	authed.Use(middleware.JWTAuthMiddleware(testJWTSecret))
	authed.GET("/me", authController.Me)
	authed.GET("/watchlist", watchlistController.List)
	authed.POST("/watchlist", watchlistController.Add)
	authed.DELETE("/watchlist/:symbol", watchlistController.Remove)
	authed.GET("/alerts", alertController.List)
	authed.POST("/alerts", alertController.Create)
	authed.DELETE("/alerts/:id", alertController.Delete)

	return router, db
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func registerUser(t *testing.T, router *gin.Engine, email, password string) string {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/register", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}
