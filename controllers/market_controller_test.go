package controllers_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shantanubawankar/Stockpricetracker/controllers"
	"github.com/shantanubawankar/Stockpricetracker/services"
)

func newMarketRouter(t *testing.T, handler http.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := httptest.NewServer(handler)
	t.Cleanup(upstream.Close)

	quotes := services.NewQuoteService("test-key", time.Second, services.WithBaseURL(upstream.URL))
	marketController := controllers.NewMarketController(quotes)

	router := gin.New()
	router.GET("/api/search", marketController.Search)
	router.GET("/api/quote", marketController.Quote)
	router.GET("/api/historic", marketController.Historic)
	return router
}

func TestMarketSearch_EmptyQueryShortCircuits(t *testing.T) {
	called := false
	router := newMarketRouter(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/search?q=", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"results": []}`, w.Body.String())
	assert.False(t, called, "empty query must not reach the provider")
}

func TestMarketQuote_MissingSymbolRejected(t *testing.T) {
	router := newMarketRouter(t, func(w http.ResponseWriter, r *http.Request) {})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/quote", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarketQuote_RateLimitMapsTo429(t *testing.T) {
	router := newMarketRouter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Note": "rate limit reached"}`)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/quote?symbol=acme", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestMarketQuote_UpstreamFailureMapsTo502(t *testing.T) {
	router := newMarketRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/quote?symbol=ACME", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestMarketHistoric_DefaultsToDaily(t *testing.T) {
	router := newMarketRouter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "TIME_SERIES_DAILY", r.URL.Query().Get("function"))
		fmt.Fprint(w, `{"Time Series (Daily)": {
			"2024-05-01": {"4. close": "100.0", "5. volume": "1500"}
		}}`)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/historic?symbol=ACME", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"2024-05-01"`)
}
