package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stack-service/tax_service/internal/api/middleware"
	"github.com/stack-service/tax_service/internal/infrastructure/config"
	"github.com/stack-service/tax_service/internal/infrastructure/di"
	"github.com/stack-service/tax_service/pkg/logger"
)

func TestSetupRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	container, err := di.NewContainer(&config.Config{
		Database:   config.DatabaseConfig{Driver: config.DriverMemory},
		Harvesting: config.HarvestingConfig{SuggestionTTLHours: 24},
	}, nil, logger.NewNop())
	require.NoError(t, err)

	router := SetupRoutes(container, middleware.NewRateLimiter(100))

	tests := []struct {
		method   string
		path     string
		body     string
		wantCode int
	}{
		{http.MethodGet, "/live", "", http.StatusOK},
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/version", "", http.StatusOK},
		{http.MethodGet, "/api/v1/tax/harvesting/suggestions", "", http.StatusOK},
		{http.MethodPost, "/api/v1/tax/optimization", `{"country":"AT","taxYear":2024}`, http.StatusOK},
		{http.MethodPost, "/api/v1/tax/harvesting/suggestions/generate", `{"portfolio_id":"p1","tax_year":2024}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}
