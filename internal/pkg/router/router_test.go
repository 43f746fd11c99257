package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PropFox/app/controllers"
	"github.com/ManuelReschke/PropFox/internal/pkg/env"
	"github.com/ManuelReschke/PropFox/internal/pkg/jobqueue"
)

func TestInstallRouter(t *testing.T) {
	env.Env = map[string]string{"API_RATE_LIMIT_MAX": "2"}
	t.Cleanup(func() { env.Env = nil })

	app := fiber.New()
	InstallRouter(app, controllers.NewAPI(nil, nil, nil), nil, nil, nil)

	get := func(path string) (int, map[string]interface{}) {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		defer resp.Body.Close()
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp.StatusCode, body
	}

	status, body := get("/healthz")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, body = get("/api/v1/ping")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "pong", body["ping"])

	status, _ = get("/api/v1/ping")
	assert.Equal(t, fiber.StatusOK, status)

	status, body = get("/api/v1/ping")
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, "rate_limited", body["error"])

	// the health check is not rate limited
	status, _ = get("/healthz")
	assert.Equal(t, fiber.StatusOK, status)
}

type fixedDepth struct {
	depth jobqueue.Depth
	err   error
}

func (f fixedDepth) Depth(ctx context.Context) (jobqueue.Depth, error) {
	return f.depth, f.err
}

func TestHealthReportsQueueDepth(t *testing.T) {
	tests := []struct {
		name    string
		queue   fixedDepth
		status  string
		queueKV map[string]interface{}
	}{
		{
			name:    "reachable queue",
			queue:   fixedDepth{depth: jobqueue.Depth{Pending: 4, Processing: 1, Completed: 20, Failed: 2}},
			status:  "ok",
			queueKV: map[string]interface{}{"pending": float64(4), "processing": float64(1), "completed": float64(20), "failed": float64(2)},
		},
		{
			name:    "redis down",
			queue:   fixedDepth{err: errors.New("connection refused")},
			status:  "degraded",
			queueKV: map[string]interface{}{"error": "unavailable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			NewHealthRouter(tt.queue).InstallRouter(app)

			resp, err := app.Test(httptest.NewRequest("GET", "/healthz", nil))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, fiber.StatusOK, resp.StatusCode)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.status, body["status"])
			assert.Equal(t, tt.queueKV, body["queue"])
		})
	}
}
