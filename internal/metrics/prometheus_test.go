package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareAndHandler(t *testing.T) {
	Init()
	Init()

	app := fiber.New()
	app.Use(Middleware())
	app.Get("/api/v1/summary", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/metrics", MetricsHandler())

	before := testutil.CollectAndCount(RequestDuration)
	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/summary", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(RequestDuration), before)

	Interactions.WithLabelValues("summary").Inc()

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `rulings_request_duration_seconds_count{route="/api/v1/summary",status="2xx"}`)
	assert.Contains(t, string(body), `rulings_interactions_total{view="summary"}`)
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "3xx", statusClass(302))
	assert.Equal(t, "4xx", statusClass(429))
	assert.Equal(t, "5xx", statusClass(503))
}
