package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveOperationCounters(t *testing.T) {
	before := testutil.ToFloat64(operationsTotal.WithLabelValues("delete", "processed", "false"))

	ObserveOperation("delete", false, 3, 1, 0, 10*time.Millisecond)

	after := testutil.ToFloat64(operationsTotal.WithLabelValues("delete", "processed", "false"))
	assert.Equal(t, before+3, after)
}

func TestFreedBytesIgnoresNonPositive(t *testing.T) {
	before := testutil.ToFloat64(freedBytesTotal)
	FreedBytes(0)
	FreedBytes(-5)
	FreedBytes(128)
	assert.Equal(t, before+128, testutil.ToFloat64(freedBytesTotal))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/items/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/items/:id", "204"))

	resp, err := app.Test(httptest.NewRequest("GET", "/items/42", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/items/:id", "204")))
}
