package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func tracedApp(t *testing.T) (*fiber.App, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })

	app := fiber.New()
	app.Use(tracingWith(func() trace.Tracer { return tp.Tracer("test") }))
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Put("/api/accounts/:id/posts/:postId", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/api/posts/:id", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusInternalServerError, "store down")
	})
	app.Get("/api/accounts/:id", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"code": "ACCOUNT_NOT_FOUND"})
	})
	return app, recorder
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracing_NamesSpanByRouteAndTagsIDs(t *testing.T) {
	app, recorder := tracedApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodPut, "/api/accounts/7/posts/42", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	span := ended[0]
	assert.Equal(t, "PUT /api/accounts/:id/posts/:postId", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())

	attrs := spanAttrs(span)
	assert.Equal(t, "7", attrs["postbook.account_id"].AsString())
	assert.Equal(t, "42", attrs["postbook.post_id"].AsString())
	assert.Equal(t, int64(200), attrs["http.response.status_code"].AsInt64())
	assert.Equal(t, codes.Unset, span.Status().Code)
}

func TestTracing_OnlyServerErrorsMarkSpanFailed(t *testing.T) {
	app, recorder := tracedApp(t)

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/accounts/3", nil))
	require.NoError(t, err)
	_, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/posts/9", nil))
	require.NoError(t, err)

	ended := recorder.Ended()
	require.Len(t, ended, 2)

	assert.Equal(t, codes.Unset, ended[0].Status().Code)
	assert.Equal(t, int64(404), spanAttrs(ended[0])["http.response.status_code"].AsInt64())

	assert.Equal(t, "GET /api/posts/:id", ended[1].Name())
	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Equal(t, "9", spanAttrs(ended[1])["postbook.post_id"].AsString())
}

func TestTracing_SkipsHealthEndpoints(t *testing.T) {
	app, recorder := tracedApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("X-Trace-ID"))
	assert.Empty(t, recorder.Ended())
}
