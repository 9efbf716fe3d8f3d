package middleware

import (
	"errors"
	"strings"

	"postbook/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Health and scrape endpoints are polled constantly and carry no domain work.
var healthPaths = map[string]bool{
	"/health":       true,
	"/health/live":  true,
	"/health/ready": true,
	"/metrics":      true,
}

// TracingMiddleware opens a server span per request using observability.Tracer.
// It must run before ContextMiddleware so the trace id reaches the request logger.
func TracingMiddleware() fiber.Handler {
	return tracingWith(func() trace.Tracer { return observability.Tracer })
}

func tracingWith(tracer func() trace.Tracer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if healthPaths[c.Path()] {
			return c.Next()
		}

		// Fiber reuses request buffers; spans outlive the request.
		method, path := strings.Clone(c.Method()), strings.Clone(c.Path())
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))
		ctx, span := tracer().Start(ctx, method+" "+path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", method),
				attribute.String("url.path", path),
				attribute.String("client.address", strings.Clone(c.IP())),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Locals("spanID", span.SpanContext().SpanID().String())
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			span.SetAttributes(attribute.String("request.id", rid))
		}
		c.Set("X-Trace-ID", traceID)
		c.SetUserContext(ctx)

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
			span.RecordError(err)
		}
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, "server error")
		}

		if route := c.Route(); route != nil && route.Path != "" {
			span.SetName(method + " " + route.Path)
			span.SetAttributes(attribute.String("http.route", route.Path))
			for _, id := range routeIDs(c, route.Path) {
				span.SetAttributes(attribute.String("postbook."+id.name, id.value))
			}
		}
		return err
	}
}

type routeID struct {
	name  string
	value string
}

// routeIDs returns the account and post a request targets, copied out of
// Fiber's request buffers.
func routeIDs(c *fiber.Ctx, route string) []routeID {
	var ids []routeID
	switch {
	case strings.HasPrefix(route, "/api/accounts/:id"):
		ids = append(ids, routeID{"account_id", strings.Clone(c.Params("id"))})
		if pid := c.Params("postId"); pid != "" {
			ids = append(ids, routeID{"post_id", strings.Clone(pid)})
		}
	case strings.HasPrefix(route, "/api/posts/:id"):
		ids = append(ids, routeID{"post_id", strings.Clone(c.Params("id"))})
	}
	return ids
}
