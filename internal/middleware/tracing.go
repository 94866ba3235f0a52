package middleware

import (
	"strings"

	"creditfeed/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware opens one server span per request. The span is renamed
// to the matched route once the handler chain has run, and carries the
// caller, the content item or target user the route addresses, and the feed
// source filter when present.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))

		ctx, span := observability.Tracer.Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.path", c.Path()),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Set("X-Trace-ID", traceID)
		if requestID, ok := c.Locals("requestid").(string); ok && requestID != "" {
			span.SetAttributes(attribute.String("request.id", requestID))
		}
		c.SetUserContext(ctx)

		err := c.Next()

		route := c.Route().Path
		span.SetName(c.Method() + " " + route)
		span.SetAttributes(domainAttributes(c, route)...)

		status := c.Response().StatusCode()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if err != nil {
			span.RecordError(err)
		}
		if err != nil || status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, "request failed")
		}
		return err
	}
}

func domainAttributes(c *fiber.Ctx, route string) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if userID, ok := c.Locals("userID").(uint); ok {
		attrs = append(attrs, attribute.Int64("user.id", int64(userID)))
	}
	if id, err := c.ParamsInt("id"); err == nil && id > 0 {
		switch {
		case strings.Contains(route, "/items/:id"), strings.HasPrefix(route, "/api/admin/reported/:id"):
			attrs = append(attrs, attribute.Int64("content.id", int64(id)))
		case strings.HasPrefix(route, "/api/admin/users/:id"):
			attrs = append(attrs, attribute.Int64("target_user.id", int64(id)))
		}
	}
	if source := c.Query("source"); source != "" {
		attrs = append(attrs, attribute.String("feed.source", strings.ToLower(source)))
	}
	return attrs
}
