package tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Middleware wraps the handler of the named tool
type Middleware func(name string, next server.ToolHandlerFunc) server.ToolHandlerFunc

// Chain applies middlewares so the first one listed runs outermost
func Chain(name string, handler server.ToolHandlerFunc, middlewares ...Middleware) server.ToolHandlerFunc {
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] != nil {
			handler = middlewares[i](name, handler)
		}
	}
	return handler
}

// DefaultMiddlewares returns tracing, metrics and validation in that
// order, skipping the ones whose dependency is missing.
func DefaultMiddlewares(deps ToolDependencies) []Middleware {
	var mws []Middleware
	if deps.Tracing != nil {
		mws = append(mws, TracingMiddleware(deps))
	}
	if deps.ToolMetrics != nil {
		mws = append(mws, MetricsMiddleware(deps))
	}
	if deps.Validator != nil {
		mws = append(mws, ValidationMiddleware(deps))
	}
	return mws
}

// TracingMiddleware runs each call inside a "tool.<name>" span. Failed
// calls and unsuccessful results are recorded on the span.
func TracingMiddleware(deps ToolDependencies) Middleware {
	return func(name string, next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var (
				result *mcp.CallToolResult
				err    error
			)
			_ = deps.Tracing.InstrumentToolExecution(ctx, name, func(ctx context.Context) error {
				result, err = next(ctx, req)
				if err != nil {
					return err
				}
				if !isSuccessResult(result) {
					return resultError(result)
				}
				return nil
			})
			return result, err
		}
	}
}

// MetricsMiddleware records the outcome, duration and attempt of each call
func MetricsMiddleware(deps ToolDependencies) Middleware {
	return func(name string, next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			attempt := retryNumber(req)
			done := deps.ToolMetrics.StartAttempt(ctx, name, attempt)

			start := time.Now()
			result, err := next(ctx, req)

			callErr := err
			if callErr == nil && !isSuccessResult(result) {
				callErr = resultError(result)
			}
			done(callErr)

			deps.Logger.Debug().
				Str("tool", name).
				Int("attempt", attempt).
				Dur("duration", time.Since(start)).
				Bool("success", callErr == nil).
				Msg("Tool call recorded")
			return result, err
		}
	}
}

// ValidationMiddleware checks the call arguments against the registered
// schema before the handler runs.
func ValidationMiddleware(deps ToolDependencies) Middleware {
	return func(name string, next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			result := deps.Validator.ValidateToolParameters(name, req.GetArguments())
			if result.Valid {
				return next(ctx, req)
			}

			code := "unknown"
			if first := result.FirstError(); first != nil {
				code = string(first.Code)
			}
			if deps.ToolMetrics != nil {
				deps.ToolMetrics.RecordValidationFailure(name, code)
			}
			if deps.Tracing != nil {
				deps.Tracing.AddSpanEvent(oteltrace.SpanFromContext(ctx), "validation.failed",
					attribute.String("validation.code", code),
					attribute.Int("validation.errors", len(result.Errors)))
			}

			deps.Logger.Warn().
				Str("tool", name).
				Str("code", code).
				Int("errors", len(result.Errors)).
				Msg("Tool parameters rejected")
			return createValidationErrorResult(result), nil
		}
	}
}
