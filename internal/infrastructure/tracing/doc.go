/*
Package tracing provides lightweight request tracing.

Every API request gets a span. Its trace id is taken from the X-Trace-ID
header or generated, and is echoed back in the response. Outgoing calls to
the remote session store carry the same headers, so one load can be followed
across both services in the logs.

# Usage

	tracer := tracing.New("sessionsync", logger.Logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

	// outgoing request
	headers := map[string]string{}
	tracing.InjectTraceContext(ctx, headers)

Completed spans are logged at debug level, or at error level when the
request failed. Spans are collected through a buffered channel and dropped
when the buffer is full.
*/
package tracing
