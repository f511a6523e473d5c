// Package httpclient is the HTTP transport shared by the session store and
// catalog clients.
//
// Built on go-resty/resty with a go-retryablehttp transport:
//   - Single attempt by default; optional jittered retry of transport errors
//   - Circuit breaker around every call (see resilience)
//   - Per-client rate limiting
//   - sonic for JSON encoding and decoding
//
// Example Usage:
//
//	client := httpclient.NewClient(httpclient.Config{BaseURL: "http://localhost:5000/"})
//	resp, err := client.Execute(ctx, func(req *resty.Request) (*resty.Response, error) {
//	    return req.Get("session/abc123")
//	})
package httpclient
