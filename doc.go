// Package netguard is an HTTP request orchestration layer over net/http:
//
//   - Retries with exponential backoff (base^attempt * scale, no jitter)
//   - Throttling of identical requests (method + URL + body) inside an interval
//   - Bearer token injection from a persisted token store
//   - SSL pinning per domain (public key or certificate)
//   - Classification of every outcome into a closed set of NetworkError kinds,
//     including structured server error envelopes
//   - Status rules: ordered (status code, URL substring) callbacks run after
//     every response
//   - Multipart uploads with progress reporting
//   - Prometheus metrics and structured logging via zerolog
//
// Typical usage:
//
//	client := netguard.New(
//	    netguard.WithRetryLimit(3),
//	    netguard.WithThrottleInterval(500*time.Millisecond),
//	    netguard.WithTokenStore(store),
//	)
//	client.StatusHandler().Add(401, "/api/", onSessionExpired)
//
//	user, header, err := netguard.Request[User](ctx, client, netguard.APIRequest{
//	    URL:     "https://api.example.com/me",
//	    Method:  http.MethodGet,
//	    Headers: http.Header{"Authorization": {"Bearer "}},
//	})
//	if errors.Is(err, netguard.ErrUnauthenticated) {
//	    ...
//	}
//
// Configuration is fixed at construction; build a new Client to change it.
package netguard
