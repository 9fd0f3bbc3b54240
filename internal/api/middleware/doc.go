// Package middleware provides the HTTP middleware for the terminal host.
//
// CORS wraps gin-contrib/cors for the REST endpoints, and OriginChecker
// applies the same allow-list to WebSocket upgrades. An empty allow-list
// means same-origin only. RateLimit keeps a
// token bucket per client IP and forgets idle clients after ten minutes;
// GlobalRateLimit shares one bucket across all clients.
//
//	router.Use(middleware.CORS(middleware.CORSForOrigins(origins)))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
