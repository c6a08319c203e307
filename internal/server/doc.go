// Package server exposes the guestdesk store over HTTP.
//
// # Routes
//
//	GET  /api/visitors       {"count":N}
//	POST /api/visitors       increment, {"count":N}
//	GET  /api/shoutbox       newest-first shouts
//	POST /api/shoutbox       {name,message}
//	GET  /api/guestbook      newest-first entries
//	POST /api/guestbook      {name,website?,message}
//	GET  /api/pages          [{slug,title}]
//	GET  /api/pages/{slug}   {slug,title,html}
//	GET  /health             liveness
//	GET  /health/ready       store probe
//	GET  /*                  static front end (server.static_dir)
//
// The two POST endpoints that accept visitor text share one fixed-window
// rate limit per client. Validation failures are 400, throttled requests
// 429, and store write failures 500; read failures never surface.
//
// # Lifecycle
//
// New wires the store, limiter, pages library and notifier. Run listens on
// TCP or a Tailscale node and blocks until the context is canceled, then
// Shutdown drains HTTP, waits for queued writes and pending notifications,
// and closes the store.
package server
