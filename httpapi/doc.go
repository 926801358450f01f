// Package httpapi serves the shelfauth HTTP surface: Google sign-in, refresh
// rotation through an HttpOnly cookie, logout, the current principal, and the
// guarded book catalog.
//
// Routes:
//
//	POST /api/auth/google   {"id_token": "..."}         -> session, sets refresh cookie
//	POST /api/auth/refresh  cookie or {"refresh_token"} -> session, rotates cookie
//	POST /api/auth/logout   cookie or {"refresh_token"} -> 204, clears cookie
//	GET  /api/auth/me       bearer                      -> principal
//	GET  /api/search        bearer, ?q=&startIndex=&maxResults=
//	GET  /api/books/{id}    bearer                      -> book or 404
//	GET  /healthz
//	GET  /metrics           when a metrics handler is configured
//
// Handlers only translate HTTP to Engine calls. Every auth decision is the
// Engine's.
package httpapi
