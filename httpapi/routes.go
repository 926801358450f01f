package httpapi

const (
	HealthCheckRoute = "/healthz"
	MetricsRoute     = "/metrics"

	AuthParent   = "/api/auth"
	LoginRoute   = AuthParent + "/google"
	RefreshRoute = AuthParent + "/refresh"
	LogoutRoute  = AuthParent + "/logout"
	MeRoute      = AuthParent + "/me"

	SearchRoute = "/api/search"
	BookRoute   = "/api/books/{id}"
)
