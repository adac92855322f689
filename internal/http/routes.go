package http

const (
	RouteBOM         = "/bom"
	RouteHealth      = "/health"
	RouteHealthLive  = RouteHealth + "/liveness"
	RouteHealthReady = RouteHealth + "/readiness"
)
