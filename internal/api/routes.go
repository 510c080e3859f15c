package api

const (
	HealthCheckRoute    = "/health"
	DebugSettingsRoute  = "/debug/settings"
	DebugJWTRoute       = "/debug/jwt"
	DebugAuditRoute     = "/debug/audit"
	TestConnectionRoute = "/test-connection"
	RunTestRoute        = "/runtest"
)

// ReservedPaths lists the operational endpoints that must never be
// proxied to the data API, regardless of method.
func ReservedPaths() []string {
	return []string{
		HealthCheckRoute,
		DebugSettingsRoute,
		DebugJWTRoute,
		DebugAuditRoute,
		TestConnectionRoute,
		RunTestRoute,
	}
}
