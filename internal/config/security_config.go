// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic   SecurityLevel = iota // No authentication
	SecurityAccess                        // Any valid access token
	SecurityOperator                      // Operator or admin token
	SecurityService                       // Billing service or admin token
	SecurityAdmin                         // Admin token
)

// EndpointSecurityConfig maps "METHOD route-template" to its required security level.
// Routes missing from the map are treated as SecurityAdmin.
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Probes - Public
	"GET /health":  SecurityPublic,
	"GET /metrics": SecurityPublic,

	// Transactions - Access Protected
	"POST /api/v1/transactions":               SecurityAccess,
	"POST /api/v1/transactions/{id}/process":  SecurityAccess,
	"GET /api/v1/transactions/{id}":           SecurityAccess,
	"GET /api/v1/customers/{id}/transactions": SecurityAccess,
	"GET /api/v1/customers/{id}/spending":     SecurityAccess,
	"GET /api/v1/customers/{id}/most-viewed":  SecurityAccess,
	"POST /api/v1/profiles/{id}/views":        SecurityAccess,
	"GET /api/v1/date-ranges/{preset}":        SecurityAccess,
	"GET /api/v1/activities/{id}":             SecurityAccess,

	// Refunds and disputes - Admin
	"POST /api/v1/transactions/{id}/refund":      SecurityAdmin,
	"POST /api/v1/transactions/{id}/chargebacks": SecurityAdmin,
	"POST /api/v1/chargebacks/{id}/resolve":      SecurityAdmin,
	"GET /api/v1/admin/transactions/stats":       SecurityAdmin,
	"GET /api/v1/admin/chargebacks":              SecurityAdmin,

	// Messaging and operator reports - Operator
	"POST /api/v1/conversations/{id}/free-reply": SecurityOperator,
	"POST /api/v1/conversations/{id}/paid-reply": SecurityOperator,
	"POST /api/v1/conversations/{id}/marketing":  SecurityOperator,
	"GET /api/v1/operators/{id}/earnings":        SecurityOperator,
	"GET /api/v1/profiles/{id}/viewers":          SecurityOperator,
	"GET /api/v1/conversations/{id}/messages":    SecurityOperator,

	// Billing hook for arbitrary customers - Service
	"POST /api/v1/activities": SecurityService,
}

// RequiredLevel returns the security level for a route, defaulting to admin.
func RequiredLevel(method, routeTemplate string) SecurityLevel {
	if level, ok := EndpointSecurityConfig[method+" "+routeTemplate]; ok {
		return level
	}
	return SecurityAdmin
}
