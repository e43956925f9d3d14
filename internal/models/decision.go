package models

// Decision is the outcome of a login request.
type Decision string

const (
	DecisionAllowed          Decision = "ALLOWED"
	DecisionDenied           Decision = "DENIED"
	DecisionAccountSuspended Decision = "ACCOUNT_SUSPENDED"
	DecisionOriginThrottled  Decision = "ORIGIN_THROTTLED"
)

// String implements fmt.Stringer
func (d Decision) String() string {
	return string(d)
}
