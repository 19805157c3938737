package denyreasons

const (
	AccessExpired          = "AccessExpired"
	DeviceMismatch         = "DeviceMismatch"
	ProjectNotAuthorized   = "ProjectNotAuthorized"
	OutsideAuthorizedHours = "OutsideAuthorizedHours"
	UnknownPrincipal       = "UnknownPrincipal"
)
