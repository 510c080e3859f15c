package core

import "time"

const (
	ActionTranslate = "token.translate"
	ActionProvision = "role.provision"
	ActionForward   = "proxy.forward"
)

type AuditEntry struct {
	// ID is the unique request ID (X-Correlation-ID)
	ID string `json:"id"`

	// Time is the timestamp of the event
	Time time.Time `json:"time"`

	// Action describing what happened (e.g. "token.translate", "proxy.forward")
	Action string `json:"action"`

	// Subject is the verified subject of the inbound token, when known
	Subject string `json:"subject,omitempty"`

	// Request details
	Method string `json:"method,omitempty"`
	Path   string `json:"path,omitempty"`

	// UpstreamStatus is the status code returned by the data API, if the
	// request made it that far
	UpstreamStatus int `json:"upstream_status,omitempty"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type Auditor interface {
	Log(entry AuditEntry) error
	Close() error
}
