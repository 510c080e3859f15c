// Package audit records token-translation events. The proxy never logs
// raw tokens; audit entries carry subjects, paths and outcomes only.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/localparts/tokenbridge/internal/config"
	"github.com/localparts/tokenbridge/internal/core"
)

// New builds the auditor selected by config. Disabled auditing yields
// the noop auditor.
func New(cfg config.AuditConfig) (core.Auditor, error) {
	if !cfg.Enabled {
		return NewNoopAuditor(), nil
	}
	switch cfg.Type {
	case "memory":
		return NewInMemoryAuditor(), nil
	case "file":
		return NewFileAuditor(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown audit type %q", cfg.Type)
	}
}

// Fingerprint returns a short stable digest of a token, safe to put in
// logs and audit entries in place of the token itself.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "sha256:" + hex.EncodeToString(sum[:6])
}
