package config

import "time"

// SecurityConfig defines parameters for the security posture checklist.
type SecurityConfig struct {
	// AccessKeyMaxAge is the age past which an active access key counts as stale.
	AccessKeyMaxAge time.Duration `mapstructure:"access_key_max_age"`
	// AdminPorts are the ports that count as administrative for the posture
	// check. Discovery surfaces every world-open sensitive port; this list
	// narrows which of them fail the check. Empty keeps all of them.
	AdminPorts []int32 `mapstructure:"admin_ports"`
}

// DefaultSecurityConfig returns default posture parameters.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		AccessKeyMaxAge: 90 * 24 * time.Hour,
		AdminPorts:      []int32{22, 3389, 3306, 5432, 6379, 9200, 27017},
	}
}
