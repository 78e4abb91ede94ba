package config

import (
	"testing"
	"time"
)

func TestDefaultThresholds(t *testing.T) {
	config := DefaultThresholds()

	if config.CPUHighPct != 80.0 {
		t.Errorf("Expected CPUHighPct 80.0, got %f", config.CPUHighPct)
	}

	if config.CPULowPct >= config.CPUHighPct {
		t.Error("CPULowPct must be below CPUHighPct")
	}

	if config.MemoryHighPct <= 0 || config.MemoryHighPct > 100 {
		t.Errorf("MemoryHighPct must be a percentage, got %f", config.MemoryHighPct)
	}
}

func TestDefaultMetricsConfig(t *testing.T) {
	config := DefaultMetricsConfig()

	if config.Period != 1*time.Hour {
		t.Errorf("Expected Period 1h, got %v", config.Period)
	}

	if config.Lookback < config.Period {
		t.Error("Lookback must cover at least one period")
	}
}

func TestDefaultSecurityConfig(t *testing.T) {
	config := DefaultSecurityConfig()

	if config.AccessKeyMaxAge != 90*24*time.Hour {
		t.Errorf("Expected AccessKeyMaxAge 90 days, got %v", config.AccessKeyMaxAge)
	}

	foundSSH := false
	for _, port := range config.AdminPorts {
		if port == 22 {
			foundSSH = true
			break
		}
	}
	if !foundSSH {
		t.Error("Expected port 22 to be in AdminPorts")
	}
}
