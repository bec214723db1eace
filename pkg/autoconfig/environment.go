package autoconfig

import "time"

// ExpiringKey is a server-side key that is being phased out: it remains
// valid until ExpiresAt so in-flight requests signed with it keep
// working through a key rotation.
type ExpiringKey struct {
	Value     ServerSideKey `json:"value"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// Expirable pairs a credential's current value with an optional
// previous value that is still valid for a grace period after
// rotation.
type Expirable struct {
	Current  ServerSideKey `json:"value"`
	Expiring *ExpiringKey  `json:"expiring,omitempty"`
}

// Environment is the merged, in-memory view of one environment record
// received over the autoconfig stream.
type Environment struct {
	EnvID       ClientSideID       `json:"envId"`
	EnvKey      string             `json:"envKey"`
	EnvName     string             `json:"envName"`
	ProjKey     string             `json:"projKey"`
	ProjName    string             `json:"projName"`
	MobKey      MobileKey          `json:"mobKey"`
	SDKKey      Expirable          `json:"sdkKey"`
	DefaultTTL  time.Duration      `json:"defaultTtl"`
	SecureMode  bool               `json:"secureMode"`
	Version     int64              `json:"version"`
}
