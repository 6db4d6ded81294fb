package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/folio/internal/flagx"
	"github.com/dmitrijs2005/folio/internal/timex"
)

// JsonConfig is the on-disk shape of the server configuration. Duration
// fields accept both "1s" style strings and integer nanoseconds.
//
// Pointer booleans distinguish "false" from "absent"; every other field
// overrides the current value only when non-empty.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	LogLevel                     string         `json:"log_level"`

	ObjectBackend  string `json:"object_backend"`
	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`
	S3PublicURL    string `json:"s3_public_url"`

	ImageHostUploadURL    string `json:"image_host_upload_url"`
	ImageHostUploadPreset string `json:"image_host_upload_preset"`
	ImageHostDeleteURL    string `json:"image_host_delete_url"`

	ContactRelayURL       string `json:"contact_relay_url"`
	ContactRelayAccessKey string `json:"contact_relay_access_key"`

	GoogleClientID        string         `json:"google_client_id"`
	AnalyticsEnabled      *bool          `json:"analytics_enabled"`
	MetricsEnabled        *bool          `json:"metrics_enabled"`
	CleanupInterval       timex.Duration `json:"cleanup_interval"`
	ProfileRetryBaseDelay timex.Duration `json:"profile_retry_base_delay"`
}

// parseJson loads configuration values from the JSON file named by the
// -c or -config flag into config. Without the flag nothing is loaded.
// An unreadable file or invalid JSON panics, as misconfiguration is fatal
// at startup.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.ObjectBackend, c.ObjectBackend)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicURL, c.S3PublicURL)
	setString(&config.ImageHostUploadURL, c.ImageHostUploadURL)
	setString(&config.ImageHostUploadPreset, c.ImageHostUploadPreset)
	setString(&config.ImageHostDeleteURL, c.ImageHostDeleteURL)
	setString(&config.ContactRelayURL, c.ContactRelayURL)
	setString(&config.ContactRelayAccessKey, c.ContactRelayAccessKey)
	setString(&config.GoogleClientID, c.GoogleClientID)

	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration > 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.CleanupInterval.Duration > 0 {
		config.CleanupInterval = c.CleanupInterval.Duration
	}
	if c.ProfileRetryBaseDelay.Duration > 0 {
		config.ProfileRetryBaseDelay = c.ProfileRetryBaseDelay.Duration
	}
	if c.AnalyticsEnabled != nil {
		config.AnalyticsEnabled = *c.AnalyticsEnabled
	}
	if c.MetricsEnabled != nil {
		config.MetricsEnabled = *c.MetricsEnabled
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
