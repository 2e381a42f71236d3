package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/flagx"
	"github.com/dmitrijs2005/linkkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Duration fields
// accept both strings such as "30s" and integer nanoseconds.
type JsonConfig struct {
	HTTPAddr                    string         `json:"http_addr"`
	GRPCHealthAddr              string         `json:"grpc_health_addr"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	BcryptCost                  int            `json:"bcrypt_cost"`
	MaterialBackend             string         `json:"material_backend"`
	MaterialDir                 string         `json:"material_dir"`
	BoltPath                    string         `json:"bolt_path"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	ExternalTimeout             timex.Duration `json:"external_timeout"`
	UnverifiedTTL               timex.Duration `json:"unverified_ttl"`
	ReapInterval                timex.Duration `json:"reap_interval"`
	RefreshConcurrency          int            `json:"refresh_concurrency"`
	HealthProbeInterval         timex.Duration `json:"health_probe_interval"`
	TelegramAPIID               int            `json:"telegram_api_id"`
	TelegramAPIHash             string         `json:"telegram_api_hash"`
	LogLevel                    string         `json:"log_level"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flag. Without the flag nothing is loaded. Fields absent from the
// file keep their current value. An unreadable file or invalid JSON panics.
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

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCHealthAddr, c.GRPCHealthAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setInt(&config.BcryptCost, c.BcryptCost)
	setString(&config.MaterialBackend, c.MaterialBackend)
	setString(&config.MaterialDir, c.MaterialDir)
	setString(&config.BoltPath, c.BoltPath)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setDuration(&config.ExternalTimeout, c.ExternalTimeout)
	setDuration(&config.UnverifiedTTL, c.UnverifiedTTL)
	setDuration(&config.ReapInterval, c.ReapInterval)
	setInt(&config.RefreshConcurrency, c.RefreshConcurrency)
	setDuration(&config.HealthProbeInterval, c.HealthProbeInterval)
	setInt(&config.TelegramAPIID, c.TelegramAPIID)
	setString(&config.TelegramAPIHash, c.TelegramAPIHash)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
