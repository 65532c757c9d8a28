package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/showroom/internal/flagx"
	"github.com/dmitrijs2005/showroom/internal/timex"
)

// JSONConfig is the on-disk shape of the config file. Durations accept both
// "30m"-style strings and integer nanoseconds. Absent keys keep the value
// already present in Config.
type JSONConfig struct {
	HTTPAddr                   *string         `json:"http_addr"`
	GRPCAddr                   *string         `json:"grpc_addr"`
	DatabaseDSN                *string         `json:"database_dsn"`
	SecretKey                  *string         `json:"secret_key"`
	ShareTokenValidityDuration *timex.Duration `json:"share_token_validity"`
	MaxFailedAttempts          *int            `json:"max_failed_attempts"`
	FailureWindow              *timex.Duration `json:"failure_window"`
	LockoutDuration            *timex.Duration `json:"lockout_duration"`
	TimelineCacheTTL           *timex.Duration `json:"timeline_cache_ttl"`
	TimelineCacheSize          *int            `json:"timeline_cache_size"`
	KVBackend                  *string         `json:"kv_backend"`
	DynamoTable                *string         `json:"dynamo_table"`
	DynamoRegion               *string         `json:"dynamo_region"`
	DynamoEndpoint             *string         `json:"dynamo_endpoint"`
	S3RootUser                 *string         `json:"s3_root_user"`
	S3RootPassword             *string         `json:"s3_root_password"`
	S3Bucket                   *string         `json:"s3_bucket"`
	S3Region                   *string         `json:"s3_region"`
	S3BaseEndpoint             *string         `json:"s3_base_endpoint"`
	PresignValidityDuration    *timex.Duration `json:"presign_validity"`
	VerifyRateInterval         *timex.Duration `json:"verify_rate_interval"`
	VerifyRateBurst            *int            `json:"verify_rate_burst"`
	TrustedProxies             []string        `json:"trusted_proxies"`
	LogLevel                   *string         `json:"log_level"`
}

// parseJSON overlays the file named by -c/-config in args onto config.
// No flag means nothing to load.
func parseJSON(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JSONConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	c.apply(config)
	return nil
}

func (c *JSONConfig) apply(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.ShareTokenValidityDuration, c.ShareTokenValidityDuration)
	setInt(&config.MaxFailedAttempts, c.MaxFailedAttempts)
	setDuration(&config.FailureWindow, c.FailureWindow)
	setDuration(&config.LockoutDuration, c.LockoutDuration)
	setDuration(&config.TimelineCacheTTL, c.TimelineCacheTTL)
	setInt(&config.TimelineCacheSize, c.TimelineCacheSize)
	setString(&config.KVBackend, c.KVBackend)
	setString(&config.DynamoTable, c.DynamoTable)
	setString(&config.DynamoRegion, c.DynamoRegion)
	setString(&config.DynamoEndpoint, c.DynamoEndpoint)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setDuration(&config.PresignValidityDuration, c.PresignValidityDuration)
	setDuration(&config.VerifyRateInterval, c.VerifyRateInterval)
	setInt(&config.VerifyRateBurst, c.VerifyRateBurst)
	if c.TrustedProxies != nil {
		config.TrustedProxies = c.TrustedProxies
	}
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
