// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"bitwise74/proffer/pkg/proffer"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	configPath        = pflag.String("config", ".", "Directory containing config.toml")
	validLogLevels    = []string{"debug", "info", "warn", "error", "fatal"}
	validStorageTypes = []string{"s3", "local"}
	validDBDrivers    = []string{"sqlite", "postgres"}
)

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(*configPath)

	v.AutomaticEnv()

	bindEnvs()
	SetDefaults()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(v.ConfigFileNotFoundError); ok {
			return errors.New("config.toml file is missing")
		}

		return fmt.Errorf("failed to read config file, %w", err)
	}

	return Validate()
}

func bindEnvs() {
	v.BindEnv("app.log_level", "app_log_level")

	v.BindEnv("host.port", "host_port")
	v.BindEnv("host.cors", "host_cors")

	v.BindEnv("db.driver", "db_driver")
	v.BindEnv("db.dsn", "db_dsn")

	v.BindEnv("upload.root", "upload_root")
	v.BindEnv("upload.spool_dir", "upload_spool_dir")
	v.BindEnv("upload.spool_ttl", "upload_spool_ttl")
	v.BindEnv("upload.max_size", "upload_max_size")
	v.BindEnv("upload.allowed_types", "upload_allowed_types")

	v.BindEnv("security.rate_limit", "security_rate_limit")

	v.BindEnv("storage.type", "storage_type")
	v.BindEnv("storage.s3.account_id", "storage_s3_account_id")
	v.BindEnv("storage.s3.endpoint", "storage_s3_endpoint")
	v.BindEnv("storage.s3.region", "storage_s3_region")
	v.BindEnv("storage.s3.access_key_id", "storage_s3_access_key_id")
	v.BindEnv("storage.s3.secret_access_key", "storage_s3_secret_access_key")
	v.BindEnv("storage.s3.bucket", "storage_s3_bucket")
}

// SetDefaults sets every default value. It's exported for tests that don't
// read a config file.
func SetDefaults() {
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.cors", []string{"http://localhost:5173"})

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "database.db")

	v.SetDefault("upload.root", "files")
	v.SetDefault("upload.spool_dir", filepath.Join(os.TempDir(), "proffer-spool"))
	v.SetDefault("upload.spool_ttl", "15m")
	v.SetDefault("upload.max_size", 50)
	v.SetDefault("upload.allowed_types", []string{"image/*", "application/pdf"})

	v.SetDefault("security.rate_limit", 10)

	v.SetDefault("storage.type", "local")
}

// Validate checks the loaded values
func Validate() error {
	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if !slices.Contains(validDBDrivers, v.GetString("db.driver")) {
		return errors.New("invalid database driver provided")
	}

	if v.GetString("db.dsn") == "" {
		return errors.New("db.dsn can't be empty")
	}

	if v.GetString("upload.root") == "" {
		return errors.New("upload.root can't be empty")
	}

	if v.GetDuration("upload.spool_ttl") <= 0 {
		return errors.New("upload.spool_ttl must be bigger than 0")
	}

	if v.GetInt64("upload.max_size") <= 0 {
		return errors.New("upload.max_size must be bigger than 0")
	}

	if len(v.GetStringSlice("upload.allowed_types")) == 0 {
		zap.L().Warn("No upload.allowed_types specified, any file type will be accepted")
	}

	if v.GetInt("security.rate_limit") <= 0 {
		return errors.New("security.rate_limit must be bigger than 0")
	}

	if !slices.Contains(validStorageTypes, v.GetString("storage.type")) {
		return errors.New("invalid storage type provided")
	}

	if v.GetString("storage.type") == "s3" {
		if v.GetString("storage.s3.access_key_id") == "" {
			return errors.New("access key id can't be empty")
		}
		if v.GetString("storage.s3.secret_access_key") == "" {
			return errors.New("secret access key can't be empty")
		}
		if v.GetString("storage.s3.bucket") == "" {
			return errors.New("bucket can't be empty")
		}
		if v.GetString("storage.s3.account_id") == "" && v.GetString("storage.s3.region") == "" {
			return errors.New("either an account id or a region is required")
		}
	}

	for _, table := range Tables() {
		fields, err := Fields(table)
		if err != nil {
			return err
		}

		for name, f := range fields {
			if f.Dir == "" {
				return fmt.Errorf("proffer.%s.%s: dir can't be empty", table, name)
			}

			for _, s := range f.ThumbnailSizes {
				if s.Label == "" {
					return fmt.Errorf("proffer.%s.%s: thumbnail size without a label", table, name)
				}
				if s.Dimensions.Width <= 0 && s.Dimensions.Height <= 0 {
					return fmt.Errorf("proffer.%s.%s: thumbnail %s needs a width or a height", table, name, s.Label)
				}
			}
		}
	}

	return nil
}

// MaxUploadSize returns upload.max_size in bytes. The config holds megabytes.
func MaxUploadSize() int64 {
	return v.GetInt64("upload.max_size") << 20
}

// Tables returns every table that has upload fields configured
func Tables() []string {
	tables := []string{}
	for t := range v.GetStringMap("proffer") {
		tables = append(tables, strings.ToLower(t))
	}

	slices.Sort(tables)
	return tables
}

// Fields returns the upload field settings of a table
func Fields(table string) (map[string]proffer.FieldConfig, error) {
	fields := map[string]proffer.FieldConfig{}

	if err := v.UnmarshalKey("proffer."+table, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode proffer.%s, %w", table, err)
	}

	return fields, nil
}

// Rules returns the validation rules of a table
func Rules(table string) map[string]string {
	return v.GetStringMapString("rules." + table)
}
