// Package config loads the provisioner's runtime configuration from
// environment variables via viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every upstream dependency the provisioning drivers need.
type Config struct {
	Host    string
	Port    int
	Verbose bool
	Version string

	PostgresAdminDSN string
	// PostgresDSNTemplate is the admin DSN with the database name replaced
	// by a %s hole, used to dial a freshly created tenant database directly.
	PostgresDSNTemplate string
	PostgresPrivateHost string
	PostgresPublicHost  string

	MongoDBAdminURI   string
	MongoDBPrivateHost string
	MongoDBPublicHost  string

	AWSRegion string

	// AccessKeyStateDir is concatenated (not joined) with a project's
	// DynamoDB prefix to build its access-key file path.
	AccessKeyStateDir string
}

// Load builds a Config from environment variables prefixed PROVISIONER_,
// falling back to the defaults set below.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("provisioner")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("verbose", false)
	v.SetDefault("version", "dev")
	v.SetDefault("access_key_state_dir", "./state/")

	cfg := Config{
		Host:                v.GetString("host"),
		Port:                v.GetInt("port"),
		Verbose:             v.GetBool("verbose"),
		Version:             v.GetString("version"),
		PostgresAdminDSN:    v.GetString("postgres_admin_dsn"),
		PostgresDSNTemplate: v.GetString("postgres_dsn_template"),
		PostgresPrivateHost: v.GetString("postgres_private_host"),
		PostgresPublicHost:  v.GetString("postgres_public_host"),
		MongoDBAdminURI:     v.GetString("mongodb_admin_uri"),
		MongoDBPrivateHost:  v.GetString("mongodb_private_host"),
		MongoDBPublicHost:   v.GetString("mongodb_public_host"),
		AWSRegion:           v.GetString("aws_region"),
		AccessKeyStateDir:   v.GetString("access_key_state_dir"),
	}

	if cfg.PostgresAdminDSN != "" && cfg.PostgresDSNTemplate == "" {
		return Config{}, fmt.Errorf("PROVISIONER_POSTGRES_DSN_TEMPLATE must be set alongside PROVISIONER_POSTGRES_ADMIN_DSN")
	}

	return cfg, nil
}
