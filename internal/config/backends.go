package config

import (
	"fmt"
	"os"
	"strconv"
)

const defaultDSN = "uidai:uidai@tcp(localhost:3306)/uidai_insights?parseTime=true"

// RedisConfig configures the Redis cache backend
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// S3Config holds the settings for s3:// dataset sources.
// Credentials fall back to the AWS default chain when the key pair is unset.
type S3Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"-"`
	SecretAccessKey string `yaml:"-"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// applyEnv lets the environment override the backend settings read from YAML.
// Secrets are only ever taken from the environment.
func (c *Config) applyEnv() {
	if dsn := envDSN(); dsn != "" {
		c.Storage.DSN = dsn
	}

	r := &c.Cache.Redis
	setString(&r.Addr, "REDIS_ADDR")
	setString(&r.Password, "REDIS_PASSWORD")
	setString(&r.KeyPrefix, "REDIS_KEY_PREFIX")
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			r.DB = db
		}
	}

	s := &c.S3
	setString(&s.Region, "AWS_REGION")
	setString(&s.Endpoint, "S3_ENDPOINT")
	setString(&s.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&s.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	if v := os.Getenv("S3_USE_PATH_STYLE"); v != "" {
		if pathStyle, err := strconv.ParseBool(v); err == nil {
			s.UsePathStyle = pathStyle
		}
	}
}

// envDSN builds a DSN from DB_* parts when all are set, else returns DATABASE_DSN
func envDSN() string {
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	database := os.Getenv("DB_NAME")

	if user != "" && password != "" && host != "" && port != "" && database != "" {
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", user, password, host, port, database)
	}
	return os.Getenv("DATABASE_DSN")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
