// Package config loads runtime settings for the demo binaries from the
// environment (CLOAK_* variables).
package config

import (
	"github.com/kelseyhightower/envconfig"
)

type (
	Config struct {
		ServerAddr string `split_words:"true" default:"localhost:9090"`
		RedisAddr  string `split_words:"true" default:"localhost:6379"`
		MongoURI   string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
		MongoDB    string `envconfig:"MONGO_DB" default:"cloak"`
	}
)

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("cloak", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
