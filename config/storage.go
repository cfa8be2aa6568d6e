package config

import (
	"github.com/ncobase/blobjob/oss"
	"github.com/ncobase/blobjob/store"
	"github.com/spf13/viper"
)

// Jobs holds where job definitions are kept.
type Jobs struct {
	Bucket string `json:"bucket" yaml:"bucket"` // bucket of the step list documents
}

// getStorageConfig get storage config
func getStorageConfig(v *viper.Viper) *oss.Config {
	return &oss.Config{
		Provider: getStringOrDefault(v, "storage.provider", "filesystem"),
		ID:       v.GetString("storage.id"),
		Secret:   v.GetString("storage.secret"),
		Region:   v.GetString("storage.region"),
		Endpoint: v.GetString("storage.endpoint"),
		UseSSL:   v.GetBool("storage.use_ssl"),
		Root:     v.GetString("storage.root"),
		Breaker:  getBoolOrDefault(v, "storage.breaker", true),
	}
}

// getRedisConfig get redis config
func getRedisConfig(v *viper.Viper) *store.RedisConfig {
	return &store.RedisConfig{
		Addr:         getStringOrDefault(v, "redis.addr", "localhost:6379"),
		Username:     v.GetString("redis.username"),
		Password:     v.GetString("redis.password"),
		Db:           v.GetInt("redis.db"),
		ReadTimeout:  v.GetDuration("redis.read_timeout"),
		WriteTimeout: v.GetDuration("redis.write_timeout"),
		DialTimeout:  v.GetDuration("redis.dial_timeout"),
	}
}

func getJobsConfig(v *viper.Viper) *Jobs {
	return &Jobs{
		Bucket: getStringOrDefault(v, "jobs.bucket", "blobjob-jobs"),
	}
}
