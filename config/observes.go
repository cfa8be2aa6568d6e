package config

import (
	"time"

	"github.com/ncobase/blobjob/metrics"
	"github.com/spf13/viper"
)

// Sentry config struct
type Sentry struct {
	Endpoint    string `json:"endpoint" yaml:"endpoint"`
	Environment string `json:"environment" yaml:"environment"`
	Release     string `json:"release" yaml:"release"`
}

// getSentryConfig get sentry config
func getSentryConfig(v *viper.Viper) *Sentry {
	return &Sentry{
		Endpoint:    v.GetString("observes.sentry.endpoint"),
		Environment: v.GetString("observes.sentry.environment"),
		Release:     v.GetString("observes.sentry.release"),
	}
}

// Tracer config struct for OpenTelemetry
type Tracer struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"` // OTLP gRPC endpoint

	// Service identification
	ServiceName string `json:"service_name" yaml:"service_name"`
	Environment string `json:"environment" yaml:"environment"`

	// Sampling configuration
	SamplingRate float64 `json:"sampling_rate" yaml:"sampling_rate"` // 0.0 to 1.0

	// Performance tuning
	MaxExportBatchSize int           `json:"max_export_batch_size" yaml:"max_export_batch_size"`
	BatchTimeout       time.Duration `json:"batch_timeout" yaml:"batch_timeout"`
	ExportTimeout      time.Duration `json:"export_timeout" yaml:"export_timeout"`
}

// getTracerConfig get tracer config with defaults
func getTracerConfig(v *viper.Viper) *Tracer {
	return &Tracer{
		Endpoint: v.GetString("observes.tracer.endpoint"),

		// Service identification
		ServiceName: getStringOrDefault(v, "observes.tracer.service_name", getStringOrDefault(v, "app_name", "blobjob")),
		Environment: v.GetString("observes.tracer.environment"),

		// Sampling with default to 100% in development
		SamplingRate: getFloat64OrDefault(v, "observes.tracer.sampling_rate", 1.0),

		// Performance tuning with sensible defaults
		MaxExportBatchSize: getIntOrDefault(v, "observes.tracer.max_export_batch_size", 512),
		BatchTimeout:       getDurationOrDefault(v, "observes.tracer.batch_timeout", 5*time.Second),
		ExportTimeout:      getDurationOrDefault(v, "observes.tracer.export_timeout", 30*time.Second),
	}
}

// Observes config struct
type Observes struct {
	Sentry *Sentry
	Tracer *Tracer
}

// get Observes config
func getObservesConfig(v *viper.Viper) *Observes {
	return &Observes{
		Sentry: getSentryConfig(v),
		Tracer: getTracerConfig(v),
	}
}

// getMetricsConfig get in-process metrics config
func getMetricsConfig(v *viper.Viper) *metrics.Config {
	d := metrics.DefaultConfig()
	return &metrics.Config{
		Enabled:       getBoolOrDefault(v, "observes.metrics.enabled", d.Enabled),
		FlushInterval: getDurationOrDefault(v, "observes.metrics.flush_interval", d.FlushInterval),
		MaxSamples:    getIntOrDefault(v, "observes.metrics.max_samples", d.MaxSamples),
	}
}
