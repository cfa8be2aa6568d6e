package config

import (
	"time"

	"github.com/ncobase/blobjob/events"
	"github.com/ncobase/blobjob/scheduler"
	"github.com/spf13/viper"
)

func getEventsConfig(v *viper.Viper) *events.Config {
	return &events.Config{
		Provider:       getStringOrDefault(v, "events.provider", "log"),
		Brokers:        v.GetStringSlice("events.brokers"),
		Topic:          getStringOrDefault(v, "events.topic", "blobjob.events"),
		URL:            v.GetString("events.url"),
		Exchange:       getStringOrDefault(v, "events.exchange", "blobjob"),
		ValidateTopic:  v.GetString("events.validate_topic"),
		GroupID:        getStringOrDefault(v, "events.group_id", "blobjob-validator"),
		PublishTimeout: getDurationOrDefault(v, "events.publish_timeout", 30*time.Second),
	}
}

func getSchedulerConfig(v *viper.Viper) *scheduler.Config {
	d := scheduler.DefaultConfig()
	return &scheduler.Config{
		Workers:      getIntOrDefault(v, "scheduler.workers", d.Workers),
		QueueSize:    getIntOrDefault(v, "scheduler.queue_size", d.QueueSize),
		RunTimeout:   getDurationOrDefault(v, "scheduler.run_timeout", d.RunTimeout),
		SyncInterval: getDurationOrDefault(v, "scheduler.sync_interval", d.SyncInterval),
	}
}
