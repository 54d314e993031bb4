package config

import (
	"log"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string       `yaml:"env" env:"ENV" env-default:"local"`
	ServiceName string       `yaml:"service_name" env:"SERVICE_NAME" env-default:"voting-service"`
	StoragePath string       `yaml:"storage_path" env:"STORAGE_PATH" env-required:"true"`
	HTTP        HTTPConfig   `yaml:"http"`
	Events      EventsConfig `yaml:"events"`
}

type HTTPConfig struct {
	Port int `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

// EventsConfig configures the broker connection. An empty broker list keeps
// the service on the no-op publisher.
type EventsConfig struct {
	Brokers []string `yaml:"brokers" env:"EVENT_BROKERS"`
	Topic   string   `yaml:"topic" env:"EVENT_TOPIC" env-default:"events"`
}

func Load(path string) *Config {
	var config Config
	err := cleanenv.ReadConfig(path, &config)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &config
}
