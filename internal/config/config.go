package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sebastiankruger/fiber-twin/internal/twin"
)

// Config holds all configuration for the twin service
type Config struct {
	// Core settings
	TwinName   string
	OPCUAPort  int
	HealthPort int
	LogLevel   string

	// Model settings
	Variant          twin.Variant
	UpdateInterval   time.Duration
	DebugLogInterval time.Duration
	Params           twin.Params

	// Firmware emulation
	SerialPort string
	SerialBaud int
	NoiseLevel float64
	NoiseSeed  int64

	// Telemetry
	PublishInterval  time.Duration
	MQTTBroker       string
	MQTTClientID     string
	MQTTTopic        string
	MQTTCommandTopic string
	KafkaBrokers     []string
	KafkaTopic       string
}

// File is the YAML overlay read from TWIN_CONFIG_FILE. Zero fields keep the
// environment or default value.
type File struct {
	Variant          string        `yaml:"variant,omitempty"`
	UpdateInterval   time.Duration `yaml:"update_interval,omitempty"`
	DebugLogInterval time.Duration `yaml:"debug_log_interval,omitempty"`
	NoiseLevel       float64       `yaml:"noise_level,omitempty"`
	Params           twin.Params   `yaml:"params"`
}

// Load reads configuration from environment variables with defaults. When
// TWIN_CONFIG_FILE names a YAML file, its values are applied first and
// explicitly set environment variables take precedence over them.
func Load() (*Config, error) {
	file := &File{Params: twin.DefaultParams()}
	if path := os.Getenv("TWIN_CONFIG_FILE"); path != "" {
		var err error
		if file, err = LoadFile(path); err != nil {
			return nil, err
		}
	}

	variantName := getEnvOrDefault("TWIN_VARIANT", file.Variant)
	if variantName == "" {
		variantName = twin.RegressionDynamic.String()
	}
	variant, err := twin.ParseVariant(variantName)
	if err != nil {
		return nil, fmt.Errorf("invalid TWIN_VARIANT: %w", err)
	}

	cfg := &Config{
		// Core settings
		TwinName:   getEnvOrDefault("TWIN_NAME", "FrED-01"),
		OPCUAPort:  getEnvAsIntOrDefault("OPCUA_PORT", 4840),
		HealthPort: getEnvAsIntOrDefault("HEALTH_PORT", 8081),
		LogLevel:   getEnvOrDefault("LOG_LEVEL", "info"),

		// Model settings
		Variant:          variant,
		UpdateInterval:   getDurationOrDefault("UPDATE_INTERVAL", file.UpdateInterval),
		DebugLogInterval: getDurationOrDefault("DEBUG_LOG_INTERVAL", file.DebugLogInterval),
		Params:           file.Params,

		// Firmware emulation
		SerialPort: getEnvOrDefault("SERIAL_PORT", ""),
		SerialBaud: getEnvAsIntOrDefault("SERIAL_BAUD", 115200),
		NoiseLevel: getEnvAsFloatOrDefault("MEASUREMENT_NOISE", file.NoiseLevel),
		NoiseSeed:  int64(getEnvAsIntOrDefault("NOISE_SEED", 0)),

		// Telemetry
		PublishInterval:  getDurationOrDefault("PUBLISH_INTERVAL", 1*time.Second),
		MQTTBroker:       getEnvOrDefault("MQTT_BROKER", ""),
		MQTTClientID:     getEnvOrDefault("MQTT_CLIENT_ID", "fiber-twin"),
		MQTTTopic:        getEnvOrDefault("MQTT_TOPIC", "fred/telemetry"),
		MQTTCommandTopic: getEnvOrDefault("MQTT_COMMAND_TOPIC", "fred/commands"),
		KafkaBrokers:     getEnvAsListOrDefault("KAFKA_BROKERS", nil),
		KafkaTopic:       getEnvOrDefault("KAFKA_TOPIC", "fred.telemetry"),
	}

	return cfg, nil
}

// LoadFile reads a YAML overlay. Missing model parameters keep their defaults.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	f := &File{Params: twin.DefaultParams()}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return f, nil
}

// SaveFile writes f as YAML.
func SaveFile(path string, f *File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var list []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
