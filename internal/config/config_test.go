package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebastiankruger/fiber-twin/internal/twin"
)

// clearEnv blanks every variable Load reads so host settings cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TWIN_CONFIG_FILE", "TWIN_NAME", "OPCUA_PORT", "HEALTH_PORT", "LOG_LEVEL",
		"TWIN_VARIANT", "UPDATE_INTERVAL", "DEBUG_LOG_INTERVAL",
		"SERIAL_PORT", "SERIAL_BAUD", "MEASUREMENT_NOISE", "NOISE_SEED",
		"PUBLISH_INTERVAL", "MQTT_BROKER", "MQTT_CLIENT_ID", "MQTT_TOPIC",
		"MQTT_COMMAND_TOPIC", "KAFKA_BROKERS", "KAFKA_TOPIC",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "FrED-01", cfg.TwinName)
	assert.Equal(t, twin.RegressionDynamic, cfg.Variant)
	assert.Equal(t, 4840, cfg.OPCUAPort)
	assert.Equal(t, 8081, cfg.HealthPort)
	assert.Zero(t, cfg.UpdateInterval, "zero selects the variant default")
	assert.Equal(t, 115200, cfg.SerialBaud)
	assert.Equal(t, time.Second, cfg.PublishInterval)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Empty(t, cmp.Diff(twin.DefaultParams(), cfg.Params))
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TWIN_VARIANT", "basic_state")
	t.Setenv("UPDATE_INTERVAL", "20ms")
	t.Setenv("OPCUA_PORT", "14840")
	t.Setenv("MEASUREMENT_NOISE", "0.02")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, twin.BasicState, cfg.Variant)
	assert.Equal(t, 20*time.Millisecond, cfg.UpdateInterval)
	assert.Equal(t, 14840, cfg.OPCUAPort)
	assert.Equal(t, 0.02, cfg.NoiseLevel)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
}

func TestLoadMalformedEnvFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPCUA_PORT", "not-a-port")
	t.Setenv("PUBLISH_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4840, cfg.OPCUAPort)
	assert.Equal(t, time.Second, cfg.PublishInterval)
}

func TestLoadRejectsUnknownVariant(t *testing.T) {
	clearEnv(t)
	t.Setenv("TWIN_VARIANT", "steam-engine")

	_, err := Load()
	assert.ErrorIs(t, err, twin.ErrUnknownVariant)
}

func TestLoadFileOverlay(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "twin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
variant: basic-dynamic
update_interval: 250ms
noise_level: 0.01
params:
  heating_tau: 30s
  wind_factor_floor: 0.7
`), 0644))
	t.Setenv("TWIN_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, twin.BasicDynamic, cfg.Variant)
	assert.Equal(t, 250*time.Millisecond, cfg.UpdateInterval)
	assert.Equal(t, 0.01, cfg.NoiseLevel)
	assert.Equal(t, 30*time.Second, cfg.Params.HeatingTau)
	assert.Equal(t, 0.7, cfg.Params.WindFactorFloor)
	assert.Equal(t, twin.DefaultParams().CoolingTau, cfg.Params.CoolingTau)

	// Environment wins over the file.
	t.Setenv("TWIN_VARIANT", "regression-state")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, twin.RegressionState, cfg.Variant)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("params: [1, 2"), 0644))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestSaveFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	want := &File{
		Variant:        "regression-state",
		UpdateInterval: 75 * time.Millisecond,
		Params:         twin.DefaultParams(),
	}
	want.Params.SpoolAccelTau = 2 * time.Second

	require.NoError(t, SaveFile(path, want))
	got, err := LoadFile(path)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
