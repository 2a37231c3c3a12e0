package opcua

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebastiankruger/fiber-twin/internal/core"
	"github.com/sebastiankruger/fiber-twin/internal/twin"
)

func testNodes() []core.NodeDefinition {
	return []core.NodeDefinition{
		{Name: "HeaterTemperature", DisplayName: "Heater Temperature", DataType: core.DataTypeDouble, InitialValue: 20.0},
		{Name: "WindCount", DisplayName: "Wind Count", DataType: core.DataTypeInt64, InitialValue: int64(1)},
	}
}

func TestRegisterBeforeStart(t *testing.T) {
	s := NewServer(0, "FiberTwin")
	require.NoError(t, s.Register(core.NamespaceTwin, "FiberTwin", "FrED twin", testNodes()))

	v, ok := s.Value("FiberTwin", "HeaterTemperature")
	require.True(t, ok)
	assert.Equal(t, 20.0, v)
	assert.False(t, s.Ready())

	err := s.Register(core.NamespaceTwin, "FiberTwin", "again", testNodes())
	assert.Error(t, err)
}

func TestUpdateStoresKnownValues(t *testing.T) {
	s := NewServer(0, "FiberTwin")
	require.NoError(t, s.Register(core.NamespaceTwin, "FiberTwin", "FrED twin", testNodes()))

	s.Update("FiberTwin", map[string]interface{}{
		"HeaterTemperature": 95.5,
		"WindCount":         int64(3),
		"Unknown":           1.0,
	})
	s.Update("Missing", map[string]interface{}{"HeaterTemperature": 1.0})

	assert.Equal(t, map[string]interface{}{
		"HeaterTemperature": 95.5,
		"WindCount":         int64(3),
	}, s.Values("FiberTwin"))
	assert.Nil(t, s.Values("Missing"))
	_, ok := s.Value("FiberTwin", "Unknown")
	assert.False(t, ok)
}

func TestRunRefreshesFromTwin(t *testing.T) {
	tw, err := twin.New(twin.Config{Variant: twin.RegressionDynamic})
	require.NoError(t, err)

	s := NewServer(0, "FiberTwin")
	require.NoError(t, s.Register(core.NamespaceTwin, "FiberTwin", "FrED twin", tw.GetOPCUANodes()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx, "FiberTwin", time.Millisecond, tw.GenerateData)

	tw.SetHeaterPower(0.75)
	assert.Eventually(t, func() bool {
		v, _ := s.Value("FiberTwin", "HeaterPower")
		return v == 0.75
	}, time.Second, time.Millisecond)
}

func TestEnsurePKIGeneratesOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pki")

	certPath, keyPath, err := ensurePKI(dir, "FiberTwin", applicationURI)
	require.NoError(t, err)

	raw, err := os.ReadFile(certPath)
	require.NoError(t, err)
	block, _ := pem.Decode(raw)
	require.NotNil(t, block)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	assert.Equal(t, "FiberTwin", cert.Subject.CommonName)
	require.Len(t, cert.URIs, 1)
	assert.Equal(t, applicationURI, cert.URIs[0].String())

	info, err := os.Stat(keyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, _, err := ensurePKI(dir, "FiberTwin", applicationURI)
	require.NoError(t, err)
	assert.Equal(t, certPath, again)
	reread, err := os.ReadFile(certPath)
	require.NoError(t, err)
	assert.Equal(t, raw, reread, "existing certificate is reused")
}
