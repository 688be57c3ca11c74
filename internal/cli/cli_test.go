package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"speak-assessment-service/internal/config"

	"github.com/stretchr/testify/require"
)

func TestScoreCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := NewScoreCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--reference", "The quick brown fox", "--spoken", "the quick brown dog"})
	require.NoError(t, cmd.Execute())
	require.Equal(t, "accuracy: 75% (Good)\nwords:    The quick brown [fox]\n", out.String())
}

func TestScoreCommandJSON(t *testing.T) {
	var out bytes.Buffer
	cmd := NewScoreCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--reference", "Hello, world.", "--spoken", "hello world", "--json"})
	require.NoError(t, cmd.Execute())

	var got struct {
		AccuracyPercent int    `json:"accuracyPercent"`
		Level           string `json:"level"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Equal(t, 100, got.AccuracyPercent)
	require.Equal(t, "Excellent", got.Level)
}

func TestScoreCommandRequiresReference(t *testing.T) {
	cmd := NewScoreCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--spoken", "hi"})
	require.Error(t, cmd.Execute())
}

func TestPoolLoaderFallsBackToEmbeddedCatalog(t *testing.T) {
	loader, err := poolLoader(config.Config{}, nil)
	require.NoError(t, err)
	pool, err := loader.LoadPool(testContext(t), "reading")
	require.NoError(t, err)
	require.NotEmpty(t, pool.Questions)

	cfg := config.Config{}
	cfg.Pools.File = "does-not-exist.yaml"
	_, err = poolLoader(cfg, nil)
	require.Error(t, err)
}

func TestMigrationsNeedPostgres(t *testing.T) {
	require.Error(t, runMigrationsWithConfig(testContext(t), config.Config{}, nil))
}

func TestSplitOrigins(t *testing.T) {
	require.Nil(t, splitOrigins(""))
	require.Equal(t, []string{"http://a", "http://b"}, splitOrigins(" http://a ,http://b,"))
}

func TestTransportTimeouts(t *testing.T) {
	require.Equal(t, timeouts{
		permission:      30 * time.Second,
		recognitionStop: 2 * time.Second,
		request:         30 * time.Second,
	}, transportTimeouts(config.Config{}))

	cfg := config.Config{}
	cfg.Session.PermissionTimeout = "10s"
	cfg.Session.RecognitionStopTimeout = "500ms"
	cfg.Server.RequestTimeout = "1m"
	require.Equal(t, timeouts{
		permission:      10 * time.Second,
		recognitionStop: 500 * time.Millisecond,
		request:         time.Minute,
	}, transportTimeouts(cfg))
}

// testContext stands in for testing.T.Context (Go 1.24+): a context that is
// canceled when the test finishes.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
