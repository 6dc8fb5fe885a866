package core

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const validConfig = `
general:
  update_timeout: 300
  retry_timeout: 1m30s
  log_level: DEBUG
  log_file: ./logs/u2s.log
ufanet_config:
  service_url: https://ucams.example.com
  cloud_url: https://cloud.example.com
  user: "12345"
  password: secret
shinobi_config:
  cctv_url: http://shinobi:8080
  api_key: api
  group_key: group
`

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		config, err := LoadConfig(writeFile(t, "u2s-config.yaml", validConfig))
		require.NoError(t, err)

		assert.Equal(t, 300*time.Second, config.General.UpdateTimeout.Std())
		assert.Equal(t, 90*time.Second, config.General.RetryTimeout.Std())
		assert.Equal(t, "DEBUG", config.General.LogLevel)
		assert.Equal(t, "12345", config.Ufanet.User)
		assert.Equal(t, "group", config.Shinobi.GroupKey)

		// 기본값 확인
		assert.Equal(t, 30*time.Second, config.General.RequestTimeout.Std())
		assert.Equal(t, 1, config.General.ApplyConcurrency)
		assert.Equal(t, 20, config.Ufanet.PageSize)
		require.NotNil(t, config.General.InsecureSkipVerify)
		assert.True(t, *config.General.InsecureSkipVerify)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, ErrConfig)
	})

	t.Run("MissingTimeouts", func(t *testing.T) {
		content := `
ufanet_config: {service_url: a, cloud_url: b, user: c, password: d}
shinobi_config: {cctv_url: e, api_key: f, group_key: g}
`
		_, err := LoadConfig(writeFile(t, "config.yaml", content))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConfig))
		assert.Contains(t, err.Error(), "update_timeout")
	})

	t.Run("MissingCredentials", func(t *testing.T) {
		content := `
general: {update_timeout: 10, retry_timeout: 5}
shinobi_config: {cctv_url: e, api_key: f}
`
		_, err := LoadConfig(writeFile(t, "config.yaml", content))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "shinobi_config.group_key")
		assert.Contains(t, err.Error(), "ufanet_config.user")
	})

	t.Run("BadDuration", func(t *testing.T) {
		content := "general: {update_timeout: soon, retry_timeout: 5}\n"
		_, err := LoadConfig(writeFile(t, "config.yaml", content))
		assert.ErrorIs(t, err, ErrConfig)
	})
}

func TestLoadTemplate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		path := writeFile(t, "u2s-template.json", `{"mid":"","mode":"start","type":"h264","details":"{\"auto_host_enable\":\"1\"}"}`)

		template, err := LoadTemplate(path, zap.NewNop())
		require.NoError(t, err)

		enabled, ok := template.Details.Field("auto_host_enable")
		require.True(t, ok)
		assert.JSONEq(t, `"1"`, string(enabled))
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := LoadTemplate(filepath.Join(t.TempDir(), "u2s-template.json"), zap.NewNop())
		assert.ErrorIs(t, err, ErrConfig)
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := LoadTemplate(writeFile(t, "t.json", `[1,2]`), zap.NewNop())
		assert.ErrorIs(t, err, ErrConfig)
	})
}

// recordingSubscriber collects records delivered by the store
type recordingSubscriber struct {
	id      string
	mu      sync.Mutex
	records []CycleRecord
}

func (r *recordingSubscriber) OnCycle(record CycleRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
}

func (r *recordingSubscriber) GetID() string {
	return r.id
}

func TestStatusStore(t *testing.T) {
	store := NewStatusStore(2, zap.NewNop())
	sub := &recordingSubscriber{id: "sub-1"}
	store.Subscribe(sub)
	assert.Equal(t, 1, store.GetSubscriberCount())

	store.SetNextDelay(time.Minute)
	store.Record(CycleRecord{ID: "1", Outcome: OutcomeSuccess})
	store.Record(CycleRecord{ID: "2", Outcome: OutcomeFailure})
	store.Record(CycleRecord{ID: "3", Outcome: OutcomeSuccess})

	snapshot := store.Snapshot()
	assert.Equal(t, OutcomeSuccess, snapshot.LastOutcome)
	assert.Equal(t, uint64(3), snapshot.TotalCycles)
	assert.Equal(t, uint64(1), snapshot.Failures)
	assert.Equal(t, time.Minute, snapshot.NextDelay)
	require.Len(t, snapshot.Recent, 2)
	assert.Equal(t, "3", snapshot.Recent[0].ID)
	assert.Equal(t, "2", snapshot.Recent[1].ID)

	assert.Len(t, sub.records, 3)

	store.Unsubscribe("sub-1")
	store.Record(CycleRecord{ID: "4", Outcome: OutcomeSuccess})
	assert.Len(t, sub.records, 3)
}
