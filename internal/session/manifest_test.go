package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.report/internal/events"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shoulder.csv", sampleCSV(15))
	writeFile(t, dir, "elbow.csv", sampleCSV(15))
	manifest := writeFile(t, dir, "sessions.yaml", `
sessions:
  - name: warmup
    active: true
    video: warmup.mp4
    imus:
      - label: shoulder
        file: shoulder.csv
      - label: elbow
        file: elbow.csv
  - name: cooldown
    imus: []
`)

	r := NewRegistry(events.NewBus())
	require.NoError(t, LoadManifest(manifest, r))

	require.Len(t, r.List(), 2)
	active := r.Active()
	require.NotNil(t, active)
	assert.Equal(t, "warmup", active.Name)
	assert.Equal(t, filepath.Join(dir, "warmup.mp4"), active.VideoPath)
	require.Len(t, active.IMUs, 2)
	assert.Equal(t, "shoulder", active.IMUs[0].Label)
	assert.Equal(t, 15, active.IMUs[0].Rows)
}

func TestLoadManifestMissingCSV(t *testing.T) {
	dir := t.TempDir()
	manifest := writeFile(t, dir, "sessions.yaml", `
sessions:
  - name: broken
    imus:
      - label: shoulder
        file: does-not-exist.csv
`)

	r := NewRegistry(events.NewBus())
	err := LoadManifest(manifest, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist.csv")
}

func TestLoadManifestRejectsTwoActive(t *testing.T) {
	dir := t.TempDir()
	manifest := writeFile(t, dir, "sessions.yaml", `
sessions:
  - name: a
    active: true
    imus: []
  - name: b
    active: true
    imus: []
`)

	r := NewRegistry(events.NewBus())
	assert.Error(t, LoadManifest(manifest, r))
}

func TestLoadManifestBadYAML(t *testing.T) {
	dir := t.TempDir()
	manifest := writeFile(t, dir, "sessions.yaml", "sessions: [not: valid: yaml\n")
	r := NewRegistry(events.NewBus())
	assert.Error(t, LoadManifest(manifest, r))
}
