// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMake_WriterJSON(t *testing.T) {
	var buf bytes.Buffer
	lg, err := New().FromWriter(&buf).Level(zerolog.DebugLevel).Make()
	require.NoError(t, err)

	log := Component(lg.Logger, "export")
	log.Info().Int64("requester", 7).Msg("done")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "export", entry["component"])
	assert.Equal(t, "done", entry["message"])
	assert.EqualValues(t, 7, entry["requester"])
	assert.Contains(t, entry, "time")
	assert.NoError(t, lg.Close())
}

func TestMake_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	lg, err := New().FromWriter(&buf).Level(zerolog.WarnLevel).Make()
	require.NoError(t, err)

	lg.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	lg.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestMake_FromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldref.log")
	lg, err := New().FromPath(path).Make()
	require.NoError(t, err)

	lg.Info().Msg("first")
	lg.Info().Msg("second")
	require.NoError(t, lg.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, lvl)

	lvl, err = ParseLevel("Warning")
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, lvl)

	lvl, err = ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}
