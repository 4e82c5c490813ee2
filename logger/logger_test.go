package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/rs/zerolog"
)

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf, zerolog.InfoLevel)

	log.Info().Str("file", "ledger.json").Msg("loaded")

	var entry map[string]any
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "loaded", entry["message"])
	assert.Equal(t, "ledger.json", entry["file"])
	assert.Equal(t, "info", entry["level"])
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf, zerolog.WarnLevel)

	log.Info().Msg("hidden")
	assert.Equal(t, 0, buf.Len())

	log.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"WARNING", zerolog.WarnLevel, false},
		{" error ", zerolog.ErrorLevel, false},
		{"chatty", zerolog.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContext(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		buf := &bytes.Buffer{}
		ctx := WithContext(context.Background(), NewWithWriter(buf, zerolog.InfoLevel))

		log := FromContext(ctx)
		log.Info().Msg("from context")
		assert.Contains(t, buf.String(), "from context")
	})

	t.Run("DefaultIsDisabled", func(t *testing.T) {
		log := FromContext(context.Background())
		assert.Equal(t, zerolog.Disabled, log.GetLevel())
	})
}
