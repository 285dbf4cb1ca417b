package logger

import (
	"bytes"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWriter(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	t.Run("json output", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, InitWriter(&buf, "debug", "json"))

		log.Debug().Str("thread_id", "u:jim:s").Msg("hello")

		var entry map[string]any
		require.NoError(t, sonic.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "debug", entry["level"])
		assert.Equal(t, "u:jim:s", entry["thread_id"])
		assert.Equal(t, "hello", entry["message"])
		assert.Contains(t, entry, "time")
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, InitWriter(&buf, "WARN", ""))

		log.Info().Msg("quiet")
		assert.Empty(t, buf.String())

		log.Warn().Msg("loud")
		assert.Contains(t, buf.String(), "loud")
	})

	t.Run("console output", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, InitWriter(&buf, "", "console"))

		log.Info().Msg("pretty")
		assert.Contains(t, buf.String(), "pretty")
		assert.NotContains(t, buf.String(), `"message"`)
	})

	t.Run("invalid level", func(t *testing.T) {
		assert.Error(t, InitWriter(&bytes.Buffer{}, "chatty", "json"))
	})

	t.Run("invalid format", func(t *testing.T) {
		assert.Error(t, InitWriter(&bytes.Buffer{}, "info", "xml"))
	})
}
