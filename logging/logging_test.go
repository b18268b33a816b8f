package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestSetup_Levels(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	Setup("debug", false)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	Setup("not-a-level", false)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	Setup("", true)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestComponent_TagsEntries(t *testing.T) {
	prev := log.Logger
	defer func() { log.Logger = prev }()

	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)

	logger := Component("indexer")
	logger.Info().Msg("hello")
	assert.Contains(t, buf.String(), `"component":"indexer"`)
	assert.Contains(t, buf.String(), `"message":"hello"`)
}
