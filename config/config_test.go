package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsMissingMapboxToken(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingMapboxToken)
}

func TestValidateAcceptsConfiguredToken(t *testing.T) {
	cfg := &Config{Mapbox: MapboxConfig{Token: "pk.test"}}
	assert.NoError(t, cfg.Validate())
}
