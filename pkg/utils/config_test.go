package utils_test

import (
	"testing"

	"github.com/notewell/crmbridge/pkg/utils"
	"github.com/stretchr/testify/assert"
)

func TestConfigGet(t *testing.T) {
	assert := assert.New(t)

	cfg := utils.NewConfig(map[string]string{
		"API_PORT": "8080",
		"EMPTY":    "",
	})

	assert.Equal("8080", cfg.Get("API_PORT"))
	assert.Equal("", cfg.Get("MISSING"))

	assert.Equal("8080", cfg.GetWithDefault("API_PORT", "9090"))
	assert.Equal("9090", cfg.GetWithDefault("MISSING", "9090"))
	assert.Equal("9090", cfg.GetWithDefault("EMPTY", "9090"))
}

func TestConfigGetInt(t *testing.T) {
	assert := assert.New(t)

	cfg := utils.NewConfig(map[string]string{
		"TIMEOUT": "30",
		"BAD":     "not-a-number",
	})

	assert.Equal(30, cfg.GetInt("TIMEOUT"))
	assert.Equal(0, cfg.GetInt("BAD"))
	assert.Equal(0, cfg.GetInt("MISSING"))

	assert.Equal(30, cfg.GetIntWithDefault("TIMEOUT", 60))
	assert.Equal(60, cfg.GetIntWithDefault("MISSING", 60))
}

func TestConfigGetBool(t *testing.T) {
	assert := assert.New(t)

	cfg := utils.NewConfig(map[string]string{
		"A": "true",
		"B": "yes",
		"C": "0",
		"D": "banana",
	})

	assert.True(cfg.GetBool("A"))
	assert.True(cfg.GetBool("B"))
	assert.False(cfg.GetBool("C"))
	assert.False(cfg.GetBool("D"))
	assert.False(cfg.GetBool("MISSING"))
}

func TestConfigSetAndHas(t *testing.T) {
	assert := assert.New(t)

	cfg := utils.NewConfig(nil)
	assert.False(cfg.Has("KEY"))

	cfg.Set("KEY", "value")
	assert.True(cfg.Has("KEY"))
	assert.Equal("value", cfg.Get("KEY"))

	m := cfg.ToMap()
	assert.Equal("value", m["KEY"])

	// ToMap returns a copy
	m["KEY"] = "tampered"
	assert.Equal("value", cfg.Get("KEY"))
}
