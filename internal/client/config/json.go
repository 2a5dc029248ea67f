package config

import (
	"encoding/json"
	"os"

	"github.com/JustWint3r/SecureShare/internal/flagx"
	"github.com/JustWint3r/SecureShare/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations
// accept strings like "3s" or integer nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	SecretKey          string         `json:"secret_key"`
	User               string         `json:"user"`
	TokenValidity      timex.Duration `json:"token_validity"`
	CallTimeout        timex.Duration `json:"call_timeout"`
}

// parseJson overlays Config with values loaded from the file named by -c or
// -config. Keys absent from the file keep their values. Panics on read or
// unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	jc := JsonConfig{
		ServerEndpointAddr: cfg.ServerEndpointAddr,
		SecretKey:          cfg.SecretKey,
		User:               cfg.User,
		TokenValidity:      timex.Duration{Duration: cfg.TokenValidity},
		CallTimeout:        timex.Duration{Duration: cfg.CallTimeout},
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	cfg.SecretKey = jc.SecretKey
	cfg.User = jc.User
	cfg.TokenValidity = jc.TokenValidity.Duration
	cfg.CallTimeout = jc.CallTimeout.Duration
}
