package config

import "time"

// Config holds runtime settings for the SecureShare CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the backend gRPC endpoint.
//   - SecretKey: HMAC secret shared with the server, used to mint access tokens.
//   - User: actor ID the CLI acts as.
//   - TokenValidity: lifetime of minted access tokens.
//   - CallTimeout: deadline applied to every RPC.
type Config struct {
	ServerEndpointAddr string
	SecretKey          string
	User               string
	TokenValidity      time.Duration
	CallTimeout        time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.SecretKey = "secretKey"
	c.TokenValidity = 15 * time.Minute
	c.CallTimeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
