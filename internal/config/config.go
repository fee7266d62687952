package config

import "fmt"

// DefaultGatewayPort is used when no port is configured.
const DefaultGatewayPort = 18790

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Logging: LoggingConfig{
			Level: "info",
			Style: "pretty",
		},
		History: HistoryConfig{
			Store: "sqlite",
			Limit: 20,
		},
		Gateway: GatewayConfig{
			Port: DefaultGatewayPort,
			Bind: "loopback",
			Auth: GatewayAuth{
				Mode: "token",
			},
		},
	}
}
