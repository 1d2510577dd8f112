package config

// DefaultEndpoint is the ingestion API used when none is configured.
const DefaultEndpoint = "https://saweriajuned2.vercel.app/api/webhook"

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		Discord: DiscordConfig{
			RequireWebhook: true,
			AckEmoji:       "✅",
			React:          true,
		},
		Relay: RelayConfig{
			Endpoint:       DefaultEndpoint,
			SourceHeader:   "discord-bot",
			TimeoutSeconds: 30,
			Concurrency:    1,
			BufferSize:     100,
		},
		Server: ServerConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    3000,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}
