// Package config provides configuration types and loading for groupscribe.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Store, Provider, WhatsApp, Crypto, SMTP, Queue, Summarize.
type Config struct {
	Store     StoreConfig     `json:"store"`
	Provider  ProviderConfig  `json:"provider"`
	WhatsApp  WhatsAppConfig  `json:"whatsapp"`
	Crypto    CryptoConfig    `json:"crypto"`
	SMTP      SMTPConfig      `json:"smtp"`
	Queue     QueueConfig     `json:"queue"`
	Summarize SummarizeConfig `json:"summarize"`
}

// StoreConfig groups document store settings.
type StoreConfig struct {
	Path string `json:"path" envconfig:"PATH"`
}

// ProviderConfig contains settings for the OpenAI-compatible model provider.
type ProviderConfig struct {
	APIKey         string `json:"apiKey" envconfig:"API_KEY"`
	APIBase        string `json:"apiBase,omitempty" envconfig:"API_BASE"`
	ChatModel      string `json:"chatModel" envconfig:"CHAT_MODEL"`
	EmbeddingModel string `json:"embeddingModel" envconfig:"EMBEDDING_MODEL"`
}

// WhatsAppConfig configures the WhatsApp transport session.
type WhatsAppConfig struct {
	Enabled    bool   `json:"enabled" envconfig:"ENABLED"`
	DevicePath string `json:"devicePath" envconfig:"DEVICE_PATH"`
	QRPath     string `json:"qrPath" envconfig:"QR_PATH"`
}

// CryptoConfig carries the symmetric key material for message content
// encryption. An empty key makes ingestion fail, it never falls back to
// storing plaintext.
type CryptoConfig struct {
	MessageKey string `json:"messageKey" envconfig:"MESSAGE_KEY"`
}

// SMTPConfig configures outbound admin email notices.
type SMTPConfig struct {
	Host     string `json:"host" envconfig:"HOST"`
	Port     int    `json:"port" envconfig:"PORT"`
	Email    string `json:"email" envconfig:"EMAIL"`
	Password string `json:"password" envconfig:"PASSWORD"`
}

// QueueConfig configures the deferred command queue. When disabled,
// commands dispatch in-process.
type QueueConfig struct {
	Enabled       bool   `json:"enabled" envconfig:"ENABLED"`
	Brokers       string `json:"brokers" envconfig:"BROKERS"`
	Topic         string `json:"topic" envconfig:"TOPIC"`
	ConsumerGroup string `json:"consumerGroup" envconfig:"CONSUMER_GROUP"`
}

// SummarizeConfig contains summarization engine settings.
type SummarizeConfig struct {
	MaxAttempts int           `json:"maxAttempts" envconfig:"MAX_ATTEMPTS"`
	RetryDelay  time.Duration `json:"retryDelay" envconfig:"RETRY_DELAY"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path: "~/.groupscribe/groupscribe.db",
		},
		Provider: ProviderConfig{
			ChatModel:      "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
		},
		WhatsApp: WhatsAppConfig{
			Enabled:    true,
			DevicePath: "~/.groupscribe/whatsapp.db",
			QRPath:     "~/.groupscribe/whatsapp-qr.png",
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
		Queue: QueueConfig{
			Enabled:       false,
			Topic:         "groupscribe.commands",
			ConsumerGroup: "groupscribe",
		},
		Summarize: SummarizeConfig{
			MaxAttempts: 4,
			RetryDelay:  300 * time.Millisecond,
		},
	}
}
