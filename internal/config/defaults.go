package config

import "time"

// DefaultMediaReply is sent to senders of media messages.
const DefaultMediaReply = "Lo siento, no procesamos mensajes con archivos multimedia (imágenes, audios, documentos). Por favor enviame un mensaje de texto."

func Defaults() *Config {
	return &Config{
		Port:           3000,
		StorageDir:     "./storage",
		LogLevel:       "info",
		LogFormat:      "text",
		BackendTimeout: 30 * time.Second,
		MediaReplyText: DefaultMediaReply,
		MetricsEnabled: false,
		QRTerminal:     true,
	}
}
