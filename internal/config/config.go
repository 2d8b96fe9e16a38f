package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Features are the boolean toggles gating optional sub-flows. A disabled
// toggle turns the corresponding fetch/update into a no-op success.
type Features struct {
	FetchPinnedConversations bool `toml:"fetch_pinned_conversations"`
	EnrichUserInfo           bool `toml:"enrich_user_info"`
	SubscribePresence        bool `toml:"subscribe_presence"`
}

// Limits are paging and retention tunables.
type Limits struct {
	HistoryPageSize            int `toml:"history_page_size"`
	ConversationPageSize       int `toml:"conversation_page_size"`
	MaxMessagesPerConversation int `toml:"max_messages_per_conversation"`
}

// Config represents a session's config.toml.
type Config struct {
	ServerURL string   `toml:"server_url"`
	UserID    string   `toml:"user_id"`
	Token     string   `toml:"token"`
	Features  Features `toml:"features"`
	Limits    Limits   `toml:"limits"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Features: Features{
			FetchPinnedConversations: true,
			EnrichUserInfo:           true,
			SubscribePresence:        true,
		},
		Limits: Limits{
			HistoryPageSize:            15,
			ConversationPageSize:       20,
			MaxMessagesPerConversation: 100,
		},
	}
}

// Load reads config from the given path. A missing file yields Default().
// Zero-valued limits in the file are replaced with their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	def := Default()
	if cfg.Limits.HistoryPageSize <= 0 {
		cfg.Limits.HistoryPageSize = def.Limits.HistoryPageSize
	}
	if cfg.Limits.ConversationPageSize <= 0 {
		cfg.Limits.ConversationPageSize = def.Limits.ConversationPageSize
	}
	if cfg.Limits.MaxMessagesPerConversation <= 0 {
		cfg.Limits.MaxMessagesPerConversation = def.Limits.MaxMessagesPerConversation
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
