package engine

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Defaults applied when a setting is absent or blank.
const (
	DefaultMainScene       = "Scene_A"
	DefaultProductScene    = "Product_View"
	DefaultMediaSource     = "Dynamic_Media"
	DefaultAutoReturnDelay = 30 * time.Second
	DefaultReconnectDelay  = 30 * time.Second
	DefaultRateLimit       = 2
	DefaultCacheTTL        = 5 * time.Minute
	DefaultClassifierURL   = "https://api.deepseek.com/v1"
	DefaultClassifierModel = "deepseek-chat"
)

// Config is the read-only settings snapshot a session runs with. Edits to
// the settings store are only picked up by starting a new session.
type Config struct {
	StreamTarget string
	ChatUsername string
	ChatToken    string

	ClassifierAPIKey  string
	ClassifierBaseURL string
	ClassifierModel   string

	OBSHost     string
	OBSPort     int
	OBSPassword string

	MainScene    string
	ProductScene string
	MediaSource  string
	MediaDir     string

	AutoReturnDelay    time.Duration
	ReconnectDelay     time.Duration
	RateLimitPerMinute int
	CacheTTL           time.Duration
}

// BuildConfig assembles a session config from a raw settings snapshot,
// applying defaults and validating required fields. A missing required
// setting is fatal to session start.
func BuildConfig(settings map[string]string) (Config, error) {
	cfg := Config{
		StreamTarget:      settings["chat_channel"],
		ChatUsername:      settings["chat_username"],
		ChatToken:         settings["chat_token"],
		ClassifierAPIKey:  settings["classifier_api_key"],
		ClassifierBaseURL: stringOr(settings, "classifier_base_url", DefaultClassifierURL),
		ClassifierModel:   stringOr(settings, "classifier_model", DefaultClassifierModel),
		OBSHost:           stringOr(settings, "obs_ws_host", "localhost"),
		OBSPassword:       settings["obs_ws_password"],
		MainScene:         stringOr(settings, "main_scene_name", DefaultMainScene),
		ProductScene:      stringOr(settings, "product_scene_name", DefaultProductScene),
		MediaSource:       stringOr(settings, "media_source_name", DefaultMediaSource),
		MediaDir:          stringOr(settings, "media_dir", "media"),
	}

	if cfg.StreamTarget == "" {
		return Config{}, errors.New("missing required setting: chat_channel")
	}
	if cfg.ClassifierAPIKey == "" {
		return Config{}, errors.New("missing required setting: classifier_api_key")
	}

	var err error
	if cfg.OBSPort, err = intOr(settings, "obs_ws_port", 4455); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerMinute, err = intOr(settings, "comment_rate_limit", DefaultRateLimit); err != nil {
		return Config{}, err
	}

	if cfg.AutoReturnDelay, err = secondsOr(settings, "auto_return_seconds", DefaultAutoReturnDelay); err != nil {
		return Config{}, err
	}
	if cfg.ReconnectDelay, err = secondsOr(settings, "chat_reconnect_delay", DefaultReconnectDelay); err != nil {
		return Config{}, err
	}
	if cfg.CacheTTL, err = secondsOr(settings, "cache_duration_seconds", DefaultCacheTTL); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func stringOr(settings map[string]string, key, fallback string) string {
	if v := settings[key]; v != "" {
		return v
	}
	return fallback
}

func intOr(settings map[string]string, key string, fallback int) (int, error) {
	v := settings[key]
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "setting %s must be a number", key)
	}
	return n, nil
}

func secondsOr(settings map[string]string, key string, fallback time.Duration) (time.Duration, error) {
	v := settings[key]
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "setting %s must be a number of seconds", key)
	}
	return time.Duration(n) * time.Second, nil
}
