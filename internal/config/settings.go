package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LIGHTWAVE_LEGACY_HOST.
const EnvPrefix = "lightwave"

// Settings is the runtime configuration of the bridge. Values come from, in
// increasing priority: defaults, lightwave.yaml, LIGHTWAVE_* variables.
type Settings struct {
	Log    LogSettings    `mapstructure:"log"`
	Legacy LegacySettings `mapstructure:"legacy"`
	Smart  SmartSettings  `mapstructure:"smart"`
	HTTP   HTTPSettings   `mapstructure:"http"`
	Influx InfluxSettings `mapstructure:"influx"`
}

// LogSettings selects the zap level. Empty keeps interactive commands
// silent; serve falls back to info.
type LogSettings struct {
	Level string `mapstructure:"level"`
}

// LegacySettings configures the LightwaveLink UDP bridge.
type LegacySettings struct {
	Enabled          bool          `mapstructure:"enabled"`
	Host             string        `mapstructure:"host"`
	SendPort         int           `mapstructure:"send_port"`
	ReceivePort      int           `mapstructure:"receive_port"`
	AckTimeout       time.Duration `mapstructure:"ack_timeout"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
}

// SmartSettings configures the Link Plus websocket bridge and the cloud API.
type SmartSettings struct {
	Enabled        bool          `mapstructure:"enabled"`
	URL            string        `mapstructure:"url"`
	AuthURL        string        `mapstructure:"auth_url"`
	APIURL         string        `mapstructure:"api_url"`
	Email          string        `mapstructure:"email"`
	Password       string        `mapstructure:"password"`
	AckTimeout     time.Duration `mapstructure:"ack_timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

type HTTPSettings struct {
	Listen string `mapstructure:"listen"`
}

// InfluxSettings enables the InfluxDB exporter when URL is set.
type InfluxSettings struct {
	URL    string `mapstructure:"url"`
	Token  string `mapstructure:"token"`
	Org    string `mapstructure:"org"`
	Bucket string `mapstructure:"bucket"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "")

	v.SetDefault("legacy.enabled", false)
	v.SetDefault("legacy.host", "255.255.255.255")
	v.SetDefault("legacy.send_port", 9760)
	v.SetDefault("legacy.receive_port", 9761)
	v.SetDefault("legacy.ack_timeout", time.Second)
	v.SetDefault("legacy.handshake_timeout", 15*time.Second)
	v.SetDefault("legacy.max_attempts", 3)

	v.SetDefault("smart.enabled", false)
	v.SetDefault("smart.url", "wss://v1-linkplus-app.lightwaverf.com")
	v.SetDefault("smart.auth_url", "https://auth.lightwaverf.com/v2/lightwaverf/autouserlogin/lwapps")
	v.SetDefault("smart.api_url", "https://publicapi.lightwaverf.com/v1")
	v.SetDefault("smart.email", "")
	v.SetDefault("smart.password", "")
	v.SetDefault("smart.ack_timeout", 5*time.Second)
	v.SetDefault("smart.max_attempts", 3)
	v.SetDefault("smart.ping_interval", time.Minute)
	v.SetDefault("smart.reconnect_delay", 10*time.Second)

	v.SetDefault("http.listen", ":9124")

	v.SetDefault("influx.url", "")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "")
	v.SetDefault("influx.bucket", "lightwave")
}

// Load reads the settings. With an empty path it looks for
// lightwave.yaml in the working directory and the config directory, and a
// missing file is not an error; an explicit path must exist.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings %s: %w", path, err)
		}
	} else {
		v.SetConfigName(appName)
		v.AddConfigPath(".")
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read settings: %w", err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects settings the bridges cannot run with.
func (s *Settings) Validate() error {
	if s.Legacy.MaxAttempts < 1 {
		return fmt.Errorf("legacy.max_attempts must be at least 1, got %d", s.Legacy.MaxAttempts)
	}
	if s.Smart.MaxAttempts < 1 {
		return fmt.Errorf("smart.max_attempts must be at least 1, got %d", s.Smart.MaxAttempts)
	}
	if s.Legacy.AckTimeout <= 0 || s.Smart.AckTimeout <= 0 {
		return errors.New("ack_timeout must be positive")
	}
	if s.Influx.URL != "" && s.Influx.Org == "" {
		return errors.New("influx.org is required when influx.url is set")
	}
	return nil
}
