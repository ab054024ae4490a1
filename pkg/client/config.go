// Copyright 2022 The jackal Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package client

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/kkyr/fig"
	"github.com/pkg/errors"

	"github.com/jackal-xmpp/courier/pkg/log"
	"github.com/jackal-xmpp/courier/pkg/sasl"
)

const (
	socketTransport    = "socket"
	webSocketTransport = "websocket"
)

const (
	defaultDialTimeout      = time.Second * 5
	defaultRequestTimeout   = time.Second * 15
	defaultKeepAliveTimeout = time.Minute * 10
	defaultMaxStanzaSize    = 131072
	defaultMaxAuthAttempts  = 2
	defaultReconnectBase    = time.Second
	defaultReconnectFactor  = 2.0
	defaultReconnectMax     = time.Minute * 5
	defaultLoggerLevel      = "info"
)

// TLSConfig defines stream confidentiality configuration.
type TLSConfig struct {
	// Optional allows the session to proceed over an unprotected channel when the server does not offer STARTTLS.
	Optional bool `fig:"optional"`

	// ServerName overrides the name used to verify the server certificate.
	ServerName string `fig:"server_name"`

	// InsecureSkipVerify disables server certificate verification.
	InsecureSkipVerify bool `fig:"insecure_skip_verify"`
}

// SASLConfig defines authentication mechanism policy.
type SASLConfig struct {
	// Mechanisms contains the accepted mechanism names, most preferred first.
	// Every password based mechanism is accepted, strongest first, when empty.
	Mechanisms []string `fig:"mechanisms"`

	// MaxAttempts bounds the number of mechanisms tried within one connection cycle.
	MaxAttempts int `fig:"max_attempts" default:"2"`

	// MaxIterations is the highest salted-challenge iteration count accepted from the server.
	MaxIterations int `fig:"max_iterations" default:"1000000"`
}

// ReconnectConfig defines reconnection policy.
type ReconnectConfig struct {
	// Disabled turns every disconnection into a terminal one.
	Disabled bool `fig:"disabled"`

	// Base is the delay applied before the first reconnection attempt.
	Base time.Duration `fig:"base" default:"1s"`

	// Factor is the multiplier applied to the delay after each failed attempt.
	Factor float64 `fig:"factor" default:"2"`

	// Max caps the reconnection delay.
	Max time.Duration `fig:"max" default:"5m"`

	// Jitter is the random fraction applied to each delay, in the [0, 1] range.
	Jitter float64 `fig:"jitter" default:"0.2"`
}

// RateLimitConfig defines transport read rate limiting.
type RateLimitConfig struct {
	// Rate is the allowed number of bytes per second. Zero disables the limit.
	Rate int `fig:"rate"`

	// Burst is the maximum number of bytes that can be read at once.
	Burst int `fig:"burst"`
}

// AvatarsConfig defines avatar retrieval configuration.
type AvatarsConfig struct {
	Disabled     bool          `fig:"disabled"`
	FetchTimeout time.Duration `fig:"fetch_timeout" default:"15s"`
}

// LoggerConfig defines logger configuration.
type LoggerConfig struct {
	Level  string `fig:"level" default:"info"`
	Format string `fig:"format"`
}

// Config defines client configuration.
type Config struct {
	// JID is the account bare JID.
	JID string `fig:"jid" validate:"required"`

	// Password is the account password.
	Password string `fig:"password"`

	// AuthzID is the optional authorization identity.
	AuthzID string `fig:"authzid"`

	// Resource is the resource requested at binding time. A server assigned one is used when empty.
	Resource string `fig:"resource"`

	// Lang is the default stream language.
	Lang string `fig:"lang"`

	// Host overrides the server host, skipping SRV resolution.
	Host string `fig:"host"`

	// Port overrides the server port. Used together with Host.
	Port int `fig:"port"`

	// DirectTLS, if true, the connection to Host is secured before opening the stream.
	DirectTLS bool `fig:"direct_tls"`

	// Transport selects the stream transport: socket or websocket.
	Transport string `fig:"transport" default:"socket"`

	// WebSocketURL is the endpoint used by the websocket transport.
	WebSocketURL string `fig:"websocket_url"`

	TLS       TLSConfig       `fig:"tls"`
	SASL      SASLConfig      `fig:"sasl"`
	Reconnect ReconnectConfig `fig:"reconnect"`

	// DialTimeout defines transport dial timeout.
	DialTimeout time.Duration `fig:"dial_timeout" default:"5s"`

	// RequestTimeout defines stream request timeout.
	RequestTimeout time.Duration `fig:"req_timeout" default:"15s"`

	// KeepAliveTimeout defines stream read timeout.
	KeepAliveTimeout time.Duration `fig:"keep_alive_timeout" default:"10m"`

	// MaxStanzaSize is the maximum size an incoming stanza may have.
	MaxStanzaSize int `fig:"max_stanza_size" default:"131072"`

	ReadRateLimit RateLimitConfig `fig:"read_rate_limit"`
	Avatars       AvatarsConfig   `fig:"avatars"`
	Logger        LoggerConfig    `fig:"logger"`
}

// LoadConfig reads and validates the configuration stored at configFile.
func LoadConfig(configFile string) (*Config, error) {
	var cfg Config
	file := filepath.Base(configFile)
	dir := filepath.Dir(configFile)

	err := fig.Load(&cfg, fig.File(file), fig.Dirs(dir))
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if len(cfg.Transport) == 0 {
		cfg.Transport = socketTransport
	}
	if cfg.SASL.MaxAttempts == 0 {
		cfg.SASL.MaxAttempts = defaultMaxAuthAttempts
	}
	if cfg.SASL.MaxIterations == 0 {
		cfg.SASL.MaxIterations = sasl.DefaultMaxIterations
	}
	if cfg.Reconnect.Base == 0 {
		cfg.Reconnect.Base = defaultReconnectBase
	}
	if cfg.Reconnect.Factor == 0 {
		cfg.Reconnect.Factor = defaultReconnectFactor
	}
	if cfg.Reconnect.Max == 0 {
		cfg.Reconnect.Max = defaultReconnectMax
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.KeepAliveTimeout == 0 {
		cfg.KeepAliveTimeout = defaultKeepAliveTimeout
	}
	if cfg.MaxStanzaSize == 0 {
		cfg.MaxStanzaSize = defaultMaxStanzaSize
	}
	if len(cfg.Logger.Level) == 0 {
		cfg.Logger.Level = defaultLoggerLevel
	}
}

func (cfg *Config) validate() error {
	jd, err := jid.NewWithString(cfg.JID, false)
	if err != nil {
		return errors.Wrap(err, "client: invalid jid")
	}
	if jd.IsFull() {
		return fmt.Errorf("client: jid '%s' must be a bare jid", cfg.JID)
	}
	prefs, err := cfg.preference()
	if err != nil {
		return err
	}
	if len(jd.Node()) == 0 && !containsMechanism(prefs, sasl.Anonymous) {
		return errors.New("client: jid without node requires ANONYMOUS mechanism")
	}
	switch cfg.Transport {
	case socketTransport:
		if cfg.Port < 0 || cfg.Port > 65535 {
			return fmt.Errorf("client: invalid port %d", cfg.Port)
		}
	case webSocketTransport:
		if len(cfg.WebSocketURL) == 0 {
			return errors.New("client: websocket transport requires websocket_url")
		}
	default:
		return fmt.Errorf("client: unrecognized transport '%s'", cfg.Transport)
	}
	if cfg.SASL.MaxAttempts < 1 {
		return fmt.Errorf("client: invalid sasl max_attempts %d", cfg.SASL.MaxAttempts)
	}
	if cfg.SASL.MaxIterations < 1 {
		return fmt.Errorf("client: invalid sasl max_iterations %d", cfg.SASL.MaxIterations)
	}
	if cfg.Reconnect.Base <= 0 || cfg.Reconnect.Max < cfg.Reconnect.Base {
		return errors.New("client: invalid reconnect delays")
	}
	if cfg.Reconnect.Factor < 1 {
		return fmt.Errorf("client: invalid reconnect factor %v", cfg.Reconnect.Factor)
	}
	if cfg.Reconnect.Jitter < 0 || cfg.Reconnect.Jitter > 1 {
		return fmt.Errorf("client: invalid reconnect jitter %v", cfg.Reconnect.Jitter)
	}
	if !log.IsValidLevel(cfg.Logger.Level) {
		return fmt.Errorf("client: unrecognized log level '%s'", cfg.Logger.Level)
	}
	return nil
}

func (cfg *Config) bareJID() *jid.JID {
	jd, _ := jid.NewWithString(cfg.JID, false)
	return jd
}

func (cfg *Config) preference() ([]sasl.Mechanism, error) {
	if len(cfg.SASL.Mechanisms) == 0 {
		return sasl.DefaultPreference(), nil
	}
	var prefs []sasl.Mechanism
	for _, name := range cfg.SASL.Mechanisms {
		m, ok := sasl.ParseMechanism(name)
		if !ok {
			return nil, fmt.Errorf("client: unsupported sasl mechanism '%s'", name)
		}
		prefs = append(prefs, m)
	}
	return prefs, nil
}

func containsMechanism(ms []sasl.Mechanism, m sasl.Mechanism) bool {
	for _, mm := range ms {
		if mm == m {
			return true
		}
	}
	return false
}
