// Package config loads mailer settings from a YAML file, with environment
// variables taking precedence, and builds the message settings, transports,
// and plugins they describe.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/swiftmailer/swiftmailer-sub001/message"
	"github.com/swiftmailer/swiftmailer-sub001/transport/esmtp"
	"github.com/swiftmailer/swiftmailer-sub001/transport/iobuffer"
	"github.com/swiftmailer/swiftmailer-sub001/transport/sendmail"
)

// EnvPrefix starts the name of every environment variable read.
const EnvPrefix = "SWIFTMAIL_"

// Transport types.
const (
	TypeSMTP         = "smtp"
	TypeSendmail     = "sendmail"
	TypeNull         = "null"
	TypeSpool        = "spool"
	TypeSES          = "ses"
	TypeFailover     = "failover"
	TypeLoadBalanced = "loadbalanced"
)

// Spool types.
const (
	SpoolMemory = "memory"
	SpoolFile   = "file"
	SpoolBolt   = "bolt"
)

// Config holds the complete mailer configuration.
type Config struct {
	Message   MessageConfig   `yaml:"message"`
	Transport TransportConfig `yaml:"transport"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Sendmail  SendmailConfig  `yaml:"sendmail"`
	Spool     SpoolConfig     `yaml:"spool"`
	SES       SESConfig       `yaml:"ses"`
	Plugins   PluginsConfig   `yaml:"plugins"`
	Log       LogConfig       `yaml:"log"`
}

// MessageConfig holds the settings for new messages.
type MessageConfig struct {
	Charset       string `yaml:"charset"`
	IDRight       string `yaml:"id_right"`
	MaxLineLength int    `yaml:"max_line_length"`
	QPDotEscape   bool   `yaml:"qp_dot_escape"`
}

// TransportConfig chooses the transport. Failover and loadbalanced
// transports, and the delivery transport of a spool, are listed under
// Transports.
type TransportConfig struct {
	Type       string            `yaml:"type"`
	Transports []TransportConfig `yaml:"transports"`

	// SMTP replaces the top-level smtp section for this transport only.
	SMTP *SMTPConfig `yaml:"smtp"`
}

// SMTPConfig holds the settings of an SMTP transport.
type SMTPConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Encryption     string        `yaml:"encryption"`
	StartTLS       string        `yaml:"starttls"`
	Timeout        time.Duration `yaml:"timeout"`
	SourceIP       string        `yaml:"source_ip"`
	LocalDomain    string        `yaml:"local_domain"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	Pipelining     bool          `yaml:"pipelining"`
	AddressEncoder string        `yaml:"address_encoder"`
	LookupMX       bool          `yaml:"lookup_mx"`
	Nameservers    []string      `yaml:"nameservers"`
}

// SendmailConfig holds the settings of a sendmail transport.
type SendmailConfig struct {
	Command string `yaml:"command"`
}

// SpoolConfig holds the settings of a spool and of flushing it.
type SpoolConfig struct {
	Type           string        `yaml:"type"`
	Path           string        `yaml:"path"`
	MessageLimit   int           `yaml:"message_limit"`
	TimeLimit      time.Duration `yaml:"time_limit"`
	RetryLimit     int           `yaml:"retry_limit"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	RecoverTimeout time.Duration `yaml:"recover_timeout"`
}

// SESConfig holds the settings of an Amazon SES transport.
type SESConfig struct {
	Region           string        `yaml:"region"`
	AccessKeyID      string        `yaml:"access_key_id"`
	SecretAccessKey  string        `yaml:"secret_access_key"`
	ConfigurationSet string        `yaml:"configuration_set"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
}

// PluginsConfig enables plugins. A plugin is enabled when its section is
// present.
type PluginsConfig struct {
	AntiFlood   *AntiFloodConfig   `yaml:"antiflood"`
	Redirecting *RedirectingConfig `yaml:"redirecting"`
	Impersonate *ImpersonateConfig `yaml:"impersonate"`
	Logger      *LoggerConfig      `yaml:"logger"`
	Metrics     *MetricsConfig     `yaml:"metrics"`
}

// AntiFloodConfig configures the antiflood plugin.
type AntiFloodConfig struct {
	Threshold int           `yaml:"threshold"`
	Sleep     time.Duration `yaml:"sleep"`
}

// RedirectingConfig configures the redirecting plugin.
type RedirectingConfig struct {
	Recipients []string `yaml:"recipients"`
	Whitelist  []string `yaml:"whitelist"`
}

// ImpersonateConfig configures the impersonate plugin.
type ImpersonateConfig struct {
	Sender string `yaml:"sender"`
}

// LoggerConfig configures the logger plugin.
type LoggerConfig struct {
	Size int `yaml:"size"`
}

// MetricsConfig configures the metrics plugin.
type MetricsConfig struct{}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load returns the defaults with environment variables applied.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads the YAML file at path over the defaults, then applies
// environment variables.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Read(f)
}

// Read is LoadFromFile for an already open file.
func Read(r io.Reader) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Transport.Type = TypeSMTP
	c.SMTP.Host = "localhost"
	c.SMTP.Port = 25
	c.Sendmail.Command = sendmail.DefaultCommand
	c.Spool.Type = SpoolFile
	c.Log.Level = "info"
}

// applyEnvVars overrides values with the non-empty environment variables.
func (c *Config) applyEnvVars() error {
	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	var err error
	num := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, perr := strconv.Atoi(v)
			if perr != nil && err == nil {
				err = fmt.Errorf("%s%s: %w", EnvPrefix, name, perr)
			}
			*dst = n
		}
	}

	str("CHARSET", &c.Message.Charset)
	str("ID_RIGHT", &c.Message.IDRight)

	str("TRANSPORT", &c.Transport.Type)

	str("SMTP_HOST", &c.SMTP.Host)
	num("SMTP_PORT", &c.SMTP.Port)
	str("SMTP_ENCRYPTION", &c.SMTP.Encryption)
	str("SMTP_STARTTLS", &c.SMTP.StartTLS)
	str("SMTP_LOCAL_DOMAIN", &c.SMTP.LocalDomain)
	str("SMTP_USERNAME", &c.SMTP.Username)
	str("SMTP_PASSWORD", &c.SMTP.Password)

	str("SENDMAIL_COMMAND", &c.Sendmail.Command)

	str("SPOOL_TYPE", &c.Spool.Type)
	str("SPOOL_PATH", &c.Spool.Path)
	num("SPOOL_MESSAGE_LIMIT", &c.Spool.MessageLimit)

	str("SES_REGION", &c.SES.Region)
	str("SES_ACCESS_KEY_ID", &c.SES.AccessKeyID)
	str("SES_SECRET_ACCESS_KEY", &c.SES.SecretAccessKey)
	str("SES_CONFIGURATION_SET", &c.SES.ConfigurationSet)

	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}

	return err
}

// MessageConfig returns the settings for new messages.
func (c *Config) MessageConfig() *message.Config {
	mc := message.DefaultConfig()
	if c.Message.Charset != "" {
		mc.Charset = c.Message.Charset
	}
	if c.Message.MaxLineLength > 0 {
		mc.MaxLineLength = c.Message.MaxLineLength
	}
	mc.IDRight = c.Message.IDRight
	mc.QPDotEscape = c.Message.QPDotEscape
	return mc
}

// Level returns the configured log level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}

// Logger returns a text logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) (*slog.Logger, error) {
	l, err := c.Level()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

// SocketParams returns the connection settings of s.
func (s *SMTPConfig) SocketParams() iobuffer.SocketParams {
	return iobuffer.SocketParams{
		Host:        s.Host,
		Port:        s.Port,
		Encryption:  s.Encryption,
		Timeout:     s.Timeout,
		SourceIP:    s.SourceIP,
		LookupMX:    s.LookupMX,
		Nameservers: s.Nameservers,
	}
}

// Options returns the ESMTP options for s.
func (s *SMTPConfig) Options(l *slog.Logger) ([]esmtp.Option, error) {
	opts := []esmtp.Option{esmtp.WithLogger(l)}

	if s.LocalDomain != "" {
		opts = append(opts, esmtp.WithLocalDomain(s.LocalDomain))
	}
	if s.Username != "" {
		opts = append(opts, esmtp.WithAuth(s.Username, s.Password))
	}
	if s.Pipelining {
		opts = append(opts, esmtp.WithPipelining())
	}

	switch strings.ToLower(s.StartTLS) {
	case "", "opportunistic":
	case "required":
		opts = append(opts, esmtp.WithTLSMode(esmtp.StartTLSRequired))
	case "never":
		opts = append(opts, esmtp.WithTLSMode(esmtp.StartTLSNever))
	default:
		return nil, fmt.Errorf("unknown starttls mode %q", s.StartTLS)
	}

	switch strings.ToLower(s.AddressEncoder) {
	case "", "idn":
	case "utf8":
		opts = append(opts, esmtp.WithAddressEncoder(esmtp.UTF8Encoder{}))
	default:
		return nil, fmt.Errorf("unknown address encoder %q", s.AddressEncoder)
	}

	return opts, nil
}
