package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/swiftmailer/swiftmailer-sub001/plugin/antiflood"
	"github.com/swiftmailer/swiftmailer-sub001/plugin/impersonate"
	"github.com/swiftmailer/swiftmailer-sub001/plugin/logger"
	"github.com/swiftmailer/swiftmailer-sub001/plugin/metrics"
	"github.com/swiftmailer/swiftmailer-sub001/plugin/redirecting"
	"github.com/swiftmailer/swiftmailer-sub001/transport"
	"github.com/swiftmailer/swiftmailer-sub001/transport/esmtp"
	"github.com/swiftmailer/swiftmailer-sub001/transport/sendmail"
	"github.com/swiftmailer/swiftmailer-sub001/transport/ses"
	"github.com/swiftmailer/swiftmailer-sub001/transport/spool"
)

// Errors returned while building from a Config.
var (
	// ErrUnknownType is returned for a transport or spool type that is not
	// one of the known types.
	ErrUnknownType = errors.New("unknown type")

	// ErrNoMembers is returned for a failover or loadbalanced transport with
	// nothing listed under transports.
	ErrNoMembers = errors.New("no transports listed")

	// ErrNoSpoolPath is returned for a file or bolt spool without a path.
	ErrNoSpoolPath = errors.New("spool path is required")

	// ErrNoDelivery is returned by DeliveryTransport when the spool
	// transport does not list the transport to flush through.
	ErrNoDelivery = errors.New("spool has no delivery transport")
)

// Built holds everything built from a Config, so it can be closed.
type Built struct {
	Transport transport.Transport

	// Spool is set when the transport, or one it wraps, is a spool.
	Spool spool.Spool

	// Logger is set when the logger plugin is enabled.
	Logger *logger.Plugin
}

// Close releases the spool, if it holds resources.
func (b *Built) Close() error {
	if c, ok := b.Spool.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// NewTransport builds the configured transport and registers the configured
// plugins with it. reg receives the metrics, when enabled.
func (c *Config) NewTransport(ctx context.Context, l *slog.Logger, reg prometheus.Registerer) (*Built, error) {
	if l == nil {
		l = slog.Default()
	}

	b := &Built{}
	t, err := c.build(ctx, c.Transport, l, b)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	b.Transport = t

	if err := c.registerPlugins(b, l, reg); err != nil {
		_ = b.Close()
		return nil, err
	}

	return b, nil
}

// DeliveryTransport builds the transport a spool is flushed through: the one
// listed under the spool transport.
func (c *Config) DeliveryTransport(ctx context.Context, l *slog.Logger, reg prometheus.Registerer) (*Built, error) {
	if len(c.Transport.Transports) == 0 {
		return nil, ErrNoDelivery
	}

	dc := *c
	dc.Transport = c.Transport.Transports[0]
	return dc.NewTransport(ctx, l, reg)
}

func (c *Config) build(ctx context.Context, tc TransportConfig, l *slog.Logger, b *Built) (transport.Transport, error) {
	switch strings.ToLower(tc.Type) {
	case TypeSMTP:
		sc := c.SMTP
		if tc.SMTP != nil {
			sc = *tc.SMTP
		}
		opts, err := sc.Options(l)
		if err != nil {
			return nil, err
		}
		return esmtp.NewSMTP(sc.SocketParams(), opts...), nil

	case TypeSendmail:
		return sendmail.New(c.Sendmail.Command, esmtp.WithLogger(l)), nil

	case TypeNull:
		return transport.NewNull(), nil

	case TypeSpool:
		s, err := c.NewSpool()
		if err != nil {
			return nil, err
		}
		b.Spool = s
		return spool.New(s), nil

	case TypeSES:
		opts := []ses.Option{ses.WithLogger(l)}
		if c.SES.MaxRetries > 0 {
			opts = append(opts, ses.WithRetries(c.SES.MaxRetries, c.SES.RetryDelay))
		}
		t, err := ses.New(ctx, ses.Config{
			Region:           c.SES.Region,
			AccessKeyID:      c.SES.AccessKeyID,
			SecretAccessKey:  c.SES.SecretAccessKey,
			ConfigurationSet: c.SES.ConfigurationSet,
		}, opts...)
		if err != nil {
			return nil, err
		}
		return t, nil

	case TypeFailover, TypeLoadBalanced:
		if len(tc.Transports) == 0 {
			return nil, fmt.Errorf("%s: %w", tc.Type, ErrNoMembers)
		}

		ts := make([]transport.Transport, 0, len(tc.Transports))
		for _, mc := range tc.Transports {
			t, err := c.build(ctx, mc, l, b)
			if err != nil {
				return nil, err
			}
			ts = append(ts, t)
		}

		if strings.ToLower(tc.Type) == TypeFailover {
			return transport.NewFailover(ts...), nil
		}
		return transport.NewLoadBalanced(ts...), nil
	}

	return nil, fmt.Errorf("transport %q: %w", tc.Type, ErrUnknownType)
}

// NewSpool builds the configured spool with its flush limits.
func (c *Config) NewSpool() (spool.Spool, error) {
	limits := spool.Limits{
		MessageLimit: c.Spool.MessageLimit,
		TimeLimit:    c.Spool.TimeLimit,
		RetryLimit:   c.Spool.RetryLimit,
		RetryDelay:   c.Spool.RetryDelay,
	}

	switch strings.ToLower(c.Spool.Type) {
	case SpoolMemory:
		s := spool.NewMemorySpool()
		s.Limits = limits
		return s, nil

	case SpoolFile:
		if c.Spool.Path == "" {
			return nil, ErrNoSpoolPath
		}
		s, err := spool.NewFileSpool(c.Spool.Path)
		if err != nil {
			return nil, err
		}
		s.Limits = limits
		if c.Spool.RecoverTimeout > 0 {
			s.RecoverTimeout = c.Spool.RecoverTimeout
		}
		return s, nil

	case SpoolBolt:
		if c.Spool.Path == "" {
			return nil, ErrNoSpoolPath
		}
		s, err := spool.OpenBoltSpool(c.Spool.Path)
		if err != nil {
			return nil, err
		}
		s.Limits = limits
		return s, nil
	}

	return nil, fmt.Errorf("spool %q: %w", c.Spool.Type, ErrUnknownType)
}

// registerPlugins registers the enabled plugins in a fixed order: the ones
// rewriting messages first, then the ones observing them.
func (c *Config) registerPlugins(b *Built, l *slog.Logger, reg prometheus.Registerer) error {
	p := c.Plugins
	t := b.Transport

	if p.Redirecting != nil {
		rp, err := redirecting.New(p.Redirecting.Recipients, p.Redirecting.Whitelist...)
		if err != nil {
			return fmt.Errorf("redirecting plugin: %w", err)
		}
		t.RegisterPlugin(rp)
	}
	if p.Impersonate != nil {
		t.RegisterPlugin(impersonate.New(p.Impersonate.Sender))
	}
	if p.AntiFlood != nil {
		t.RegisterPlugin(antiflood.New(p.AntiFlood.Threshold, p.AntiFlood.Sleep))
	}
	if p.Logger != nil {
		b.Logger = logger.New(l, p.Logger.Size)
		t.RegisterPlugin(b.Logger)
	}
	if p.Metrics != nil {
		t.RegisterPlugin(metrics.New(reg))
	}

	return nil
}
