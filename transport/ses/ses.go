// Package ses sends messages through the Amazon SES v2 API as raw messages.
package ses

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/swiftmailer/swiftmailer-sub001/message/header"
	"github.com/swiftmailer/swiftmailer-sub001/transport"
	"github.com/swiftmailer/swiftmailer-sub001/transport/event"
)

// Default retry settings.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

// SendEmailAPI is the part of the SES v2 client used by the transport.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Config holds the settings for New.
type Config struct {
	Region string

	// AccessKeyID and SecretAccessKey are used when both are set. Otherwise
	// the default AWS credential chain applies.
	AccessKeyID     string
	SecretAccessKey string

	// ConfigurationSet names the SES configuration set to send with, if any.
	ConfigurationSet string
}

// Transport sends each message with one SendEmail call.
type Transport struct {
	client           SendEmailAPI
	configurationSet string
	maxRetries       int
	retryDelay       time.Duration
	logger           *slog.Logger

	events event.Dispatcher
}

var _ transport.Transport = (*Transport)(nil)

// Option configures a Transport.
type Option func(*Transport)

// WithRetries sets how many times a failed call is retried, waiting delay
// before the first retry and doubling it after each one.
func WithRetries(max int, delay time.Duration) Option {
	return func(t *Transport) {
		t.maxRetries = max
		t.retryDelay = delay
	}
}

// WithConfigurationSet sets the SES configuration set.
func WithConfigurationSet(name string) Option {
	return func(t *Transport) {
		t.configurationSet = name
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = l
	}
}

// New loads the AWS configuration and returns a transport using a new SES
// client.
func New(ctx context.Context, cfg Config, opts ...Option) (*Transport, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if cfg.ConfigurationSet != "" {
		opts = append([]Option{WithConfigurationSet(cfg.ConfigurationSet)}, opts...)
	}

	return NewWithClient(sesv2.NewFromConfig(awsCfg), opts...), nil
}

// NewWithClient returns a transport using client.
func NewWithClient(client SendEmailAPI, opts ...Option) *Transport {
	t := &Transport{
		client:     client,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// IsStarted always returns true.
func (t *Transport) IsStarted() bool { return true }

// Start does nothing.
func (t *Transport) Start(ctx context.Context) error { return nil }

// Stop does nothing.
func (t *Transport) Stop(ctx context.Context) error { return nil }

// Ping always returns true.
func (t *Transport) Ping(ctx context.Context) bool { return true }

// RegisterPlugin binds l to the events of the transport.
func (t *Transport) RegisterPlugin(l any) {
	t.events.Bind(l)
}

// Send renders msg without its Bcc field and hands it to SES along with
// every recipient. SES either accepts all of them or none.
func (t *Transport) Send(ctx context.Context, msg transport.Message) (int, []string, error) {
	evt := event.NewSendEvent(t, msg)
	t.events.BeforeSendPerformed(evt)
	if evt.BubbleCancelled() {
		return 0, nil, nil
	}

	h := msg.GetHeader()
	rp, err := transport.ReversePath(h)
	if err != nil {
		return 0, nil, t.events.Throw(t, err)
	}

	to := header.AddressesOf(transport.Addresses(h, header.To))
	cc := header.AddressesOf(transport.Addresses(h, header.Cc))
	bcc := header.AddressesOf(transport.Addresses(h, header.Bcc))
	total := len(to) + len(cc) + len(bcc)

	data, err := render(msg)
	if err != nil {
		return 0, nil, t.events.Throw(t, err)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(rp),
		Destination: &types.Destination{
			ToAddresses:  to,
			CcAddresses:  cc,
			BccAddresses: bcc,
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: data},
		},
	}
	if t.configurationSet != "" {
		input.ConfigurationSetName = aws.String(t.configurationSet)
	}

	out, err := t.send(ctx, input)
	if err != nil {
		evt.Result = event.ResultFailed
		evt.FailedRecipients = transport.Recipients(h)
		t.events.SendPerformed(evt)
		return 0, evt.FailedRecipients, t.events.Throw(t, transport.WrapError("ses", err))
	}

	t.logger.Info("message sent through SES", "message_id", aws.ToString(out.MessageId), "recipients", total)

	evt.Result = event.ResultSuccess
	t.events.SendPerformed(evt)

	return total, nil, nil
}

func render(msg transport.Message) ([]byte, error) {
	restore := msg.GetHeader().Detach(header.Bcc)
	defer restore()

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *Transport) send(ctx context.Context, input *sesv2.SendEmailInput) (*sesv2.SendEmailOutput, error) {
	var lastErr error
	delay := t.retryDelay
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			t.logger.Debug("retrying SES request", "attempt", attempt, "max_retries", t.maxRetries)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
		}

		out, err := t.client.SendEmail(ctx, input)
		if err == nil {
			return out, nil
		}

		lastErr = err
		t.logger.Warn("SES request failed", "attempt", attempt, "error", err)
	}

	return nil, fmt.Errorf("SES request failed after %d retries: %w", t.maxRetries, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
