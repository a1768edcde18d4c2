// Package metrics counts sends and transport errors as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/swiftmailer/swiftmailer-sub001/transport"
	"github.com/swiftmailer/swiftmailer-sub001/transport/event"
)

// Plugin updates its metrics as events arrive.
type Plugin struct {
	messages   *prometheus.CounterVec
	recipients *prometheus.CounterVec
	errors     prometheus.Counter
	changes    *prometheus.CounterVec
}

// New returns a Plugin whose metrics are registered with reg.
func New(reg prometheus.Registerer) *Plugin {
	f := promauto.With(reg)
	return &Plugin{
		messages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swiftmail_messages_total",
				Help: "Number of messages sent, by result.",
			},
			[]string{"result"},
		),
		recipients: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swiftmail_recipients_total",
				Help: "Number of recipients of sent messages, by whether they were accepted.",
			},
			[]string{"result"},
		),
		errors: f.NewCounter(
			prometheus.CounterOpts{
				Name: "swiftmail_transport_errors_total",
				Help: "Number of errors returned by transports.",
			},
		),
		changes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swiftmail_transport_changes_total",
				Help: "Number of times transports were started and stopped.",
			},
			[]string{"change"},
		),
	}
}

// BeforeSendPerformed does nothing.
func (p *Plugin) BeforeSendPerformed(evt *event.SendEvent) {}

// SendPerformed counts the message and its recipients.
func (p *Plugin) SendPerformed(evt *event.SendEvent) {
	p.messages.WithLabelValues(evt.Result.String()).Inc()

	switch evt.Result {
	case event.ResultSuccess, event.ResultTentative:
		total := len(transport.Recipients(evt.Message.GetHeader()))
		failed := len(evt.FailedRecipients)
		if accepted := total - failed; accepted > 0 {
			p.recipients.WithLabelValues("accepted").Add(float64(accepted))
		}
		p.recipients.WithLabelValues("refused").Add(float64(failed))
	case event.ResultFailed:
		p.recipients.WithLabelValues("refused").Add(float64(len(evt.FailedRecipients)))
	}
}

// ExceptionThrown counts the error.
func (p *Plugin) ExceptionThrown(evt *event.TransportExceptionEvent) {
	p.errors.Inc()
}

// BeforeTransportStarted does nothing.
func (p *Plugin) BeforeTransportStarted(evt *event.TransportChangeEvent) {}

// TransportStarted counts the start.
func (p *Plugin) TransportStarted(evt *event.TransportChangeEvent) {
	p.changes.WithLabelValues("started").Inc()
}

// BeforeTransportStopped does nothing.
func (p *Plugin) BeforeTransportStopped(evt *event.TransportChangeEvent) {}

// TransportStopped counts the stop.
func (p *Plugin) TransportStopped(evt *event.TransportChangeEvent) {
	p.changes.WithLabelValues("stopped").Inc()
}
