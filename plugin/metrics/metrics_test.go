package metrics_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swiftmailer/swiftmailer-sub001/message"
	"github.com/swiftmailer/swiftmailer-sub001/plugin/metrics"
	"github.com/swiftmailer/swiftmailer-sub001/transport"
	"github.com/swiftmailer/swiftmailer-sub001/transport/event"
)

func TestPlugin(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	p := metrics.New(reg)

	null := transport.NewNull()
	null.RegisterPlugin(p)

	m := message.NewMessageWith(nil, "Hi", "Hello", "", "")
	require.NoError(t, m.SetFrom("alice@example.com"))
	require.NoError(t, m.SetTo("bob@example.com", "carol@example.com"))

	_, _, err := null.Send(context.Background(), m)
	require.NoError(t, err)

	evt := event.NewSendEvent(null, m)
	evt.Result = event.ResultTentative
	evt.FailedRecipients = []string{"carol@example.com"}
	p.SendPerformed(evt)

	var d event.Dispatcher
	d.Bind(p)
	_ = d.Throw(null, errors.New("boom"))
	d.TransportStarted(event.NewTransportChangeEvent(null))

	expected := `
# HELP swiftmail_messages_total Number of messages sent, by result.
# TYPE swiftmail_messages_total counter
swiftmail_messages_total{result="success"} 1
swiftmail_messages_total{result="tentative"} 1
# HELP swiftmail_recipients_total Number of recipients of sent messages, by whether they were accepted.
# TYPE swiftmail_recipients_total counter
swiftmail_recipients_total{result="accepted"} 3
swiftmail_recipients_total{result="refused"} 1
# HELP swiftmail_transport_errors_total Number of errors returned by transports.
# TYPE swiftmail_transport_errors_total counter
swiftmail_transport_errors_total 1
# HELP swiftmail_transport_changes_total Number of times transports were started and stopped.
# TYPE swiftmail_transport_changes_total counter
swiftmail_transport_changes_total{change="started"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected)))

	n, err := testutil.GatherAndCount(reg, "swiftmail_messages_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
