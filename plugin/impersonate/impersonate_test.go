package impersonate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swiftmailer/swiftmailer-sub001/message/header"
	"github.com/swiftmailer/swiftmailer-sub001/plugin/impersonate"
	"github.com/swiftmailer/swiftmailer-sub001/transport"
	"github.com/swiftmailer/swiftmailer-sub001/transport/event"
)

type msg struct {
	transport.Message
	h header.Header
}

func (m *msg) GetHeader() *header.Header { return &m.h }

func TestPlugin(t *testing.T) {
	t.Parallel()

	p := impersonate.New("bounces@example.com")

	m := &msg{}
	require.NoError(t, m.h.SetFrom("alice@example.com"))
	evt := event.NewSendEvent(nil, m)

	p.BeforeSendPerformed(evt)
	rp, err := transport.ReversePath(&m.h)
	require.NoError(t, err)
	assert.Equal(t, "bounces@example.com", rp)

	p.SendPerformed(evt)
	assert.False(t, m.h.Has(header.ReturnPath))

	require.NoError(t, m.h.SetReturnPath("owner@example.com"))
	p.BeforeSendPerformed(evt)
	rp, err = m.h.GetReturnPath()
	require.NoError(t, err)
	assert.Equal(t, "bounces@example.com", rp)

	p.SendPerformed(evt)
	rp, err = m.h.GetReturnPath()
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", rp)
	assert.False(t, m.h.Has(impersonate.OriginalReturnPath))
}
