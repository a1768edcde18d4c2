package event

// SendListener is told before and after every send.
type SendListener interface {
	BeforeSendPerformed(evt *SendEvent)
	SendPerformed(evt *SendEvent)
}

// CommandListener is told of every command written.
type CommandListener interface {
	CommandSent(evt *CommandEvent)
}

// ResponseListener is told of every response read.
type ResponseListener interface {
	ResponseReceived(evt *ResponseEvent)
}

// TransportChangeListener is told when a transport starts and stops.
type TransportChangeListener interface {
	BeforeTransportStarted(evt *TransportChangeEvent)
	TransportStarted(evt *TransportChangeEvent)
	BeforeTransportStopped(evt *TransportChangeEvent)
	TransportStopped(evt *TransportChangeEvent)
}

// TransportExceptionListener is told of every error a transport returns.
type TransportExceptionListener interface {
	ExceptionThrown(evt *TransportExceptionEvent)
}
