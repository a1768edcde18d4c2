package header

// ChangeKind identifies what changed in a FieldChange.
type ChangeKind int

// The kinds of change an entity announces to its observers.
const (
	// CharsetChanged carries the new charset name as a string.
	CharsetChanged ChangeKind = iota + 1

	// EncoderChanged carries the new content encoder.
	EncoderChanged

	// ContentTypeChanged carries the new media type as a string.
	ContentTypeChanged
)

// String returns the name of the kind.
func (k ChangeKind) String() string {
	switch k {
	case CharsetChanged:
		return "charset"
	case EncoderChanged:
		return "encoder"
	case ContentTypeChanged:
		return "content-type"
	}
	return "unknown"
}

// FieldChange is a notification that some property of an entity changed.
type FieldChange struct {
	Kind  ChangeKind
	Value any
}

// Observer receives FieldChange notifications.
type Observer interface {
	ObserveChange(c FieldChange)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(c FieldChange)

// ObserveChange calls f(c).
func (f ObserverFunc) ObserveChange(c FieldChange) {
	f(c)
}

// Observers is a list of registered observers. Every observer is notified of
// every change, in the order they were registered.
type Observers struct {
	list []Observer
}

// Observe registers another observer.
func (os *Observers) Observe(o Observer) {
	os.list = append(os.list, o)
}

// Len returns the number of registered observers.
func (os *Observers) Len() int {
	return len(os.list)
}

// Notify passes the change to every registered observer.
func (os *Observers) Notify(c FieldChange) {
	for _, o := range os.list {
		o.ObserveChange(c)
	}
}

// ObserveChange applies charset changes to every field of the header and to
// any field added later. Other kinds of change do not concern the header.
func (h *Header) ObserveChange(c FieldChange) {
	if c.Kind != CharsetChanged {
		return
	}

	cs, _ := c.Value.(string)
	h.charset = cs
	for _, f := range h.fields {
		f.SetCharset(cs)
	}
}
