package message

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/zostay/go-addr/pkg/addr"

	"github.com/swiftmailer/swiftmailer-sub001/message/header"
	"github.com/swiftmailer/swiftmailer-sub001/message/header/param"
	"github.com/swiftmailer/swiftmailer-sub001/message/transfer"
)

// Errors returned when an entity is given a bad value.
var (
	// ErrInvalidBoundary is returned by SetBoundary when the boundary does
	// not match the RFC 2046 boundary grammar.
	ErrInvalidBoundary = errors.New("boundary does not match the RFC 2046 grammar")

	// ErrInvalidID is returned by SetID when the id is not of the form
	// left@right.
	ErrInvalidID = errors.New("id is not of the form left@right")
)

var boundaryPattern = regexp.MustCompile(`^[A-Za-z0-9'()+_,\-./:=? ]{0,69}[A-Za-z0-9'()+_,\-./:=?]$`)

// alternativeOrder is the order preferred for the parts of a
// multipart/alternative, from least to most faithful.
var alternativeOrder = map[string]int{
	"text/plain":        1,
	"text/html":         2,
	"multipart/related": 3,
}

// Entity is a MIME entity: a header, a body, and any number of child
// entities. It may be the whole message, a text part, or an attachment.
//
// The children of an entity are arranged by their nesting level when they are
// set. Children at the shallowest level become the immediate children and the
// entity becomes the multipart type matching that level. Deeper children are
// grouped into a synthetic entity, which is placed first among the immediate
// children and arranged the same way.
//
// Rendering never changes the entity, so it may be rendered any number of
// times with the same result.
type Entity struct {
	cfg     *Config
	header  *header.Header
	encoder transfer.Encoder

	body       []byte
	bodyReader io.Reader

	level         Level
	maxLineLength int
	boundary      string
	id            string
	idField       string

	immediate []*Entity
	children  []*Entity

	// the content settings chosen by the user, kept so they can be restored
	// after the children are removed
	userContentType string
	charset         string
	format          string
	delSp           bool

	// boundaries for the synthetic entities made during rendering
	renderBoundaries []string

	observers header.Observers
}

// NewEntity returns an entity with the given header and encoder. A nil
// header is replaced with an empty one. A nil encoder is replaced with a
// quoted-printable encoder.
func NewEntity(cfg *Config, h *header.Header, enc transfer.Encoder) *Entity {
	cfg = cfg.orDefault()
	if h == nil {
		h = &header.Header{}
	}

	e := &Entity{
		cfg:           cfg,
		header:        h,
		level:         LevelTop,
		maxLineLength: cfg.MaxLineLength,
		idField:       header.ContentID,
	}

	h.DefineOrdering(header.ContentType, header.ContentTransferEncoding)
	h.ObserveChange(header.FieldChange{Kind: header.CharsetChanged, Value: cfg.Charset})

	if mt, err := h.GetMediaType(); err == nil {
		e.userContentType = mt
	}

	if enc == nil {
		enc = cfg.newQuotedPrintable(cfg.Charset)
	}
	e.SetEncoder(enc)

	return e
}

// CloneSkeleton returns a new entity with the same configuration and encoder
// as parent, whose header holds copies of only the Content-Type and
// Content-Transfer-Encoding fields of the parent. It does not modify parent.
func CloneSkeleton(parent *Entity) *Entity {
	h := &header.Header{}
	for _, name := range []string{header.ContentType, header.ContentTransferEncoding} {
		for _, f := range parent.header.GetAllFieldsNamed(name) {
			h.InsertField(h.Len(), f.Clone())
		}
	}

	e := &Entity{
		cfg:             parent.cfg,
		header:          h,
		encoder:         parent.encoder,
		level:           parent.level,
		maxLineLength:   parent.maxLineLength,
		idField:         header.ContentID,
		userContentType: parent.userContentType,
	}
	h.DefineOrdering(header.ContentType, header.ContentTransferEncoding)
	h.ObserveChange(header.FieldChange{Kind: header.CharsetChanged, Value: parent.header.Charset()})

	return e
}

// Config returns the configuration the entity was built with.
func (e *Entity) Config() *Config {
	return e.cfg
}

// GetHeader returns the header of the entity.
func (e *Entity) GetHeader() *header.Header {
	return e.header
}

// Level returns the nesting level.
func (e *Entity) Level() Level {
	return e.level
}

// SetLevel changes the nesting level. This only has an effect on a parent
// when its children are next set.
func (e *Entity) SetLevel(l Level) {
	e.level = l
}

// MaxLineLength returns the line length the body is encoded to.
func (e *Entity) MaxLineLength() int {
	return e.maxLineLength
}

// SetMaxLineLength changes the line length the body is encoded to.
func (e *Entity) SetMaxLineLength(n int) {
	e.maxLineLength = n
}

// ContentType returns the media type in the Content-Type field. This will be
// a multipart type when the entity has children.
func (e *Entity) ContentType() string {
	if mt, err := e.header.GetMediaType(); err == nil {
		return mt
	}
	return e.userContentType
}

// SetContentType sets the media type of the entity. While the entity has
// children, the multipart type chosen for them stays in the header and this
// media type is used again once the children are removed.
func (e *Entity) SetContentType(mt string) {
	e.userContentType = mt
	if len(e.immediate) == 0 {
		e.setContentTypeInHeader(mt)
	}
	e.notify(header.FieldChange{Kind: header.ContentTypeChanged, Value: mt})
}

func (e *Entity) setContentTypeInHeader(mt string) {
	if mt == "" {
		return
	}
	e.header.SetMediaType(mt)
}

// setTypeParam changes a Content-Type parameter, but never creates the field
// just to remove a parameter.
func (e *Entity) setTypeParam(p, v string) {
	if v == "" && !e.header.Has(header.ContentType) {
		return
	}
	e.header.SetContentTypeParam(p, v)
}

// Charset returns the charset set for the body of this entity.
func (e *Entity) Charset() string {
	return e.charset
}

// SetCharset sets the charset of the body. It updates the Content-Type
// charset parameter and tells the header, the encoder, and all the children
// about the change.
func (e *Entity) SetCharset(cs string) {
	e.charset = cs
	if len(e.immediate) == 0 {
		e.setTypeParam(param.Charset, cs)
	}
	e.notify(header.FieldChange{Kind: header.CharsetChanged, Value: cs})
}

// Format returns the format parameter of a text body, such as "flowed".
func (e *Entity) Format() string {
	return e.format
}

// SetFormat sets the format parameter of a text body.
func (e *Entity) SetFormat(f string) {
	e.format = f
	if len(e.immediate) == 0 {
		e.setTypeParam(param.Format, f)
	}
}

// DelSp returns true if the delsp=yes parameter is set.
func (e *Entity) DelSp() bool {
	return e.delSp
}

// SetDelSp turns the delsp=yes parameter of a flowed text body on or off.
func (e *Entity) SetDelSp(on bool) {
	e.delSp = on
	if len(e.immediate) == 0 {
		e.setTypeParam(param.DelSp, yesOrEmpty(on))
	}
}

func yesOrEmpty(on bool) string {
	if on {
		return "yes"
	}
	return ""
}

// Description returns the Content-Description.
func (e *Entity) Description() string {
	d, _ := e.header.Get(header.ContentDescription)
	return d
}

// SetDescription sets the Content-Description.
func (e *Entity) SetDescription(d string) {
	e.header.Set(header.ContentDescription, d)
}

// Encoder returns the content encoder.
func (e *Entity) Encoder() transfer.Encoder {
	return e.encoder
}

// SetEncoder replaces the content encoder and the Content-Transfer-Encoding
// that names it. Everything observing the entity is told of the change.
func (e *Entity) SetEncoder(enc transfer.Encoder) {
	e.encoder = enc
	e.header.SetTransferEncoding(enc.Name())
	e.notify(header.FieldChange{Kind: header.EncoderChanged, Value: enc})
}

// ID returns the unique id of the entity, generating it the first time.
func (e *Entity) ID() string {
	if e.id == "" {
		e.id = e.cfg.newToken() + "@" + e.cfg.idRight()
	}
	return e.id
}

// GenerateID replaces the id with a newly generated one and returns it.
func (e *Entity) GenerateID() string {
	e.id = ""
	id := e.ID()
	_ = e.SetID(id)
	return id
}

// SetID replaces the id and writes it to the Content-ID (or, for a message,
// the Message-ID) field. It returns ErrInvalidID if the id is not of the
// form left@right.
func (e *Entity) SetID(id string) error {
	if _, err := addr.ParseEmailAddrSpec(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	e.id = id
	if e.idField == header.MessageID {
		e.header.SetMessageID(id)
	} else {
		e.header.SetContentID(id)
	}
	return nil
}

// Boundary returns the multipart boundary, generating it the first time.
func (e *Entity) Boundary() string {
	if e.boundary == "" {
		e.boundary = "_=_swift_" + e.cfg.newToken() + "_=_"
	}
	return e.boundary
}

// SetBoundary replaces the multipart boundary. It returns ErrInvalidBoundary
// and keeps the old boundary if b does not match the RFC 2046 grammar.
func (e *Entity) SetBoundary(b string) error {
	if !boundaryPattern.MatchString(b) {
		return fmt.Errorf("%w: %q", ErrInvalidBoundary, b)
	}

	e.boundary = b
	if len(e.immediate) > 0 {
		e.header.SetBoundary(b)
	}
	return nil
}

// SetBody sets a literal body, replacing any streamed body.
func (e *Entity) SetBody(b []byte) {
	e.body = b
	e.bodyReader = nil
}

// SetBodyString sets a literal body, replacing any streamed body.
func (e *Entity) SetBodyString(s string) {
	e.SetBody([]byte(s))
}

// SetBodyReader sets a streamed body, replacing any literal body. A reader
// that is also an io.Seeker is rewound each time the entity is rendered.
// Any other reader is read into memory the first time it is needed.
func (e *Entity) SetBodyReader(r io.Reader) {
	e.bodyReader = r
	e.body = nil
}

// HasBody returns true if a literal or streamed body is set.
func (e *Entity) HasBody() bool {
	return e.body != nil || e.bodyReader != nil
}

// Body returns the body, before transfer encoding.
func (e *Entity) Body() ([]byte, error) {
	if e.bodyReader == nil {
		return e.body, nil
	}

	if s, ok := e.bodyReader.(io.ReadSeeker); ok {
		if _, err := s.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		return io.ReadAll(s)
	}

	if err := e.cacheBody(); err != nil {
		return nil, err
	}
	return e.body, nil
}

// cacheBody reads a streamed body that cannot be rewound into memory.
func (e *Entity) cacheBody() error {
	if e.bodyReader == nil {
		return nil
	}
	if _, ok := e.bodyReader.(io.Seeker); ok {
		return nil
	}

	b, err := io.ReadAll(e.bodyReader)
	if err != nil {
		return err
	}
	e.body = b
	e.bodyReader = nil
	return nil
}

// Observe registers an observer to be told of changes to the entity.
func (e *Entity) Observe(o header.Observer) {
	e.observers.Observe(o)
}

// ObserveChange passes a change announced by a parent on to everything
// observing this entity. A text entity adopts a new charset as its own,
// including the Content-Type charset parameter.
func (e *Entity) ObserveChange(c header.FieldChange) {
	if cs, ok := c.Value.(string); ok && c.Kind == header.CharsetChanged && e.charset != "" {
		e.SetCharset(cs)
		return
	}
	e.notify(c)
}

// notify tells the header, the encoder, the immediate children, and any
// registered observers about a change.
func (e *Entity) notify(c header.FieldChange) {
	var os header.Observers
	os.Observe(e.header)
	if o, ok := e.encoder.(header.Observer); ok {
		os.Observe(o)
	}
	for _, child := range e.immediate {
		os.Observe(child)
	}
	os.Notify(c)
	e.observers.Notify(c)
}

// Children returns the children as they were given to SetChildren.
func (e *Entity) Children() []*Entity {
	return append([]*Entity(nil), e.children...)
}

// ImmediateChildren returns the children rendered directly inside this
// entity, including any synthetic entity made to hold deeper children.
func (e *Entity) ImmediateChildren() []*Entity {
	return append([]*Entity(nil), e.immediate...)
}

// SetChildren replaces the children of the entity and arranges them.
//
// The children are grouped in a single pass, in the order given. The first
// child starts the immediate group. A child at the same level joins the
// group. A child at a shallower level moves the whole group to the deeper
// children and starts a new group. A child at a deeper level goes to the
// deeper children. If there are deeper children, they are put into a
// synthetic entity made with CloneSkeleton, which goes first among the
// immediate children.
//
// The Content-Type becomes the multipart type for the level of the immediate
// children. Setting no children restores the user's content type.
func (e *Entity) SetChildren(children ...*Entity) {
	e.setChildren(children, nil)
}

// setChildren arranges the children. If nextBoundary is not nil, it supplies
// the boundaries of synthetic entities.
func (e *Entity) setChildren(children []*Entity, nextBoundary func() string) {
	var immediate, deeper []*Entity
	for _, c := range children {
		if len(immediate) == 0 {
			immediate = []*Entity{c}
			continue
		}

		switch lvl := immediate[0].level; {
		case c.level == lvl:
			immediate = append(immediate, c)
		case c.level < lvl:
			deeper = append(deeper, immediate...)
			immediate = []*Entity{c}
		default:
			deeper = append(deeper, c)
		}
	}

	mediaType := e.userContentType
	if len(immediate) > 0 {
		lowest := immediate[0].level
		if mt := compositeMediaType(e.cfg.CompositeRanges, lowest); mt != "" {
			mediaType = mt
		}

		if len(deeper) > 0 {
			sub := CloneSkeleton(e)
			sub.level = lowest
			if nextBoundary != nil {
				sub.boundary = nextBoundary()
			}
			sub.setChildren(deeper, nextBoundary)
			immediate = append([]*Entity{sub}, immediate...)
		}
	}

	e.immediate = immediate
	e.children = append([]*Entity(nil), children...)
	e.setContentTypeInHeader(mediaType)
	e.fixHeaders()
	e.sortChildren()
}

// fixHeaders brings the Content-Type parameters in line with whether the
// entity has children.
func (e *Entity) fixHeaders() {
	if len(e.immediate) > 0 {
		e.header.SetBoundary(e.Boundary())
		e.setTypeParam(param.Charset, "")
		e.setTypeParam(param.Format, "")
		e.setTypeParam(param.DelSp, "")
		return
	}

	if e.header.Has(header.ContentType) {
		e.header.SetBoundary("")
	}
	if e.charset != "" {
		e.setTypeParam(param.Charset, e.charset)
	}
	if e.format != "" {
		e.setTypeParam(param.Format, e.format)
	}
	if e.delSp {
		e.setTypeParam(param.DelSp, "yes")
	}
}

// sortChildren puts the parts of an alternative in the preferred order.
func (e *Entity) sortChildren() {
	alternative := false
	for _, c := range e.immediate {
		if c.level == LevelSubpart {
			alternative = true
			break
		}
	}
	if !alternative {
		return
	}

	rank := func(c *Entity) int {
		if r, ok := alternativeOrder[strings.ToLower(c.ContentType())]; ok {
			return r
		}
		return len(alternativeOrder) + 1
	}

	sort.SliceStable(e.immediate, func(i, j int) bool {
		return rank(e.immediate[i]) < rank(e.immediate[j])
	})
}

// IsMultipart returns true if the entity has children.
func (e *Entity) IsMultipart() bool {
	return len(e.immediate) > 0
}

// IsEncoded always returns false. The reader returned by GetReader yields the
// body before transfer encoding.
func (e *Entity) IsEncoded() bool {
	return false
}

// GetReader returns a reader for the body before transfer encoding, or nil
// if the entity has children or no body.
func (e *Entity) GetReader() io.Reader {
	if len(e.immediate) > 0 || !e.HasBody() {
		return nil
	}

	b, err := e.Body()
	if err != nil {
		return nil
	}
	return bytes.NewReader(b)
}

// GetParts returns the immediate children.
func (e *Entity) GetParts() []Part {
	if len(e.immediate) == 0 {
		return nil
	}

	ps := make([]Part, len(e.immediate))
	for i, c := range e.immediate {
		ps[i] = c
	}
	return ps
}
