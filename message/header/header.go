package header

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/zostay/go-addr/pkg/addr"

	"github.com/swiftmailer/swiftmailer-sub001/message/header/field"
	"github.com/swiftmailer/swiftmailer-sub001/message/header/param"
)

// Errors returned by various header methods and functions.
var (
	// ErrNoSuchField is returned by Header methods when the operation
	// being performed failed because the header named does not exist.
	ErrNoSuchField = errors.New("no such header field")

	// ErrNoSuchFieldParameter is returned by Header methods when the
	// operation being performed failed because the header exists, but a
	// sub-field of the header does not exist.
	ErrNoSuchFieldParameter = errors.New("no such header field parameter")

	// ErrManyFields is returned by Header methods when the operation
	// being performed failed because there are multiple fields with the
	// given name.
	ErrManyFields = errors.New("many header fields found")

	// ErrWrongAddressType is returned by address setting methods that accept
	// either a string or an addr.Address when something other than those
	// types is provided.
	ErrWrongAddressType = errors.New("incorrect address type during write")
)

// Standard header field names.
const (
	Bcc                       = "Bcc"
	Cc                        = "Cc"
	Comments                  = "Comments"
	ContentDescription        = "Content-Description"
	ContentDisposition        = "Content-Disposition"
	ContentID                 = "Content-ID"
	ContentTransferEncoding   = "Content-Transfer-Encoding"
	ContentType               = "Content-Type"
	Date                      = "Date"
	DispositionNotificationTo = "Disposition-Notification-To"
	From                      = "From"
	InReplyTo                 = "In-Reply-To"
	Keywords                  = "Keywords"
	MessageID                 = "Message-ID"
	MIMEVersion               = "MIME-Version"
	References                = "References"
	ReplyTo                   = "Reply-To"
	ReturnPath                = "Return-Path"
	Sender                    = "Sender"
	Subject                   = "Subject"
	To                        = "To"
	XPriority                 = "X-Priority"
)

// DefaultCharset is the charset assumed when none has been set.
const DefaultCharset = field.DefaultCharset

// UnixDateWithEarlyYear is a date layout seen in the wild that the usual
// parsers have trouble with.
const UnixDateWithEarlyYear = "Mon Jan 02 15:04:05 2006 MST"

// Header is the header set of a message or message part. It wraps a Base,
// which does the storage, and adds typed accessors with a cache of the
// structured values parsed from or written to fields.
//
// The getters return ErrNoSuchField if the field has not been set.
type Header struct {
	Base

	// valueCache holds parsed values keyed by lowercase field name. Only
	// immutable values may be stored here.
	valueCache map[string]any
}

// Clone returns a deep copy of the header.
func (h *Header) Clone() *Header {
	vc := make(map[string]any, len(h.valueCache))
	for k, v := range h.valueCache {
		vc[k] = v
	}

	return &Header{
		Base:       *h.Base.Clone(),
		valueCache: vc,
	}
}

func (h *Header) getValue(name string) (any, bool) {
	v, found := h.valueCache[strings.ToLower(name)]
	return v, found
}

func (h *Header) setValue(name string, value any) {
	if h.valueCache == nil {
		h.valueCache = make(map[string]any, h.Len())
	}
	h.valueCache[strings.ToLower(name)] = value
}

func (h *Header) clearValue(name string) {
	delete(h.valueCache, strings.ToLower(name))
}

// Get retrieves the body of the named field.
//
// It returns ErrNoSuchField if the field is not set. If the field is set more
// than once, it returns the first body along with ErrManyFields.
func (h *Header) Get(name string) (string, error) {
	ixs := h.GetIndexesNamed(name)
	if len(ixs) == 0 {
		return "", ErrNoSuchField
	}

	b := h.GetField(ixs[0]).Body()
	if len(ixs) > 1 {
		return b, ErrManyFields
	}

	return b, nil
}

// GetAll returns the bodies of all fields with the given name, or
// ErrNoSuchField if there are none.
func (h *Header) GetAll(name string) ([]string, error) {
	fs := h.GetAllFieldsNamed(name)
	if len(fs) == 0 {
		return nil, ErrNoSuchField
	}

	bs := make([]string, len(fs))
	for i, f := range fs {
		bs[i] = f.Body()
	}
	return bs, nil
}

// Set replaces all fields with the given name by a single field. If the field
// already exists, the first occurrence keeps its position and the rest are
// deleted. Otherwise the field is appended.
func (h *Header) Set(name, body string) {
	h.set(name, body, false)
}

// SetStructured works like Set, but the body is already in wire form and will
// not be encoded.
func (h *Header) SetStructured(name, body string) {
	h.set(name, body, true)
}

func (h *Header) set(name, body string, structured bool) {
	h.clearValue(name)

	ixs := h.GetIndexesNamed(name)
	if len(ixs) == 0 {
		f := field.New(name, body)
		if structured {
			f = field.NewStructured(name, body)
		}
		h.InsertField(h.Len(), f)
		return
	}

	for i := len(ixs) - 1; i > 0; i-- {
		_ = h.DeleteField(ixs[i])
	}

	f := h.GetField(ixs[0])
	f.SetName(name)
	if structured {
		f.SetStructuredBody(body)
	} else {
		f.SetBody(body)
	}
}

// SetAll replaces the fields with the given name so that there is one per
// body given. Existing fields are reused in place and extra ones are appended.
func (h *Header) SetAll(name string, bodies ...string) {
	h.clearValue(name)

	ixs := h.GetIndexesNamed(name)
	for i, b := range bodies {
		if i < len(ixs) {
			h.GetField(ixs[i]).SetBody(b)
			continue
		}
		h.InsertBeforeField(h.Len(), name, b)
	}

	for i := len(ixs) - 1; i >= len(bodies); i-- {
		_ = h.DeleteField(ixs[i])
	}
}

// Delete removes every field with the given name.
func (h *Header) Delete(name string) {
	h.clearValue(name)

	ixs := h.GetIndexesNamed(name)
	for i := len(ixs) - 1; i >= 0; i-- {
		_ = h.DeleteField(ixs[i])
	}
}

// ParseTime parses a date the way GetTime does: RFC 5322 first, then a wide
// range of other formats.
func ParseTime(body string) (time.Time, error) {
	t, err := mail.ParseDate(body)
	if err == nil {
		return t, nil
	}

	t, err = dateparse.ParseAny(body)
	if err == nil {
		return t, nil
	}

	t, err = time.Parse(UnixDateWithEarlyYear, body)
	if err == nil {
		return t, nil
	}

	return t, fmt.Errorf("time string %q cannot be parsed", body)
}

// GetTime returns the named field parsed as a date.
func (h *Header) GetTime(name string) (time.Time, error) {
	if v, found := h.getValue(name); found {
		if t, isTime := v.(time.Time); isTime {
			return t, nil
		}
	}

	body, err := h.Get(name)
	if err != nil {
		return time.Time{}, err
	}

	t, err := ParseTime(body)
	if err != nil {
		return t, err
	}

	h.setValue(name, t)
	return t, nil
}

// SetTime replaces the named field with a date formatted per RFC 5322.
func (h *Header) SetTime(name string, body time.Time) {
	h.Set(name, body.Format(time.RFC1123Z))
	h.setValue(name, body)
}

// ParseAddressList parses an address list strictly and, if that fails, falls
// back on a lenient parser that will return something for any input.
func ParseAddressList(body string) addr.AddressList {
	al, err := addr.ParseEmailAddressList(body)
	if err != nil {
		al = parseEmailAddressList(body)
	}
	return al
}

// GetAddressList returns the named field as an addr.AddressList.
func (h *Header) GetAddressList(name string) (addr.AddressList, error) {
	if v, found := h.getValue(name); found {
		if al, isAL := v.(addr.AddressList); isAL {
			return al, nil
		}
	}

	body, err := h.Get(name)
	if err != nil {
		return nil, err
	}

	al := ParseAddressList(body)
	h.setValue(name, al)
	return al, nil
}

// SetAddressList replaces the named field with the given addresses. Display
// names that are not plain ASCII are written as encoded-words.
func (h *Header) SetAddressList(name string, body ...addr.Address) {
	parts := make([]string, len(body))
	for i, a := range body {
		parts[i] = formatAddress(h.charset, a)
	}

	h.SetStructured(name, strings.Join(parts, ", "))
	h.setValue(name, addr.AddressList(body))
}

// setAddress accepts strings or addr.Address values.
func (h *Header) setAddress(name string, as []any) error {
	al := make(addr.AddressList, 0, len(as))
	for _, a := range as {
		switch v := a.(type) {
		case string:
			add, err := addr.ParseEmailAddress(v)
			if err != nil {
				return err
			}
			al = append(al, add)
		case addr.Address:
			al = append(al, v)
		case addr.AddressList:
			al = append(al, v...)
		default:
			return ErrWrongAddressType
		}
	}

	h.SetAddressList(name, al...)
	return nil
}

// GetParamValue returns the named field parsed as a param.Value. The value
// returned is a copy.
func (h *Header) GetParamValue(name string) (*param.Value, error) {
	if v, found := h.getValue(name); found {
		if pv, isPV := v.(*param.Value); isPV {
			return pv.Clone(), nil
		}
	}

	body, err := h.Get(name)
	if err != nil {
		return nil, err
	}

	pv, err := param.Parse(body)
	if err != nil {
		return nil, err
	}

	h.setValue(name, pv)
	return pv.Clone(), nil
}

// SetParamValue replaces the named field with the given param.Value.
func (h *Header) SetParamValue(name string, body *param.Value) {
	h.SetStructured(name, body.String())
	h.setValue(name, body.Clone())
}

// modifyParamValue applies the given changes to the named param.Value field,
// creating it with the given default primary value if it is missing.
func (h *Header) modifyParamValue(name, def string, changes ...param.Modifier) {
	pv, err := h.GetParamValue(name)
	if err != nil || pv == nil {
		pv = param.New(def, nil)
	}
	h.SetParamValue(name, param.Modify(pv, changes...))
}

func (h *Header) getParam(name, p string) (string, error) {
	pv, err := h.GetParamValue(name)
	if err != nil {
		return "", err
	}

	if v, ok := pv.Parameters()[p]; ok {
		return v, nil
	}
	return "", ErrNoSuchFieldParameter
}

// GetContentType returns Content-Type as a param.Value.
func (h *Header) GetContentType() (*param.Value, error) {
	return h.GetParamValue(ContentType)
}

// SetContentType replaces Content-Type.
func (h *Header) SetContentType(v *param.Value) {
	h.SetParamValue(ContentType, v)
}

// GetMediaType returns the media type from Content-Type without parameters.
func (h *Header) GetMediaType() (string, error) {
	pv, err := h.GetContentType()
	if err != nil {
		return "", err
	}
	return pv.MediaType(), nil
}

// SetMediaType changes the media type of Content-Type, keeping any
// parameters already set.
func (h *Header) SetMediaType(mt string) {
	h.modifyParamValue(ContentType, mt, param.Change(mt))
}

// GetCharset returns the charset parameter of Content-Type.
func (h *Header) GetCharset() (string, error) {
	return h.getParam(ContentType, param.Charset)
}

// SetCharset sets the charset parameter of Content-Type. An empty string
// removes it.
func (h *Header) SetCharset(c string) {
	if c == "" {
		h.modifyParamValue(ContentType, "text/plain", param.Delete(param.Charset))
		return
	}
	h.modifyParamValue(ContentType, "text/plain", param.Set(param.Charset, c))
}

// GetBoundary returns the boundary parameter of Content-Type.
func (h *Header) GetBoundary() (string, error) {
	return h.getParam(ContentType, param.Boundary)
}

// SetBoundary sets the boundary parameter of Content-Type. An empty string
// removes it.
func (h *Header) SetBoundary(b string) {
	if b == "" {
		h.modifyParamValue(ContentType, "multipart/mixed", param.Delete(param.Boundary))
		return
	}
	h.modifyParamValue(ContentType, "multipart/mixed", param.Set(param.Boundary, b))
}

// GetContentTypeParam returns any parameter of Content-Type.
func (h *Header) GetContentTypeParam(p string) (string, error) {
	return h.getParam(ContentType, p)
}

// SetContentTypeParam sets (or, given an empty value, removes) a parameter
// of Content-Type.
func (h *Header) SetContentTypeParam(p, v string) {
	if v == "" {
		h.modifyParamValue(ContentType, "text/plain", param.Delete(p))
		return
	}
	h.modifyParamValue(ContentType, "text/plain", param.Set(p, v))
}

// GetContentDisposition returns Content-Disposition as a param.Value.
func (h *Header) GetContentDisposition() (*param.Value, error) {
	return h.GetParamValue(ContentDisposition)
}

// SetContentDisposition replaces Content-Disposition.
func (h *Header) SetContentDisposition(v *param.Value) {
	h.SetParamValue(ContentDisposition, v)
}

// GetPresentation returns the disposition, "inline" or "attachment".
func (h *Header) GetPresentation() (string, error) {
	pv, err := h.GetContentDisposition()
	if err != nil {
		return "", err
	}
	return pv.Disposition(), nil
}

// SetPresentation sets the disposition, keeping any parameters.
func (h *Header) SetPresentation(d string) {
	h.modifyParamValue(ContentDisposition, d, param.Change(d))
}

// GetFilename returns the filename parameter of Content-Disposition.
func (h *Header) GetFilename() (string, error) {
	return h.getParam(ContentDisposition, param.Filename)
}

// SetFilename sets the filename parameter of Content-Disposition.
func (h *Header) SetFilename(f string) {
	h.modifyParamValue(ContentDisposition, "attachment", param.Set(param.Filename, f))
}

// SetDispositionParam sets (or, given an empty value, removes) a parameter
// of Content-Disposition.
func (h *Header) SetDispositionParam(p, v string) {
	if v == "" {
		h.modifyParamValue(ContentDisposition, "attachment", param.Delete(p))
		return
	}
	h.modifyParamValue(ContentDisposition, "attachment", param.Set(p, v))
}

// GetDate returns the Date field.
func (h *Header) GetDate() (time.Time, error) {
	return h.GetTime(Date)
}

// SetDate replaces the Date field.
func (h *Header) SetDate(d time.Time) {
	h.SetTime(Date, d)
}

// GetSubject returns the Subject field.
func (h *Header) GetSubject() (string, error) {
	return h.Get(Subject)
}

// SetSubject replaces the Subject field.
func (h *Header) SetSubject(s string) {
	h.Set(Subject, s)
}

// GetTo returns the To field.
func (h *Header) GetTo() (addr.AddressList, error) {
	return h.GetAddressList(To)
}

// SetTo replaces the To field. Each argument may be a string, an
// addr.Address or an addr.AddressList. Strings are parsed strictly.
func (h *Header) SetTo(a ...any) error {
	return h.setAddress(To, a)
}

// GetCc returns the Cc field.
func (h *Header) GetCc() (addr.AddressList, error) {
	return h.GetAddressList(Cc)
}

// SetCc replaces the Cc field. See SetTo for the accepted types.
func (h *Header) SetCc(a ...any) error {
	return h.setAddress(Cc, a)
}

// GetBcc returns the Bcc field.
func (h *Header) GetBcc() (addr.AddressList, error) {
	return h.GetAddressList(Bcc)
}

// SetBcc replaces the Bcc field. See SetTo for the accepted types.
func (h *Header) SetBcc(a ...any) error {
	return h.setAddress(Bcc, a)
}

// GetFrom returns the From field.
func (h *Header) GetFrom() (addr.AddressList, error) {
	return h.GetAddressList(From)
}

// SetFrom replaces the From field. See SetTo for the accepted types.
func (h *Header) SetFrom(a ...any) error {
	return h.setAddress(From, a)
}

// GetReplyTo returns the Reply-To field.
func (h *Header) GetReplyTo() (addr.AddressList, error) {
	return h.GetAddressList(ReplyTo)
}

// SetReplyTo replaces the Reply-To field. See SetTo for the accepted types.
func (h *Header) SetReplyTo(a ...any) error {
	return h.setAddress(ReplyTo, a)
}

// GetSender returns the Sender field.
func (h *Header) GetSender() (addr.AddressList, error) {
	return h.GetAddressList(Sender)
}

// SetSender replaces the Sender field. See SetTo for the accepted types.
func (h *Header) SetSender(a ...any) error {
	return h.setAddress(Sender, a)
}

// GetReturnPath returns the address in the Return-Path field without the
// angle brackets.
func (h *Header) GetReturnPath() (string, error) {
	b, err := h.Get(ReturnPath)
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(b), "<>"), nil
}

// SetReturnPath replaces the Return-Path field. The address must be an
// addr-spec or empty (for the null reverse path).
func (h *Header) SetReturnPath(a string) error {
	if a != "" {
		if _, err := addr.ParseEmailAddrSpec(a); err != nil {
			return err
		}
	}
	h.SetStructured(ReturnPath, "<"+a+">")
	return nil
}

// GetKeywords returns the keywords from all Keywords fields.
func (h *Header) GetKeywords() ([]string, error) {
	bs, err := h.GetAll(Keywords)
	if err != nil {
		return nil, err
	}

	ks := make([]string, 0, len(bs)*2)
	for _, b := range bs {
		for _, k := range strings.Split(b, ",") {
			if k = strings.TrimSpace(k); k != "" {
				ks = append(ks, k)
			}
		}
	}
	return ks, nil
}

// SetKeywords replaces all Keywords fields with a single one.
func (h *Header) SetKeywords(ks ...string) {
	h.Set(Keywords, strings.Join(ks, ", "))
}

// GetMessageID returns the Message-ID without the angle brackets.
func (h *Header) GetMessageID() (string, error) {
	return h.getID(MessageID)
}

// SetMessageID replaces the Message-ID. The id is given without brackets.
func (h *Header) SetMessageID(id string) {
	h.SetStructured(MessageID, "<"+id+">")
}

// GetContentID returns the Content-ID without the angle brackets.
func (h *Header) GetContentID() (string, error) {
	return h.getID(ContentID)
}

// SetContentID replaces the Content-ID. The id is given without brackets.
func (h *Header) SetContentID(id string) {
	h.SetStructured(ContentID, "<"+id+">")
}

func (h *Header) getID(name string) (string, error) {
	b, err := h.Get(name)
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(b), "<>"), nil
}

// GetTransferEncoding returns the Content-Transfer-Encoding, lowercased.
func (h *Header) GetTransferEncoding() (string, error) {
	b, err := h.Get(ContentTransferEncoding)
	return strings.ToLower(strings.TrimSpace(b)), err
}

// SetTransferEncoding replaces the Content-Transfer-Encoding.
func (h *Header) SetTransferEncoding(b string) {
	h.Set(ContentTransferEncoding, b)
}

// Detach removes every field with the given name and returns a function that
// puts those same fields back at their original positions. Fields of that name
// added in the meantime are dropped by the restore.
func (h *Header) Detach(name string) (restore func()) {
	h.clearValue(name)

	ixs := h.GetIndexesNamed(name)
	fs := make([]*field.Field, len(ixs))
	for i := len(ixs) - 1; i >= 0; i-- {
		fs[i] = h.GetField(ixs[i])
		_ = h.DeleteField(ixs[i])
	}

	return func() {
		h.Delete(name)
		for i, ix := range ixs {
			h.InsertField(ix, fs[i])
		}
	}
}
