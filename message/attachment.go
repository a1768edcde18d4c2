package message

import (
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"

	"github.com/swiftmailer/swiftmailer-sub001/message/header"
	"github.com/swiftmailer/swiftmailer-sub001/message/header/param"
	"github.com/swiftmailer/swiftmailer-sub001/message/transfer"
)

// Presentation values for Content-Disposition.
const (
	DispositionAttachment = "attachment"
	DispositionInline     = "inline"
)

// DefaultAttachmentType is the media type of an attachment when none is
// given and none can be guessed.
const DefaultAttachmentType = "application/octet-stream"

// Attachment is a file attached to a message. It is base64 encoded by
// default and sits at the attachment level.
type Attachment struct {
	*Entity
}

// NewAttachment returns an attachment holding data. An empty content type is
// guessed from the extension of filename, falling back to
// application/octet-stream.
func NewAttachment(cfg *Config, data []byte, filename, contentType string) *Attachment {
	a := newAttachment(cfg, filename, contentType)
	a.SetBody(data)
	a.SetSize(len(data))
	return a
}

// AttachmentFromPath returns an attachment that streams the named file. The
// file stays open until Close is called.
func AttachmentFromPath(cfg *Config, path, contentType string) (*Attachment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	a := newAttachment(cfg, filepath.Base(path), contentType)
	a.SetBodyReader(f)
	if fi, err := f.Stat(); err == nil {
		a.SetSize(int(fi.Size()))
	}
	return a, nil
}

func newAttachment(cfg *Config, filename, contentType string) *Attachment {
	if contentType == "" {
		contentType = typeByFilename(filename)
	}

	a := &Attachment{
		Entity: NewEntity(cfg, &header.Header{}, transfer.NewBase64Encoder()),
	}
	a.SetLevel(LevelAttachment)
	a.SetContentType(contentType)
	a.SetDisposition(DispositionAttachment)
	if filename != "" {
		a.SetFilename(filename)
	}
	return a
}

func typeByFilename(filename string) string {
	if mt := mime.TypeByExtension(filepath.Ext(filename)); mt != "" {
		if mt, _, err := mime.ParseMediaType(mt); err == nil {
			return mt
		}
	}
	return DefaultAttachmentType
}

// Disposition returns the presentation, "attachment" or "inline".
func (a *Attachment) Disposition() string {
	d, _ := a.header.GetPresentation()
	return d
}

// SetDisposition sets the presentation.
func (a *Attachment) SetDisposition(d string) {
	a.header.SetPresentation(d)
}

// Filename returns the filename from Content-Disposition.
func (a *Attachment) Filename() string {
	f, _ := a.header.GetFilename()
	return f
}

// SetFilename sets the filename parameter of Content-Disposition and the
// name parameter of Content-Type.
func (a *Attachment) SetFilename(f string) {
	a.header.SetFilename(f)
	a.setTypeParam(param.Name, f)
}

// Size returns the size parameter of Content-Disposition, or -1.
func (a *Attachment) Size() int {
	pv, err := a.header.GetContentDisposition()
	if err != nil {
		return -1
	}
	n, err := strconv.Atoi(pv.Parameters()[param.Size])
	if err != nil {
		return -1
	}
	return n
}

// SetSize sets the size parameter of Content-Disposition.
func (a *Attachment) SetSize(n int) {
	a.header.SetDispositionParam(param.Size, strconv.Itoa(n))
}

// Close closes the file of an attachment made by AttachmentFromPath. It does
// nothing for other attachments.
func (a *Attachment) Close() error {
	if c, ok := a.bodyReader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// EmbeddedFile is a file displayed inline by the message, such as an image
// referenced from HTML by its cid: URL. It sits at the embedded level, so it
// is grouped with its HTML into a multipart/related.
type EmbeddedFile struct {
	*Attachment
}

// NewEmbeddedFile returns an inline file holding data.
func NewEmbeddedFile(cfg *Config, data []byte, filename, contentType string) *EmbeddedFile {
	f := &EmbeddedFile{Attachment: NewAttachment(cfg, data, filename, contentType)}
	f.initEmbedded()
	return f
}

// EmbeddedFileFromPath returns an inline file that streams the named file.
func EmbeddedFileFromPath(cfg *Config, path, contentType string) (*EmbeddedFile, error) {
	a, err := AttachmentFromPath(cfg, path, contentType)
	if err != nil {
		return nil, err
	}

	f := &EmbeddedFile{Attachment: a}
	f.initEmbedded()
	return f, nil
}

func (f *EmbeddedFile) initEmbedded() {
	f.SetLevel(LevelEmbedded)
	f.SetDisposition(DispositionInline)
	_ = f.SetID(f.ID())
}
