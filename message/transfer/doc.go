// Package transfer holds the content encoders that turn an entity body into
// the form named by its Content-Transfer-Encoding: base64, quoted-printable,
// and the 7bit, 8bit, and binary passthrough encodings. Each Encoder works on
// a whole byte slice or as a streaming writer and keeps its output within a
// maximum line length.
//
// The package also keeps the table of decoders used to read transfer encoded
// content back into its raw form.
package transfer
