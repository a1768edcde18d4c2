// Package swiftmail is a library for building and sending email.
//
// Messages are built as a tree of MIME entities in the message package. Each
// entity owns its header and content encoder, and the tree works out for
// itself which multipart types and boundaries it needs when it is rendered.
// Messages read back in, such as those held in a spool, are parsed into
// message.Opaque and message.Multipart parts that render exactly as read.
//
// The transport package and its subpackages deliver messages. The esmtp
// package drives an SMTP conversation over a byte channel from the iobuffer
// package, with extensions such as AUTH and PIPELINING provided by handlers
// keyed on their EHLO keyword. The sendmail, ses, and spool packages deliver
// through a local MTA, Amazon SES, or a queue flushed later. Failover and
// LoadBalanced combine other transports.
//
// Every transport raises the events in transport/event, which the plugins
// under plugin listen for. The config package builds all of this from a YAML
// file, and cmd/swiftmail puts it on the command line.
package swiftmail
