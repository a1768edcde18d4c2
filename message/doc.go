// Package message builds and parses email messages.
//
// New messages are built from entities. A Message is the top-level entity.
// Text alternatives are added with AddPart, files with Attach, and inline
// files with Embed. The nesting of multipart/mixed, multipart/related, and
// multipart/alternative parts follows from the level of each child, so the
// caller never builds the multipart structure by hand:
//
//	m := message.NewMessageWith(nil, "Hello", "Hello *World*!", "", "")
//	_ = m.SetFrom("alice@example.com")
//	_ = m.SetTo("bob@example.com")
//	m.AddPart("Hello <b>World</b>!", "text/html", "")
//	_, err := m.WriteTo(w)
//
// Existing messages are read with Parse, which returns an *Opaque or, for a
// multipart message, a *Multipart holding the parsed parts. Both write back
// out exactly what was read, so a parsed message can be changed in small
// ways and passed along.
//
// Everything here satisfies Part, which is what the walker package and the
// transports work with.
package message
