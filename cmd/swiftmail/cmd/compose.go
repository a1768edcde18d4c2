package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/swiftmailer/swiftmailer-sub001/message"
	"github.com/swiftmailer/swiftmailer-sub001/transport"
)

// composeOptions describe a message given on the command line.
type composeOptions struct {
	file        string
	from        []string
	to          []string
	cc          []string
	bcc         []string
	subject     string
	body        string
	bodyFile    string
	contentType string
	attach      []string
}

func (o *composeOptions) addFlags(c *cobra.Command) {
	c.Flags().StringVarP(&o.file, "file", "f", "", "use the message in this file as is (- for stdin)")
	c.Flags().StringSliceVar(&o.from, "from", nil, "From addresses")
	c.Flags().StringSliceVar(&o.to, "to", nil, "To addresses")
	c.Flags().StringSliceVar(&o.cc, "cc", nil, "Cc addresses")
	c.Flags().StringSliceVar(&o.bcc, "bcc", nil, "Bcc addresses")
	c.Flags().StringVarP(&o.subject, "subject", "s", "", "subject")
	c.Flags().StringVarP(&o.body, "body", "b", "", "body text")
	c.Flags().StringVar(&o.bodyFile, "body-file", "", "read the body from this file (- for stdin)")
	c.Flags().StringVar(&o.contentType, "content-type", "text/plain", "media type of the body")
	c.Flags().StringSliceVarP(&o.attach, "attach", "a", nil, "files to attach")
}

func readInput(c *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(c.InOrStdin())
	}
	return os.ReadFile(path)
}

func anys(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// compose returns the message described by the flags.
func (o *composeOptions) compose(c *cobra.Command, cfg *message.Config) (transport.Message, error) {
	if o.file != "" {
		raw, err := readInput(c, o.file)
		if err != nil {
			return nil, err
		}
		return message.Parse(bytes.NewReader(raw))
	}

	body := o.body
	if o.bodyFile != "" {
		raw, err := readInput(c, o.bodyFile)
		if err != nil {
			return nil, err
		}
		body = string(raw)
	}

	m := message.NewMessageWith(cfg, o.subject, body, o.contentType, "")

	set := []struct {
		name  string
		set   func(...any) error
		addrs []string
	}{
		{"from", m.SetFrom, o.from},
		{"to", m.SetTo, o.to},
		{"cc", m.SetCc, o.cc},
		{"bcc", m.SetBcc, o.bcc},
	}
	for _, s := range set {
		if len(s.addrs) == 0 {
			continue
		}
		if err := s.set(anys(s.addrs)...); err != nil {
			return nil, fmt.Errorf("--%s: %w", s.name, err)
		}
	}

	for _, path := range o.attach {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		m.Attach(message.NewAttachment(cfg, data, filepath.Base(path), ""))
	}

	return m, nil
}
