package esmtp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ResponseError is returned when the server answers a command with a code
// that was not expected.
type ResponseError struct {
	// Command is the command answered, without its line break. It is empty
	// for the greeting.
	Command string

	// Expected lists the codes that would have been accepted.
	Expected []int

	// Code is the code received, or 0 for an empty response.
	Code int

	// Response is the full response, without the final line break.
	Response string
}

// Error describes the response and what was expected instead.
func (e *ResponseError) Error() string {
	want := make([]string, len(e.Expected))
	for i, c := range e.Expected {
		want[i] = strconv.Itoa(c)
	}

	if e.Response == "" {
		return fmt.Sprintf("expected response code %s but got an empty response", strings.Join(want, "/"))
	}
	return fmt.Sprintf("expected response code %s but got code %d, with message %q",
		strings.Join(want, "/"), e.Code, e.Response)
}

// IsTransient returns true for a 4xx code.
func (e *ResponseError) IsTransient() bool {
	return e.Code >= 400 && e.Code < 500
}

// IsPermanent returns true for a 5xx code.
func (e *ResponseError) IsPermanent() bool {
	return e.Code >= 500 && e.Code < 600
}

// responseCode returns the code at the start of a response, or 0.
func responseCode(resp string) int {
	if len(resp) < 3 {
		return 0
	}
	code, err := strconv.Atoi(resp[:3])
	if err != nil {
		return 0
	}
	return code
}

// validCode returns true if code is one of codes or codes is empty.
func validCode(code int, codes []int) bool {
	if len(codes) == 0 {
		return true
	}
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

var capabilityLine = regexp.MustCompile(`(?i)^[0-9]{3}[ -]([A-Z0-9-]+)((?:[ =].*)?)$`)

// parseCapabilities reads the keywords and parameters from an EHLO response.
// The first line names the server and is skipped. Keywords and parameters are
// uppercased.
func parseCapabilities(resp string) map[string][]string {
	caps := map[string][]string{}

	resp = strings.ReplaceAll(resp, "\r\n", "\n")
	lines := strings.Split(strings.TrimSpace(resp), "\n")
	for _, line := range lines[1:] {
		m := capabilityLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}

		keyword := strings.ToUpper(m[1])
		ps := strings.ToUpper(strings.TrimLeft(m[2], " ="))
		if ps == "" {
			caps[keyword] = []string{}
		} else {
			caps[keyword] = strings.Split(ps, " ")
		}
	}

	return caps
}
