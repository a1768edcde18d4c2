// Package param handles parameterized header field bodies such as
// Content-Type and Content-Disposition, including RFC 2231 encoding of
// parameter values that are not plain ASCII.
package param
