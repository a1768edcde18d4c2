package esmtp

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

// Errors returned while authenticating.
var (
	// ErrNoAuthenticator is returned by Start when credentials are set but
	// the server supports none of the configured mechanisms.
	ErrNoAuthenticator = errors.New("no authentication mechanism is supported by both the server and the client")

	// ErrAuthFailed is returned by Start when every mechanism tried failed.
	ErrAuthFailed = errors.New("failed to authenticate on SMTP server")
)

// Authenticator implements one SASL mechanism.
type Authenticator interface {
	// Keyword returns the mechanism name, as advertised after AUTH.
	Keyword() string

	// Authenticate runs the exchange. It resets the session on failure.
	Authenticate(ctx context.Context, a Agent, username, password string) error
}

// AuthHandler logs in after EHLO using the first of its authenticators that
// the server supports and that succeeds.
type AuthHandler struct {
	BaseHandler

	Username string
	Password string

	Authenticators []Authenticator
}

// NewAuthHandler returns a handler for AUTH. With no authenticators given, it
// tries CRAM-MD5, LOGIN, PLAIN, and XOAUTH2, in that order.
func NewAuthHandler(auths ...Authenticator) *AuthHandler {
	if len(auths) == 0 {
		auths = []Authenticator{CRAMMD5{}, Login{}, Plain{}, &XOAuth2{}}
	}
	return &AuthHandler{Authenticators: auths}
}

// Keyword returns "AUTH".
func (h *AuthHandler) Keyword() string { return "AUTH" }

// AfterEHLO authenticates when a username is set.
func (h *AuthHandler) AfterEHLO(ctx context.Context, a Agent) error {
	if h.Username == "" {
		return nil
	}

	supported := make(map[string]bool, len(h.Params))
	for _, p := range h.Params {
		supported[strings.ToUpper(p)] = true
	}

	var errs []string
	for _, au := range h.Authenticators {
		if !supported[strings.ToUpper(au.Keyword())] {
			continue
		}

		err := au.Authenticate(ctx, a, h.Username, h.Password)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Sprintf("%s: %v", au.Keyword(), err))
	}

	if len(errs) == 0 {
		return fmt.Errorf("%w, the server supports: %s", ErrNoAuthenticator, strings.Join(h.Params, ", "))
	}

	return fmt.Errorf("%w with username %q using %d possible authenticators (%s)",
		ErrAuthFailed, h.Username, len(errs), strings.Join(errs, "; "))
}

// ResetState forgets the advertised mechanisms. The credentials are kept.
func (h *AuthHandler) ResetState() {
	h.Params = nil
}

func encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func reset(ctx context.Context, a Agent, err error) error {
	_, _ = a.ExecuteCommand(ctx, "RSET\r\n", 250)
	return err
}

// Plain is the PLAIN mechanism.
type Plain struct{}

// Keyword returns "PLAIN".
func (Plain) Keyword() string { return "PLAIN" }

// Authenticate sends the credentials in one command.
func (Plain) Authenticate(ctx context.Context, a Agent, username, password string) error {
	msg := encode("\x00" + username + "\x00" + password)
	if _, err := a.ExecuteCommand(ctx, "AUTH PLAIN "+msg+"\r\n", 235); err != nil {
		return reset(ctx, a, err)
	}
	return nil
}

// Login is the LOGIN mechanism.
type Login struct{}

// Keyword returns "LOGIN".
func (Login) Keyword() string { return "LOGIN" }

// Authenticate answers the username and password prompts.
func (Login) Authenticate(ctx context.Context, a Agent, username, password string) error {
	if _, err := a.ExecuteCommand(ctx, "AUTH LOGIN\r\n", 334); err != nil {
		return reset(ctx, a, err)
	}
	if _, err := a.ExecuteCommand(ctx, encode(username)+"\r\n", 334); err != nil {
		return reset(ctx, a, err)
	}
	if _, err := a.ExecuteCommand(ctx, encode(password)+"\r\n", 235); err != nil {
		return reset(ctx, a, err)
	}
	return nil
}

// CRAMMD5 is the CRAM-MD5 mechanism.
type CRAMMD5 struct{}

// Keyword returns "CRAM-MD5".
func (CRAMMD5) Keyword() string { return "CRAM-MD5" }

// Authenticate answers the challenge with an HMAC-MD5 digest keyed with the
// password.
func (CRAMMD5) Authenticate(ctx context.Context, a Agent, username, password string) error {
	resp, err := a.ExecuteCommand(ctx, "AUTH CRAM-MD5\r\n", 334)
	if err != nil {
		return reset(ctx, a, err)
	}

	challenge, err := base64.StdEncoding.DecodeString(strings.TrimSpace(resp[min(4, len(resp)):]))
	if err != nil {
		return reset(ctx, a, fmt.Errorf("bad CRAM-MD5 challenge: %w", err))
	}

	mac := hmac.New(md5.New, []byte(password))
	mac.Write(challenge)
	answer := encode(username + " " + hex.EncodeToString(mac.Sum(nil)))

	if _, err := a.ExecuteCommand(ctx, answer+"\r\n", 235); err != nil {
		return reset(ctx, a, err)
	}
	return nil
}

// XOAuth2 is the XOAUTH2 mechanism. The access token comes from
// TokenSource, or is the password when TokenSource is nil.
type XOAuth2 struct {
	TokenSource oauth2.TokenSource
}

// Keyword returns "XOAUTH2".
func (*XOAuth2) Keyword() string { return "XOAUTH2" }

// Authenticate sends the username and bearer token.
func (x *XOAuth2) Authenticate(ctx context.Context, a Agent, username, password string) error {
	token := password
	if x.TokenSource != nil {
		tok, err := x.TokenSource.Token()
		if err != nil {
			return fmt.Errorf("unable to get XOAUTH2 token: %w", err)
		}
		token = tok.AccessToken
	}

	msg := encode("user=" + username + "\x01auth=Bearer " + token + "\x01\x01")
	if _, err := a.ExecuteCommand(ctx, "AUTH XOAUTH2 "+msg+"\r\n", 235); err != nil {
		return reset(ctx, a, err)
	}
	return nil
}
