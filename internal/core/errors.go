package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

type ErrorKind string

const (
	KindConfigMissing     ErrorKind = "config_missing"
	KindUpstreamRejected  ErrorKind = "upstream_rejected"
	KindUpstreamMalformed ErrorKind = "upstream_malformed"
	KindDiscoveryFailed   ErrorKind = "discovery_failed"
	KindTimeout           ErrorKind = "timeout"
	KindUnreachable       ErrorKind = "unreachable"
	KindUnknown           ErrorKind = "unknown"
)

// ErrAllSourcesUnreachable is returned alongside the records when every
// configured source failed at the transport level.
var ErrAllSourcesUnreachable = errors.New("no source could be reached")

type FetchError struct {
	Kind   ErrorKind
	Status int // HTTP status for KindUpstreamRejected
	Msg    string
	Err    error
}

func (e *FetchError) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches another *FetchError by kind, so errors.Is(err, &FetchError{Kind: KindTimeout}) works.
func (e *FetchError) Is(target error) bool {
	var t *FetchError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Status == 0 || t.Status == e.Status)
}

func Errorf(kind ErrorKind, format string, args ...any) *FetchError {
	return &FetchError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func WrapError(kind ErrorKind, msg string, err error) *FetchError {
	return &FetchError{Kind: kind, Msg: msg, Err: err}
}

func RejectedError(status int, msg string) *FetchError {
	return &FetchError{Kind: KindUpstreamRejected, Status: status, Msg: msg}
}

// KindOf classifies any error into the taxonomy.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var fe *FetchError
	if errors.As(err, &fe) && fe.Kind != "" {
		if fe.Kind == KindUnknown && fe.Err != nil {
			if k := transportKind(fe.Err); k != "" {
				return k
			}
		}
		return fe.Kind
	}
	if k := transportKind(err); k != "" {
		return k
	}
	return KindUnknown
}

func transportKind(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindUnreachable
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindUnreachable
	}
	// url.Error also wraps parse failures; only a request that was sent
	// counts as a network failure.
	var urlErr *url.Error
	if errors.As(err, &urlErr) && isRequestOp(urlErr.Op) {
		return KindUnreachable
	}
	return ""
}

func isRequestOp(op string) bool {
	switch op {
	case "Get", "Head", "Post", "Put", "Patch", "Delete", "Options", "Connect", "Trace":
		return true
	}
	return false
}

// IsTransportFailure reports whether kind means the upstream could not be reached at all.
func IsTransportFailure(kind ErrorKind) bool {
	return kind == KindTimeout || kind == KindUnreachable
}
