// Package storage puts photos into a remote object-storage account and returns
// a public link for each stored object.
package storage

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
)

var ErrQuota = errors.New("storage over quota")

// Object is one stored file.
type Object struct {
	Name string
	Size int64
	Link string
}

// Account is a set of credentials able to open upload sessions.
type Account interface {
	Name() string
	Open(ctx context.Context) (Session, error)
}

// Session is a logged-in connection to an account.
type Session interface {
	Upload(ctx context.Context, name string, size int64, r io.Reader) (*Object, error)
	Close() error
}

// Kind is the closed set of failure classes the upload pipeline acts on.
type Kind int

const (
	KindNone Kind = iota
	KindQuota
	KindTransport
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindQuota:
		return "quota"
	case KindTransport:
		return "transport"
	default:
		return "other"
	}
}

// Classify maps provider errors to a Kind. Providers that do not return
// ErrQuota are recognised by their message.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, ErrQuota) || isQuotaMessage(err.Error()) {
		return KindQuota
	}
	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return KindTransport
	}
	return KindOther
}

func isQuotaMessage(msg string) bool {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "over quota"),
		strings.Contains(msg, "quotaexceeded"),
		strings.Contains(msg, "quota exceeded"),
		strings.Contains(msg, "not enough quota"):
		return true
	}
	return strings.Contains(msg, "storage") && strings.Contains(msg, "quota")
}
