package storage

import (
	"errors"
	"testing"

	"github.com/t3rm1n4l/go-mega"
)

func TestMegaErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"account full", mega.EOVERQUOTA, KindQuota},
		{"upload would exceed quota", mega.EGOINGOVERQUOTA, KindQuota},
		{"access denied", mega.EACCESS, KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := megaError("new upload", tt.err)
			if got := Classify(err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", err, got, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("%v does not wrap %v", err, tt.err)
			}
			if (tt.want == KindQuota) != errors.Is(err, ErrQuota) {
				t.Errorf("ErrQuota wrapping wrong for %v", err)
			}
		})
	}
}
