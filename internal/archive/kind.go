// Package archive writes compressed tar archives of directory trees.
package archive

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
)

// Kind is a compression format.
type Kind string

// Supported compression formats.
const (
	Gzip  Kind = "gz"
	Bzip2 Kind = "bz2"
	XZ    Kind = "xz"
)

type codec struct {
	encode func(io.Writer) (io.WriteCloser, error)
	decode func(io.Reader) (io.Reader, error)
}

var codecs = map[Kind]codec{
	Gzip: {
		encode: func(w io.Writer) (io.WriteCloser, error) { return gzip.NewWriter(w), nil },
		decode: func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) },
	},
	Bzip2: {
		encode: func(w io.Writer) (io.WriteCloser, error) {
			return bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.BestCompression})
		},
		decode: func(r io.Reader) (io.Reader, error) { return bzip2.NewReader(r, nil) },
	},
}

// ParseKind converts a config value such as "gz" into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimPrefix(s, ".")))
	switch k {
	case Gzip, Bzip2, XZ:
		return k, nil
	}
	return "", fmt.Errorf("unknown compression %q", s)
}

// Available reports whether this build can write k.
func (k Kind) Available() bool {
	_, ok := codecs[k]
	return ok
}

// Resolve returns k, or Gzip when this build has no encoder for k.
func Resolve(k Kind) Kind {
	if k.Available() {
		return k
	}
	slog.Warn("compression unavailable, falling back to gz", "requested", string(k))
	return Gzip
}

// Ext is the file name suffix for archives of this kind.
func (k Kind) Ext() string {
	return ".tar." + string(k)
}

// KindOf guesses the Kind from a file name.
func KindOf(name string) (Kind, bool) {
	for k := range codecs {
		if strings.HasSuffix(name, k.Ext()) {
			return k, true
		}
	}
	return "", false
}
