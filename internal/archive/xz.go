//go:build !noxz

package archive

import (
	"io"

	"github.com/ulikunitz/xz"
)

func init() {
	codecs[XZ] = codec{
		encode: func(w io.Writer) (io.WriteCloser, error) { return xz.NewWriter(w) },
		decode: func(r io.Reader) (io.Reader, error) { return xz.NewReader(r) },
	}
}
