package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// SkipFunc reports whether an entry should be left out. rel is the entry's
// path relative to the archive base. Returning true for a directory prunes
// the whole subtree.
type SkipFunc func(rel string, d fs.DirEntry) bool

// Writer streams files into a compressed tar archive.
type Writer struct {
	path string
	kind Kind
	f    *os.File
	comp io.WriteCloser
	tw   *tar.Writer
}

// Create opens path for writing. The caller picks the final file name;
// use Resolve beforehand so the name matches the compression actually used.
func Create(path string, kind Kind) (*Writer, error) {
	c, ok := codecs[kind]
	if !ok {
		return nil, fmt.Errorf("no encoder for %s", kind)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	comp, err := c.encode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("starting %s encoder: %w", kind, err)
	}
	return &Writer{path: path, kind: kind, f: f, comp: comp, tw: tar.NewWriter(comp)}, nil
}

// Path returns the archive path.
func (w *Writer) Path() string { return w.path }

// AddTree adds base/rel and everything below it. Entry names are relative
// to base. A missing root is reported as fs.ErrNotExist.
func (w *Writer) AddTree(ctx context.Context, base, rel string, skip SkipFunc) error {
	root := filepath.Join(base, rel)
	if _, err := os.Lstat(root); err != nil {
		return err
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		relPath, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		if skip != nil && skip(relPath, d) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		return w.addEntry(path, filepath.ToSlash(relPath), d)
	})
}

func (w *Writer) addEntry(path, name string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	var link string
	if info.Mode()&os.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return err
		}
	}

	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	header.Name = name
	if info.IsDir() {
		header.Name += "/"
	}

	if err := w.tw.WriteHeader(header); err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	// Live files such as logs/latest.log change under us. The entry holds
	// exactly header.Size bytes: a grown file is cut at the stat size and a
	// shrunk one is zero-padded.
	n, err := io.CopyN(w.tw, file, header.Size)
	if errors.Is(err, io.EOF) {
		_, err = io.CopyN(w.tw, zeros{}, header.Size-n)
	}
	return err
}

type zeros struct{}

func (zeros) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

// Close flushes the tar stream, the encoder and the file.
func (w *Writer) Close() error {
	return errors.Join(w.tw.Close(), w.comp.Close(), w.f.Close())
}

// List returns the entry names of an archive, decoding by file suffix.
func List(path string) ([]string, error) {
	kind, ok := KindOf(path)
	if !ok {
		return nil, fmt.Errorf("unrecognized archive %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := codecs[kind].decode(f)
	if err != nil {
		return nil, fmt.Errorf("opening %s stream: %w", kind, err)
	}

	var names []string
	tr := tar.NewReader(r)
	for {
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return names, nil
		}
		if err != nil {
			return names, err
		}
		names = append(names, h.Name)
	}
}
