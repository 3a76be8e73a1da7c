package scanner

import (
	"crypto/md5"
	"encoding/hex"
	"io"

	"github.com/spf13/afero"
)

// HashReader returns the lowercase hex MD5 of everything read from r. MD5 is
// what Drive reports as md5Checksum, so local and remote hashes compare
// directly.
func HashReader(r io.Reader) (string, error) {
	h := md5.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile hashes the file at path on fsys.
func HashFile(fsys afero.Fs, path string) (hash string, err error) {
	f, err := fsys.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return HashReader(f)
}
