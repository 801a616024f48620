package contenthash

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/xerrors"
)

// HexLen is the length of every identifier returned by this package.
const HexLen = sha256.Size * 2

// Sum returns the lowercase hex SHA-256 of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumReader streams r through SHA-256 and returns the digest and byte count.
func SumReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, xerrors.Wrap(err, "hash stream")
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// SumFile hashes the file at path without loading it into memory.
func SumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", xerrors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	sum, _, err := SumReader(f)
	if err != nil {
		return "", xerrors.Wrapf(err, "hash %s", path)
	}
	return sum, nil
}

// Equal compares two hex digests in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Name builds the hash-qualified file name base-hash.ext. ext may be given
// with or without its leading dot; an empty ext yields base-hash.
func Name(base, hash, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return base + "-" + hash
	}
	return base + "-" + hash + "." + ext
}

// IsHashed reports whether name carries a content identifier in the form
// produced by Name, i.e. a '-' followed by HexLen lowercase hex digits right
// before the extension.
func IsHashed(name string) bool {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	stem := name
	if i := strings.IndexByte(name, '.'); i >= 0 {
		stem = name[:i]
	}
	if len(stem) < HexLen+1 || stem[len(stem)-HexLen-1] != '-' {
		return false
	}
	for _, c := range stem[len(stem)-HexLen:] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
