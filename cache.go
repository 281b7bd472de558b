package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"

	"github.com/tapelang/bfc/compiler"
)

// compileKey hashes everything that determines the compiled output: the
// source text, the options, and the compiler version.
func compileKey(source []byte, opts compiler.Options) string {
	h := sha256.New()
	h.Write(source)
	h.Write([]byte(strconv.FormatBool(opts.Debug)))
	h.Write([]byte(strconv.FormatBool(opts.Optimize)))
	h.Write([]byte(Version))
	return hex.EncodeToString(h.Sum(nil))
}

// cachedCompile returns the compiled form of srcPath, reusing the cache
// entry for identical source and options. The cache directory is shared
// between processes, so entries are guarded by a file lock.
func cachedCompile(srcPath string, opts compiler.Options) (string, error) {
	source, err := os.ReadFile(srcPath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", srcPath, err)
	}

	cacheDir := filepath.Join(defaultTLCache(), "compiled")
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	lock := flock.New(filepath.Join(cacheDir, ".lock"))
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("acquire cache lock: %w", err)
	}
	defer lock.Unlock()

	key := compileKey(source, opts)
	cached := filepath.Join(cacheDir, key[:16]+BF_SUFFIX)
	if data, err := os.ReadFile(cached); err == nil {
		return string(data), nil
	}

	code, _, err := compileSource(filepath.Base(srcPath), source, opts)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(cached, []byte(code), 0644); err != nil {
		return "", fmt.Errorf("writing cache entry: %w", err)
	}
	return code, nil
}
