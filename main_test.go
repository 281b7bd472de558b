package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tapelang/bfc/bf"
	"github.com/tapelang/bfc/compiler"
)

func TestOutputPath(t *testing.T) {
	require.Equal(t, "prog.bf", outputPath("prog.tl", ""))
	require.Equal(t, "out.bf", outputPath("prog.tl", "out.bf"))
	require.Equal(t, "noext.bf", outputPath("noext", ""))
}

func TestCompileSourceEndToEnd(t *testing.T) {
	src := `read x
while x {
    write x
    x -= 1
}
print "!"`
	code, cells, err := compileSource("test.tl", []byte(src), compiler.Options{Optimize: true})
	require.NoError(t, err)
	require.Greater(t, int(cells), 0)

	var out bytes.Buffer
	require.NoError(t, bf.Run(code, strings.NewReader("\x03"), &out))
	require.Equal(t, []byte{3, 2, 1, '!'}, out.Bytes())
}

func TestCompileSourceReportsAllParseErrors(t *testing.T) {
	_, _, err := compileSource("bad.tl", []byte("x = 999\ny = 888"), compiler.Options{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad.tl:1:5")
	require.Contains(t, err.Error(), "bad.tl:2:5")
}

func TestCompileSourceInternalError(t *testing.T) {
	_, _, err := compileSource("bad.tl", []byte("write ghost"), compiler.Options{})
	require.ErrorIs(t, err, compiler.ErrUnboundIdentifier)
}

func TestCompileKey(t *testing.T) {
	src := []byte("write 1")
	base := compileKey(src, compiler.Options{Optimize: true})
	require.Equal(t, base, compileKey(src, compiler.Options{Optimize: true}))
	require.NotEqual(t, base, compileKey(src, compiler.Options{}))
	require.NotEqual(t, base, compileKey(src, compiler.Options{Debug: true, Optimize: true}))
	require.NotEqual(t, base, compileKey([]byte("write 2"), compiler.Options{Optimize: true}))
}

func TestCachedCompile(t *testing.T) {
	t.Setenv("TLCACHE", t.TempDir())

	srcPath := filepath.Join(t.TempDir(), "hi.tl")
	require.NoError(t, os.WriteFile(srcPath, []byte(`print "hi"`), 0644))

	opts := compiler.Options{Optimize: true}
	first, err := cachedCompile(srcPath, opts)
	require.NoError(t, err)

	// Second call must be served from the cache file.
	entries, err := filepath.Glob(filepath.Join(os.Getenv("TLCACHE"), "compiled", "*"+BF_SUFFIX))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	second, err := cachedCompile(srcPath, opts)
	require.NoError(t, err)
	require.Equal(t, first, second)

	var out bytes.Buffer
	require.NoError(t, bf.Run(second, strings.NewReader(""), &out))
	require.Equal(t, "hi", out.String())
}

func TestCompileFileMissing(t *testing.T) {
	_, _, err := compileFile(filepath.Join(t.TempDir(), "absent.tl"), compiler.Options{})
	require.Error(t, err)
}
