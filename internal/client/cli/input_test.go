package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSimpleText(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("  hello world \n"))
	var out bytes.Buffer

	got, err := GetSimpleText(in, "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
	assert.Equal(t, "Name?\n> ", out.String())
}

func TestGetSimpleText_PartialLineAtEOF(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("lastline"))
	got, err := GetSimpleText(in, "Name?", &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "lastline", got)
}

func TestGetSimpleText_EmptyEOF(t *testing.T) {
	in := bufio.NewReader(strings.NewReader(""))
	_, err := GetSimpleText(in, "Name?", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestGetMultiline(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("a\nb\n\nignored\n"))
	got, err := GetMultiline(in, "Enter text", &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "a\nb", got)
}

func TestGetMultiline_StopsAtEOF(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("only"))
	got, err := GetMultiline(in, "Enter text", &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "only", got)
}

func TestGetPassword(t *testing.T) {
	old := readPassword
	t.Cleanup(func() { readPassword = old })

	readPassword = func(int) ([]byte, error) { return []byte("s3cret"), nil }
	var out bytes.Buffer
	pw, err := GetPassword(&out)
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cret"), pw)
	assert.Equal(t, "Enter password: \n", out.String())

	readPassword = func(int) ([]byte, error) { return nil, errors.New("boom") }
	_, err = GetPassword(&bytes.Buffer{})
	assert.EqualError(t, err, "boom")
}
