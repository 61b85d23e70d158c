package codeimage

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeProducesPNG(t *testing.T) {
	r := New(t.TempDir(), "static/qr_codes", WithSize(128))

	data, err := r.Encode([]byte(`{"driver_name":"Ana Torres","code":"c1"}`))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}

func TestEncodeHandlesUTF8(t *testing.T) {
	r := New(t.TempDir(), "static/qr_codes")
	_, err := r.Encode([]byte(`{"driver_name":"José Ñuñez 王","code":"c1"}`))
	require.NoError(t, err)
}

func TestWriteAndRemove(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "qr_codes")
	r := New(dir, "static/qr_codes")

	data, err := r.Encode([]byte("c1"))
	require.NoError(t, err)

	public, err := r.Write("c1", data)
	require.NoError(t, err)
	assert.Equal(t, "static/qr_codes/qr_c1.png", public)

	onDisk, err := os.ReadFile(filepath.Join(dir, "qr_c1.png"))
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)

	require.NoError(t, r.Remove("c1"))
	_, err = os.Stat(r.FilePath("c1"))
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, r.Remove("c1"))
}
