package decoder

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/qrkiosk/internal/common"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeQR(t *testing.T, text string) image.Image {
	t.Helper()
	m, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, 240, 240, nil)
	require.NoError(t, err)
	return m
}

func writePNG(t *testing.T, path string, img image.Image, mod time.Time) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func blank() image.Image {
	img := image.NewGray(image.Rect(0, 0, 120, 120))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.Black)
	return img
}

func TestQRDecoder(t *testing.T) {
	text, ok, err := QRDecoder{}.Decode(encodeQR(t, "U-1001"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "U-1001", text)

	_, ok, err = QRDecoder{TryHarder: true}.Decode(blank())
	require.NoError(t, err, "no code in frame is not an error")
	assert.False(t, ok)
}

func TestCameraSource_MissingDirectory(t *testing.T) {
	src := &CameraSource{Dir: filepath.Join(t.TempDir(), "no-camera")}
	_, err := src.Open(context.Background())
	require.ErrorIs(t, err, common.ErrDevice)
}

func TestCameraSource_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, err := (&CameraSource{Dir: file}).Open(context.Background())
	require.ErrorIs(t, err, common.ErrDevice)
}

func TestCameraSource_ExclusiveLock(t *testing.T) {
	dir := t.TempDir()
	src := &CameraSource{Dir: dir}

	first, err := src.Open(context.Background())
	require.NoError(t, err)

	_, err = src.Open(context.Background())
	require.ErrorIs(t, err, common.ErrDevice)
	assert.Contains(t, err.Error(), "in use")

	require.NoError(t, first.Close())
	require.NoError(t, first.Close(), "close is idempotent")

	second, err := src.Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestCameraSource_DecodesNewFramesOnly(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "old.png"), encodeQR(t, "STALE"), time.Now().Add(-time.Hour))

	stream, err := (&CameraSource{Dir: dir}).Open(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	_, ok, err := stream.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "frames older than the session are ignored")

	// non-frame files and partial frames are skipped
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "partial.jpg"), []byte("\xff\xd8"), 0o600))
	_, ok, err = stream.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	writePNG(t, filepath.Join(dir, "frame-0002.png"), encodeQR(t, "U1"), time.Now().Add(time.Second))

	text, ok, err := stream.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "U1", text)

	_, ok, err = stream.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "the same frame is not decoded twice")
}

func TestCameraSource_WithAdapter(t *testing.T) {
	dir := t.TempDir()
	a := newTestAdapter(&CameraSource{Dir: dir}, 2*time.Second)

	cb, ch := collect()
	require.NoError(t, a.Start(context.Background(), cb))

	writePNG(t, filepath.Join(dir, "frame.png"), encodeQR(t, "U7"), time.Now().Add(time.Second))

	r := waitResult(t, ch)
	require.NoError(t, r.Err)
	assert.Equal(t, "U7", r.Text)

	_, err := os.Stat(filepath.Join(dir, lockFileName))
	assert.True(t, os.IsNotExist(err), "lock released after the scan")
}
