package decoder

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/qrkiosk/internal/common"
)

const lockFileName = ".qrkiosk.lock"

// CameraSource reads frames that an external capture process (ffmpeg,
// fswebcam, libcamera-still) keeps writing into Dir as JPEG or PNG files.
// Opening takes an exclusive lock file in Dir; only frames written after
// the session started are considered.
type CameraSource struct {
	Dir     string
	Decoder FrameDecoder
}

func (c *CameraSource) Open(ctx context.Context) (Stream, error) {
	fi, err := os.Stat(c.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDevice, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a frame directory", common.ErrDevice, c.Dir)
	}

	lockPath := filepath.Join(c.Dir, lockFileName)
	lock, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: camera is in use (%s)", common.ErrDevice, lockPath)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrDevice, err)
	}
	_, _ = fmt.Fprintf(lock, "%d\n", os.Getpid())
	_ = lock.Close()

	dec := c.Decoder
	if dec == nil {
		dec = QRDecoder{TryHarder: true}
	}

	return &cameraStream{
		dir:      c.Dir,
		lockPath: lockPath,
		decoder:  dec,
		since:    time.Now(),
	}, nil
}

type cameraStream struct {
	dir      string
	lockPath string
	decoder  FrameDecoder
	since    time.Time
}

// Next decodes the newest frame not seen yet.
func (s *cameraStream) Next(ctx context.Context) (string, bool, error) {
	path, mod, err := s.newestFrame()
	if err != nil {
		return "", false, err
	}
	if path == "" {
		return "", false, nil
	}
	s.since = mod

	f, err := os.Open(path)
	if err != nil {
		// rotated away by the capture tool
		return "", false, nil
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		// partially written frame
		return "", false, nil
	}
	return s.decoder.Decode(img)
}

func (s *cameraStream) newestFrame() (string, time.Time, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", common.ErrDevice, err)
	}

	var (
		best    string
		bestMod time.Time
	)
	for _, e := range entries {
		if e.IsDir() || !isFrame(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		mod := info.ModTime()
		if !mod.After(s.since) || !mod.After(bestMod) {
			continue
		}
		best, bestMod = filepath.Join(s.dir, e.Name()), mod
	}
	return best, bestMod, nil
}

func (s *cameraStream) Close() error {
	err := os.Remove(s.lockPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func isFrame(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
