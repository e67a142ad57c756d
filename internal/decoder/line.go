package decoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dmitrijs2005/qrkiosk/internal/common"
)

// LineSource reads payloads from a line-oriented device such as a USB
// scanner in serial mode or a named pipe. Every non-empty line is one
// payload, delivered without its line terminator.
type LineSource struct {
	Path string
}

func (l *LineSource) Open(ctx context.Context) (Stream, error) {
	fi, err := os.Stat(l.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDevice, err)
	}

	flag := os.O_RDONLY
	if fi.Mode()&os.ModeNamedPipe != 0 {
		// a read-only open blocks until a writer appears
		flag = os.O_RDWR
	}

	f, err := os.OpenFile(l.Path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDevice, err)
	}
	return newLineStream(f), nil
}

type lineStream struct {
	rc    io.ReadCloser
	lines chan string
	errc  chan error
	done  chan struct{}

	closeOnce sync.Once
}

func newLineStream(rc io.ReadCloser) *lineStream {
	s := &lineStream{
		rc:    rc,
		lines: make(chan string, 16),
		errc:  make(chan error, 1),
		done:  make(chan struct{}),
	}
	go s.read()
	return s
}

func (s *lineStream) read() {
	r := bufio.NewReader(s.rc)
	for {
		line, err := r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			select {
			case s.lines <- line:
			case <-s.done:
				return
			}
		}
		if err != nil {
			select {
			case <-s.done:
			default:
				if !errors.Is(err, io.EOF) {
					s.errc <- err
				}
			}
			return
		}
	}
}

// Next returns the next buffered line without blocking.
func (s *lineStream) Next(ctx context.Context) (string, bool, error) {
	select {
	case line := <-s.lines:
		return line, true, nil
	default:
	}

	select {
	case err := <-s.errc:
		return "", false, fmt.Errorf("scanner read: %w", err)
	default:
		return "", false, nil
	}
}

func (s *lineStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.rc.Close()
	})
	return err
}
