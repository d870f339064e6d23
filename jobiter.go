package cabhfuil

import (
	"bufio"
	"io"
	"strings"
)

type lineJobIter struct {
	*bufio.Scanner
	r io.ReadCloser
}

// NewLineJobIter returns a JobIter that yields one sync job per repository
// path read from r, one path per line. Blank lines and lines starting with
// '#' are skipped.
func NewLineJobIter(r io.ReadCloser) JobIter {
	return &lineJobIter{
		Scanner: bufio.NewScanner(r),
		r:       r,
	}
}

func (i *lineJobIter) Next() (*Job, error) {
	for {
		if !i.Scan() {
			if err := i.Err(); err != nil {
				return nil, err
			}

			return nil, io.EOF
		}

		line := strings.TrimSpace(string(i.Bytes()))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		return NewJob(line), nil
	}
}

// Close closes the underlying reader.
func (i *lineJobIter) Close() error {
	return i.r.Close()
}
