package cliopt

import (
	"bufio"
	"errors"
	"os"
	"time"
)

// ReadSource reads nasin source from path, or from stdin (waiting briefly
// for input) when path is "-". Adapted from the teacher's util.ReadSource,
// which picks the same two sources for the same reason: letting a build
// run as part of a shell pipeline.
func ReadSource(path string) (string, error) {
	if path != "-" {
		b, err := os.ReadFile(path)
		return string(b), err
	}

	c := make(chan string)
	cerr := make(chan error)
	go func() {
		defer close(c)
		defer close(cerr)
		reader := bufio.NewReader(os.Stdin)
		text, err := reader.ReadString(0)
		if err == nil {
			c <- text
		} else {
			cerr <- err
		}
	}()

	select {
	case <-time.After(500 * time.Millisecond):
		return "", errors.New("expected input from stdin, got none")
	case s := <-c:
		return s, nil
	case err := <-cerr:
		return "", err
	}
}

// WriteOutput writes b to path, marking it executable when asExecutable is
// set (the linked binary case; dump output never is).
func WriteOutput(path string, b []byte, asExecutable bool) error {
	mode := os.FileMode(0644)
	if asExecutable {
		mode = 0755
	}
	return os.WriteFile(path, b, mode)
}
