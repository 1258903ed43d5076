// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package workerproc launches kmersig's frequency-analysis workers as
// real OS processes rather than goroutines, per spec §5 ("OS-level
// parallel processes (not cooperative tasks)"). It is adapted from the
// teacher's blast package: the same
// struct-of-tagged-fields-plus-BuildCommand()-method idiom built on
// github.com/biogo/external, repointed from building a blastn command
// line to building a re-exec of the current binary with a hidden worker
// flag and a JSON task payload passed down an inherited pipe.
package workerproc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/biogo/external"
)

// WorkerFlag is the hidden flag a re-exec'd worker process recognizes.
// A binary that wants to host kmersig workers parses this flag before
// its normal flag set and, if present, reads a JSON task from fd 3 and
// dispatches it instead of running its normal main (see cmd/kmersigd).
const WorkerFlag = "-kmersig-worker"

// Spawn describes one worker process invocation: a re-exec of the
// current executable with WorkerFlag set and a task payload delivered
// on a pipe. Its BuildCommand method mirrors blast.Nucleic.BuildCommand
// in shape (tag-driven argument construction via biogo/external),
// though here the only "argument" is the fixed worker flag — the task
// itself travels out-of-band on ExtraFiles[0] to avoid an OS argument
// length limit on large task payloads.
type Spawn struct {
	// Cmd is the executable to invoke; empty means re-exec the current
	// process (os.Executable()).
	Cmd string `buildarg:"{{if .}}{{.}}{{else}}self{{end}}"`

	// Flag is always WorkerFlag; present as a tagged field so
	// BuildCommand follows the same external.Build-driven pattern the
	// teacher's blast package uses, rather than hand-assembling argv.
	Flag string `buildarg:"{{.}}"`
}

// BuildCommand constructs the *exec.Cmd for one worker invocation. The
// returned command has ExtraFiles set to a single read end of a pipe;
// the caller must write the JSON-encoded task to the returned
// io.WriteCloser and close it before or while the command runs.
func (s Spawn) BuildCommand() (*exec.Cmd, io.WriteCloser, error) {
	exe := s.Cmd
	if exe == "" || exe == "self" {
		var err error
		exe, err = os.Executable()
		if err != nil {
			return nil, nil, fmt.Errorf("workerproc: resolve self executable: %w", err)
		}
	}
	args, err := external.Build(Spawn{Cmd: exe, Flag: WorkerFlag})
	if err != nil {
		return nil, nil, fmt.Errorf("workerproc: build worker command: %w", err)
	}
	if len(args) == 0 {
		return nil, nil, errors.New("workerproc: empty command line")
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("workerproc: create task pipe: %w", err)
	}
	cmd := exec.Command(args[0], args[1:]...)
	cmd.ExtraFiles = []*os.File{r}
	cmd.Stderr = os.Stderr
	return cmd, w, nil
}

// Task is the payload a worker process reads from its inherited pipe
// (file descriptor 3). It is opaque to this package; EncodeTask and
// ReadTask just move bytes. The host binary defines the concrete task
// shape (cmd/kmersigd's workerTask) that it encodes and decodes.
type Task = json.RawMessage

// EncodeTask marshals v (typically a host binary's task struct) to JSON bytes
// suitable for writing to a Spawn's task pipe.
func EncodeTask(v interface{}) (Task, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("workerproc: encode task: %w", err)
	}
	return b, nil
}

// ReadTask reads a JSON task payload from fd, the file descriptor a
// worker process inherits at index 3 (the first of ExtraFiles).
func ReadTask(fd *os.File, v interface{}) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, fd); err != nil {
		return fmt.Errorf("workerproc: read task: %w", err)
	}
	if err := json.Unmarshal(buf.Bytes(), v); err != nil {
		return fmt.Errorf("workerproc: decode task: %w", err)
	}
	return nil
}

// IsWorker reports whether args (typically os.Args[1:]) requests worker
// mode, per WorkerFlag.
func IsWorker(args []string) bool {
	return len(args) > 0 && args[0] == WorkerFlag
}
