// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package workerproc

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// RunAll forks n worker processes, one per call to newTask, writes each
// worker's task payload to its pipe, and waits for all of them to exit,
// mirroring the one-goroutine-per-child-process-doing-blocking-Wait
// pattern the teacher uses for its single blastn child in
// cmd/ins/blast.go, generalized to many concurrent children. The first
// non-nil error aborts the group (errgroup's usual cancel-siblings
// behavior) and is returned, matching spec §4.4's "coordinator reports
// the worker error after join and fails the whole analysis".
func RunAll(ctx context.Context, n int, newTask func(i int) (interface{}, error)) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			task, err := newTask(i)
			if err != nil {
				return fmt.Errorf("workerproc: build task %d: %w", i, err)
			}
			payload, err := EncodeTask(task)
			if err != nil {
				return err
			}
			cmd, pipe, err := Spawn{}.BuildCommand()
			if err != nil {
				return err
			}
			if err := cmd.Start(); err != nil {
				return fmt.Errorf("workerproc: start worker %d: %w", i, err)
			}
			if _, err := pipe.Write(payload); err != nil {
				pipe.Close()
				_ = cmd.Wait()
				return fmt.Errorf("workerproc: write task %d: %w", i, err)
			}
			pipe.Close()
			if err := cmd.Wait(); err != nil {
				return fmt.Errorf("workerproc: worker %d failed: %w", i, err)
			}
			return nil
		})
	}
	return g.Wait()
}
