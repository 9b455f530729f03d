/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gpillon/wakeonlan/internal/registry"
	"github.com/gpillon/wakeonlan/internal/wol"
)

// wakeAll wakes every target concurrently and reports one line per target.
// It returns the first failure after all sends have completed.
func wakeAll(ctx context.Context, waker *wol.Waker, targets []registry.Target, out io.Writer) error {
	var mu sync.Mutex
	var g errgroup.Group

	for _, t := range targets {
		results := waker.Wake(ctx, t.WakeRequest())
		g.Go(func() error {
			result := <-results

			mu.Lock()
			defer mu.Unlock()
			if result.Err != nil {
				fmt.Fprintf(out, "%s\tfailed\t%v\n", t.Name, result.Err)
				return fmt.Errorf("wake %s: %w", t.Name, result.Err)
			}
			fmt.Fprintf(out, "%s\tsent to %s:%d\n", t.Name, result.Broadcast, wol.DefaultWOLPort)
			return nil
		})
	}

	return g.Wait()
}
