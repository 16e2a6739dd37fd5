package sensor

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// WatchLines calls onLine for every line read from r until ctx is done or r
// is exhausted. The reader goroutine may outlive a cancelled call while it
// is blocked in Read; closing r releases it.
func WatchLines(ctx context.Context, r io.Reader, onLine func(ctx context.Context, line string)) error {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- strings.TrimSpace(sc.Text()):
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			onLine(ctx, line)
		}
	}
}
