package main

import (
	"context"
	"fmt"
	"time"

	"github.com/syncthing/notify"
	"github.com/tliron/commonlog"
)

var watchLog = commonlog.GetLogger("minilua.watch")

// watchPath calls changed once straight away, then again whenever path changes.
// Bursts of events closer together than debounce only trigger one call.
func watchPath(ctx context.Context, path string, debounce time.Duration, changed func()) error {
	// Make the channel buffered to ensure no event is dropped. Notify will drop
	// an event if the receiver is not able to keep up the sending pace.
	c := make(chan notify.EventInfo, 1)

	if err := notify.Watch(path, c, notify.All); err != nil {
		return fmt.Errorf("failed to watch path %s: %w", path, err)
	}
	defer notify.Stop(c)

	watchLog.Infof("watching %s for changes", path)
	changed()

	var timer *time.Timer
	timeout := func() <-chan time.Time {
		if timer != nil {
			return timer.C
		}
		return nil // blocks forever
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev := <-c:
			watchLog.Debugf("%s: %s", ev.Event(), ev.Path())
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
		case <-timeout():
			timer = nil
			changed()
		}
	}
}
