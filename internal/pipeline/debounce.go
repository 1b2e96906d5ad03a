package pipeline

import (
	"kbsync/internal/model"
	"time"

	"github.com/jonboulle/clockwork"
)

// Debounce collects events until none has arrived for delay and then
// emits them as one batch. A pending batch is flushed when inCh closes.
func Debounce(inCh <-chan model.FileEvent, delay time.Duration, clock clockwork.Clock) <-chan []model.FileEvent {
	outCh := make(chan []model.FileEvent, 1)

	go func() {
		defer close(outCh)

		var (
			batch []model.FileEvent
			timer clockwork.Timer
			fire  <-chan time.Time
		)

		for {
			select {
			case event, ok := <-inCh:
				if !ok {
					if timer != nil {
						timer.Stop()
					}
					if len(batch) > 0 {
						outCh <- batch
					}
					return
				}

				batch = append(batch, event)

				if timer != nil {
					timer.Stop()
				}
				timer = clock.NewTimer(delay)
				fire = timer.Chan()

			case <-fire:
				outCh <- batch
				batch = nil
				timer = nil
				fire = nil
			}
		}
	}()

	return outCh
}
