package poll

import (
	"github.com/matheus3301/radio/internal/bus"
	"go.uber.org/zap"
)

// LogStatusChanges logs every poll.status_changed event published on b until
// the returned stop function is called. stop waits for the logger goroutine.
func LogStatusChanges(b *bus.Bus, logger *zap.Logger) (stop func()) {
	ch, unsub := b.Subscribe("poll.", 16)
	quit := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case evt := <-ch:
				logStatus(logger, evt)
			case <-quit:
				unsub()
				for {
					select {
					case evt := <-ch:
						logStatus(logger, evt)
					default:
						return
					}
				}
			}
		}
	}()

	return func() {
		close(quit)
		<-done
	}
}

func logStatus(logger *zap.Logger, evt bus.Event) {
	sc, ok := evt.Payload.(StatusChange)
	if !ok {
		return
	}
	logger.Info("auto-check state changed",
		zap.String("from", string(sc.From)),
		zap.String("to", string(sc.To)),
		zap.Time("at", evt.Timestamp),
	)
}
