package boardlink

import (
	"github.com/mdouchement/logger"
)

// DummySlave returns a dispatcher factory for Supervise where each generation drives a fresh DummyBoard,
// as a rebooted board would. metrics and monitor are optional.
func DummySlave(cfg Config, log logger.Logger, metrics *Metrics, monitor *Monitor) func(generation int) (*Dispatcher, error) {
	pins := cfg.Pins()

	return func(generation int) (*Dispatcher, error) {
		board := NewDummyBoard()
		board.SetLogger(log)

		d := NewDispatcher(cfg, board, log)
		d.OnDispatch(func(r Record) {
			if metrics != nil {
				metrics.Observe(r)
			}

			if monitor != nil {
				state := board.Snapshot()
				state.Pins = pins
				state.Restarts = generation
				state.Last = &r
				monitor.Publish(state)
			}
		})

		if monitor != nil {
			state := board.Snapshot()
			state.Pins = pins
			state.Restarts = generation
			monitor.Publish(state)
		}

		return d, nil
	}
}
