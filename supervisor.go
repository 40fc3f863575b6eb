package boardlink

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mdouchement/logger"
)

// Supervise runs a dispatcher built by factory on rw and starts a brand new one each time a RESET is served.
// It returns when ctx is done or when the dispatcher fails for another reason.
func Supervise(ctx context.Context, rw io.ReadWriter, factory func(generation int) (*Dispatcher, error)) error {
	log := logger.LogWith(ctx)

	for generation := 0; ; generation++ {
		d, err := factory(generation)
		if err != nil {
			return fmt.Errorf("dispatcher: %w", err)
		}

		if err = d.Setup(); err != nil {
			return fmt.Errorf("setup: %w", err)
		}
		log.Infof("Dispatcher ready (generation %d)", generation)

		err = d.Serve(ctx, rw)
		if errors.Is(err, ErrRestart) {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
}
