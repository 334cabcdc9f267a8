package threadpool

import (
	"log/slog"
	"os"
	"runtime"
)

// A Spawner starts run on a new thread of execution. It returns an error if
// it could not, in which case run must not be called.
type Spawner func(run func()) error

// GoSpawner runs each worker on its own goroutine.
func GoSpawner(run func()) error {
	go run()
	return nil
}

// OSThreadSpawner runs each worker on its own goroutine, wired to a dedicated
// OS thread for the worker's whole life. The thread is torn down when the
// worker exits.
func OSThreadSpawner(run func()) error {
	go func() {
		runtime.LockOSThread()
		run()
	}()
	return nil
}

type Config struct {
	// Size is the number of workers, it cannot change once the pool is started
	Size uint

	// Logger receives the pool's diagnostics. Defaults to text on stdout
	Logger *slog.Logger

	// Observer is told about worker and work item events, it may be nil
	Observer Observer

	// Spawner starts the workers. Defaults to GoSpawner, or OSThreadSpawner
	// when LockOSThread is set
	Spawner Spawner

	LockOSThread bool
}

func (c *Config) withDefaults() *Config {
	cfg := *c

	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}

	if cfg.Observer == nil {
		cfg.Observer = noopObserver{}
	}

	if cfg.Spawner == nil {
		if cfg.LockOSThread {
			cfg.Spawner = OSThreadSpawner
		} else {
			cfg.Spawner = GoSpawner
		}
	}

	return &cfg
}
