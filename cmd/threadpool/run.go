package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jirevwe/threadpool"
	"github.com/jirevwe/threadpool/config"
	"github.com/jirevwe/threadpool/journal"
	"github.com/jirevwe/threadpool/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type summary struct {
	Workers   int
	Submitted int64
	Rejected  int64
	Executed  int64
	Abandoned int64
}

func (s summary) String() string {
	return fmt.Sprintf("workers=%d submitted=%d rejected=%d executed=%d abandoned=%d",
		s.Workers, s.Submitted, s.Rejected, s.Executed, s.Abandoned)
}

// run starts a pool, submits cfg.Run.Tasks items from cfg.Run.Submitters
// goroutines, lets the pool work for cfg.Run.Wait and shuts it down.
func run(ctx context.Context, cfg *config.File, logOut io.Writer) (s summary, err error) {
	logger, err := cfg.Logger(logOut)
	if err != nil {
		return s, err
	}

	wait, err := cfg.WaitDuration()
	if err != nil {
		return s, err
	}

	var abandoned atomic.Int64
	observers := []threadpool.Observer{
		threadpool.ObserverFunc(func(ev threadpool.Event) {
			if ev.Kind == threadpool.EventAbandoned {
				abandoned.Add(1)
			}
		}),
	}

	if cfg.Journal.Path != "" {
		j, err := journal.NewSqlite(cfg.Journal.Path, logger)
		if err != nil {
			return s, fmt.Errorf("failed to open journal: %w", err)
		}
		defer j.Close()

		observers = append(observers, j)
	}

	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		m, err := metrics.New(reg, "threadpool", "pool")
		if err != nil {
			return s, err
		}
		observers = append(observers, m)

		stopServer, err := serveMetrics(cfg.Metrics.Addr, reg, logger)
		if err != nil {
			return s, err
		}
		defer stopServer()
	}

	pool := threadpool.NewWorkerPool(&threadpool.Config{
		Size:         uint(cfg.Pool.Workers),
		Logger:       logger,
		Observer:     threadpool.Observers(observers...),
		LockOSThread: cfg.Pool.LockOSThread,
	})
	defer pool.Close()

	if err = pool.Start(); err != nil {
		return s, fmt.Errorf("failed to initialize worker pool: %w", err)
	}

	var executed, submitted, rejected atomic.Int64
	hello := func(arg any) {
		logger.Info(fmt.Sprintf("Hello %d", arg.(int)))
		executed.Add(1)
	}

	wg := &sync.WaitGroup{}
	for sub := 0; sub < cfg.Run.Submitters; sub++ {
		wg.Add(1)
		go func(sub int) {
			defer wg.Done()
			for i := sub; i < cfg.Run.Tasks; i += cfg.Run.Submitters {
				if err := pool.Submit(threadpool.NewTask(hello, i+1)); err != nil {
					logger.Error(err.Error(), "task", i+1)
					rejected.Add(1)
					continue
				}
				submitted.Add(1)
			}
		}(sub)
	}
	wg.Wait()

	select {
	case <-time.After(wait):
	case <-ctx.Done():
		logger.Info("interrupted, shutting the worker pool down")
	}

	if err = pool.Shutdown(); err != nil {
		return s, err
	}

	logger.Info("exiting app...")

	return summary{
		Workers:   cfg.Pool.Workers,
		Submitted: submitted.Load(),
		Rejected:  rejected.Load(),
		Executed:  executed.Load(),
		Abandoned: abandoned.Load(),
	}, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err.Error(), "func", "metrics.Serve")
		}
	}()
	logger.Info(fmt.Sprintf("serving metrics on %s", ln.Addr()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error(err.Error(), "func", "metrics.Shutdown")
		}
	}, nil
}
