package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	dig_container "github.com/trezcool/examportal/apps/api/di/dig"
	"github.com/trezcool/examportal/core"
	"github.com/trezcool/examportal/core/grading"
	queuesvc "github.com/trezcool/examportal/services/queue"
)

// worker runs the expired session sweeper and the payment queue consumer.
func main() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		logger core.Logger,
		db *sqlx.DB,
		client *redis.Client,
		sweeper *grading.Sweeper,
		consumer *queuesvc.PaymentConsumer,
	) {
		logger.Info(fmt.Sprintf("Worker initializing : version %q", conf.Build))
		core.ParseEmailTemplates(logger)

		defer func() {
			if err := db.Close(); err != nil {
				logger.Error(fmt.Sprintf("closing database: %v", err), err)
			}
			if err := client.Close(); err != nil {
				logger.Error(fmt.Sprintf("closing redis: %v", err), err)
			}
		}()
		defer logger.Info("Worker stopped")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			sweeper.Run(ctx)
		}()
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil {
				logger.Error(fmt.Sprintf("payment consumer: %v", err), err)
			}
		}()

		// =========================================================================
		// Shutdown

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		sig := <-shutdown
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
		cancel()
		wg.Wait()
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
