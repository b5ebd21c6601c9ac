package main

import (
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	dig_container "github.com/trezcool/examportal/apps/api/di/dig"
	"github.com/trezcool/examportal/core"
	"github.com/trezcool/examportal/core/grading"
	queuesvc "github.com/trezcool/examportal/services/queue"
)

func main() {
	c := dig_container.New()

	err := c.Invoke(func(conf *core.Config, logger core.Logger, db *sqlx.DB, gradingSvc *grading.Service) error {
		defer func() { _ = db.Close() }()

		var client *redis.Client
		defer func() {
			if client != nil {
				_ = client.Close()
			}
		}()

		cli := commandLine{
			conf:    conf,
			db:      db.DB,
			grading: gradingSvc,
			queue: func() (redis.Cmdable, error) {
				var err error
				if client == nil {
					client, err = queuesvc.NewRedisClient(conf)
				}
				return client, err
			},
			out: os.Stdout,
		}
		return cli.run(os.Args)
	})
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
