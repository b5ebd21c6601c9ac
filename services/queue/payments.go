package queuesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/trezcool/examportal/core"
	"github.com/trezcool/examportal/core/ledger"
)

const popTimeout = 5 * time.Second

type (
	// PaymentLedger applies payment confirmations to the entitlement ledger.
	PaymentLedger interface {
		ConsumePayment(ctx context.Context, pc ledger.PaymentConfirmation) (ledger.Purchase, bool, error)
	}

	// PaymentConsumer pops payment confirmations off a redis list and moves the ones
	// that cannot be applied to a dead letter list.
	PaymentConsumer struct {
		client redis.Cmdable
		ledger PaymentLedger
		logger core.Logger
		queue  string
		dlq    string
	}
)

func NewPaymentConsumer(client redis.Cmdable, ledger PaymentLedger, logger core.Logger, conf *core.Config) *PaymentConsumer {
	return &PaymentConsumer{
		client: client,
		ledger: ledger,
		logger: logger,
		queue:  conf.Redis.PaymentQueue,
		dlq:    conf.Redis.PaymentQueue + conf.Redis.DLQSuffix,
	}
}

// Run consumes the payment queue until ctx is cancelled.
func (c *PaymentConsumer) Run(ctx context.Context) error {
	c.logger.Info(fmt.Sprintf("payment consumer started : %s", c.queue))
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("payment consumer stopped")
			return nil
		default:
		}

		res, err := c.client.BRPop(ctx, popTimeout, c.queue).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			c.logger.Error(fmt.Sprintf("popping %s: %v", c.queue, err), err)
			time.Sleep(time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}
		c.Process(ctx, []byte(res[1]))
	}
}

// Process applies one message. A message that fails is pushed to the dead letter list.
func (c *PaymentConsumer) Process(ctx context.Context, msg []byte) {
	if err := c.handle(ctx, msg); err != nil {
		c.logger.Error(fmt.Sprintf("processing payment: %v", err), err, map[string]interface{}{"message": string(msg)})
		if err := c.client.LPush(ctx, c.dlq, msg).Err(); err != nil {
			c.logger.Error(fmt.Sprintf("moving payment to %s: %v", c.dlq, err), err)
		}
	}
}

func (c *PaymentConsumer) handle(ctx context.Context, msg []byte) error {
	var pc ledger.PaymentConfirmation
	if err := json.Unmarshal(msg, &pc); err != nil {
		return errors.Wrap(err, "decoding payment")
	}
	p, applied, err := c.ledger.ConsumePayment(ctx, pc)
	if err != nil {
		return err
	}
	if applied {
		c.logger.Info(fmt.Sprintf("payment %s applied : purchase %s now has %d licenses", pc.PaymentID, p.ID, p.Quantity))
	} else {
		c.logger.Debug(fmt.Sprintf("payment %s already processed", pc.PaymentID))
	}
	return nil
}

// EnqueuePayment pushes a payment confirmation onto the payment queue.
func EnqueuePayment(ctx context.Context, client redis.Cmdable, conf *core.Config, pc ledger.PaymentConfirmation) error {
	data, err := json.Marshal(pc)
	if err != nil {
		return errors.Wrap(err, "encoding payment")
	}
	return errors.Wrap(client.LPush(ctx, conf.Redis.PaymentQueue, data).Err(), "pushing payment")
}
