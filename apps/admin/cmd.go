package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/go-redis/redis/v8"

	echoapi "github.com/trezcool/examportal/apps/api/echo"
	"github.com/trezcool/examportal/core"
	"github.com/trezcool/examportal/core/grading"
	"github.com/trezcool/examportal/core/ledger"
	"github.com/trezcool/examportal/core/user"
	queuesvc "github.com/trezcool/examportal/services/queue"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf    *core.Config
	db      *sql.DB
	grading *grading.Service
	queue   func() (redis.Cmdable, error) // connects on first use
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  sweep - submit every expired exam session now")
	fmt.Fprintln(cli.out, "  token -id ID -role ROLE [-academy ID] [-name NAME] [-email EMAIL] - print an API token")
	fmt.Fprintln(cli.out, "  enqueue-payment -exam ID -academy ID -quantity N -payment ID - publish a payment confirmation")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenCmd.SetOutput(cli.out)
	tokenID := tokenCmd.String("id", "", "The user's id.")
	tokenRole := tokenCmd.String("role", "", "One of SUPER_ADMIN, ACADEMY, STUDENT.")
	tokenAcademy := tokenCmd.String("academy", "", "The academy of an ACADEMY user.")
	tokenName := tokenCmd.String("name", "", "The user's name.")
	tokenEmail := tokenCmd.String("email", "", "The user's email.")

	paymentCmd := flag.NewFlagSet("enqueue-payment", flag.ContinueOnError)
	paymentCmd.SetOutput(cli.out)
	paymentExam := paymentCmd.String("exam", "", "The purchased exam.")
	paymentAcademy := paymentCmd.String("academy", "", "The buying academy.")
	paymentQty := paymentCmd.Int("quantity", 1, "The number of licenses.")
	paymentID := paymentCmd.String("payment", "", "The payment processor's id.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "sweep":
		return cli.sweep()
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		usr := user.User{ID: *tokenID, Name: *tokenName, Email: *tokenEmail, Role: user.Role(*tokenRole), AcademyID: *tokenAcademy}
		if err := usr.Validate(); err != nil {
			tokenCmd.Usage()
			return err
		}
		return cli.token(usr)
	case "enqueue-payment":
		if err := paymentCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *paymentExam == "" || *paymentAcademy == "" || *paymentID == "" {
			paymentCmd.Usage()
			return errHelp
		}
		return cli.enqueuePayment(ledger.PaymentConfirmation{
			ExamID:    *paymentExam,
			AcademyID: *paymentAcademy,
			Quantity:  *paymentQty,
			PaymentID: *paymentID,
		})
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) sweep() error {
	swept, err := cli.grading.SweepExpired(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d expired sessions submitted\n", swept)
	return nil
}

func (cli *commandLine) token(usr user.User) error {
	token, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr, cli.conf), cli.conf.SecretKey)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}

func (cli *commandLine) enqueuePayment(pc ledger.PaymentConfirmation) error {
	client, err := cli.queue()
	if err != nil {
		return err
	}
	if err = queuesvc.EnqueuePayment(context.Background(), client, cli.conf, pc); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "payment %s queued on %s\n", pc.PaymentID, cli.conf.Redis.PaymentQueue)
	return nil
}
