package dig_container

import (
	"fmt"
	"log"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/examportal/apps/api/echo"
	"github.com/trezcool/examportal/core"
	"github.com/trezcool/examportal/core/certificate"
	"github.com/trezcool/examportal/core/enrollment"
	"github.com/trezcool/examportal/core/exam"
	"github.com/trezcool/examportal/core/grading"
	"github.com/trezcool/examportal/core/ledger"
	emailsvc "github.com/trezcool/examportal/services/email"
	logsvc "github.com/trezcool/examportal/services/logger"
	queuesvc "github.com/trezcool/examportal/services/queue"
	"github.com/trezcool/examportal/storage/database"
	sqlxrepos "github.com/trezcool/examportal/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(nil, "API", conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(nil, "DB", conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	exam.InitValidators(validate, translator)
	enrollment.InitValidators(validate, translator)
	return validate
}

type servicesParam struct {
	dig.In
	Exams        *exam.Service
	Ledger       *ledger.Service
	Enrollments  *enrollment.Service
	Grading      *grading.Service
	Certificates *certificate.Service
}

func newServices(p servicesParam) echoapi.Services {
	return echoapi.Services{
		Exams:        p.Exams,
		Ledger:       p.Ledger,
		Enrollments:  p.Enrollments,
		Grading:      p.Grading,
		Certificates: p.Certificates,
	}
}

func newPaymentConsumer(client *redis.Client, ledgerSvc *ledger.Service, logger core.Logger, conf *core.Config) *queuesvc.PaymentConsumer {
	return queuesvc.NewPaymentConsumer(client, ledgerSvc, logger, conf)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(sqlxrepos.NewTransactor, dig.As(new(core.Transactor))))
	must(c.Provide(newEmailService))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))

	// repositories
	must(c.Provide(sqlxrepos.NewExamRepository, dig.As(new(exam.Repository))))
	must(c.Provide(sqlxrepos.NewLedgerRepository, dig.As(new(ledger.Repository))))
	must(c.Provide(sqlxrepos.NewEnrollmentRepository, dig.As(new(enrollment.Repository))))
	must(c.Provide(sqlxrepos.NewCertificateRepository, dig.As(new(certificate.Repository))))

	// services
	must(c.Provide(exam.NewService))
	must(c.Provide(ledger.NewService))
	must(c.Provide(enrollment.NewService))
	must(c.Provide(certificate.NewService))
	must(c.Provide(grading.NewService))
	must(c.Provide(newServices))
	must(c.Provide(echoapi.NewServer))

	// background workers
	must(c.Provide(queuesvc.NewRedisClient))
	must(c.Provide(newPaymentConsumer))
	must(c.Provide(grading.NewSweeper))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
