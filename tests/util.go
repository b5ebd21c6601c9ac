package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/examportal/core"
	"github.com/trezcool/examportal/core/certificate"
	"github.com/trezcool/examportal/core/enrollment"
	"github.com/trezcool/examportal/core/exam"
	"github.com/trezcool/examportal/core/grading"
	"github.com/trezcool/examportal/core/ledger"
	"github.com/trezcool/examportal/core/user"
	emailsvc "github.com/trezcool/examportal/services/email"
	inmemdb "github.com/trezcool/examportal/storage/database/inmem"
)

// Services bundles an in-memory store with every core service wired on top of it.
type Services struct {
	Conf       *core.Config
	Validate   *validator.Validate
	Translator ut.Translator
	Logger     *Logger
	Mail       *emailsvc.ConsoleServiceMock

	DB           *inmemdb.DB
	Tx           core.Transactor
	Exams        exam.Repository
	Purchases    ledger.Repository
	Enrollments  enrollment.Repository
	Certificates certificate.Repository

	ExamSvc        *exam.Service
	LedgerSvc      *ledger.Service
	EnrollmentSvc  *enrollment.Service
	CertificateSvc *certificate.Service
	GradingSvc     *grading.Service
}

func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.TestMode = true
	conf.Exam.SubmitGrace = 30 * time.Second
	conf.Exam.CertificatePrefix = "CERT"
	return conf
}

func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	exam.InitValidators(validate, translator)
	enrollment.InitValidators(validate, translator)
	return validate, translator
}

func PrepareServices(t *testing.T) *Services {
	t.Helper()

	s := &Services{Conf: NewConfig(), Logger: new(Logger)}
	s.Validate, s.Translator = NewValidator()
	core.ParseEmailTemplates(s.Logger)
	s.Mail = emailsvc.NewConsoleServiceMock(s.Conf)

	s.DB = inmemdb.Open()
	s.Tx = inmemdb.NewTransactor(s.DB)
	s.Exams = inmemdb.NewExamRepository(s.DB)
	s.Purchases = inmemdb.NewLedgerRepository(s.DB)
	s.Enrollments = inmemdb.NewEnrollmentRepository(s.DB)
	s.Certificates = inmemdb.NewCertificateRepository(s.DB)

	s.ExamSvc = exam.NewService(s.Exams, s.Tx, s.Validate)
	s.LedgerSvc = ledger.NewService(s.Purchases, s.Exams, s.Tx, s.Validate)
	s.EnrollmentSvc = enrollment.NewService(s.Enrollments, s.Exams, s.LedgerSvc, s.Tx, s.Validate, s.Conf)
	s.CertificateSvc = certificate.NewService(s.Certificates, s.Mail, s.Conf)
	s.GradingSvc = grading.NewService(s.Enrollments, s.Exams, s.CertificateSvc, s.Tx, s.Validate, s.Logger, s.Conf)
	return s
}

// FreezeTime stops core.NowFunc at `at` until the test ends. The returned func moves the clock.
func FreezeTime(t *testing.T, at time.Time) (advance func(d time.Duration)) {
	t.Helper()

	var mu sync.Mutex
	now := at.UTC()
	orig := core.NowFunc
	core.NowFunc = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	t.Cleanup(func() { core.NowFunc = orig })

	return func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}
}

// Actors

func Admin() user.User {
	return user.User{ID: "admin-1", Name: "Admin", Email: "admin@test.cd", Role: user.RoleSuperAdmin}
}

func Academy(academyID string) user.User {
	return user.User{
		ID:        "staff-" + academyID,
		Name:      "Staff " + academyID,
		Email:     "staff@" + academyID + ".cd",
		Role:      user.RoleAcademy,
		AcademyID: academyID,
	}
}

func Student(id string) user.User {
	return user.User{ID: id, Name: "Student " + id, Email: id + "@test.cd", Role: user.RoleStudent}
}

// Fixtures

// ChoiceQuestion returns a MULTIPLE_CHOICE question with n options, of which only the one at index correct is right.
func ChoiceQuestion(text string, points, n, correct int) exam.Question {
	q := exam.Question{Text: text, Type: exam.TypeMultipleChoice, Points: points}
	for i := 0; i < n; i++ {
		q.Options = append(q.Options, exam.Option{Text: fmt.Sprintf("%s #%d", text, i+1), IsCorrect: i == correct, Position: i})
	}
	return q
}

func TrueFalseQuestion(text string, points int, answer bool) exam.Question {
	return exam.Question{
		Text:   text,
		Type:   exam.TypeTrueFalse,
		Points: points,
		Options: []exam.Option{
			{Text: "True", IsCorrect: answer, Position: 0},
			{Text: "False", IsCorrect: !answer, Position: 1},
		},
	}
}

func ShortAnswerQuestion(text string, points int) exam.Question {
	return exam.Question{Text: text, Type: exam.TypeShortAnswer, Points: points}
}

// CreateExam stores an exam of academyID with the given questions, bypassing authoring rules.
func CreateExam(
	t *testing.T,
	repo exam.Repository,
	academyID string,
	status exam.Status,
	price int64,
	passingScore int,
	questions ...exam.Question,
) (exam.Exam, []exam.Question) {
	t.Helper()

	now := core.NowFunc()
	e, err := repo.CreateExam(context.Background(), exam.Exam{
		AcademyID:       academyID,
		Title:           "Exam of " + academyID,
		DurationMinutes: 30,
		PassingScore:    passingScore,
		Price:           price,
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		t.Fatalf("CreateExam() failed: %v", err)
	}

	created := make([]exam.Question, 0, len(questions))
	for i, q := range questions {
		q.ExamID = e.ID
		q.Position = i
		q, err = repo.CreateQuestion(context.Background(), q)
		if err != nil {
			t.Fatalf("CreateQuestion() failed: %v", err)
		}
		created = append(created, q)
	}
	return e, created
}

// Pick returns the answer selecting the option at index idx of q.
func Pick(q exam.Question, idx int) enrollment.AnswerInput {
	return enrollment.AnswerInput{QuestionID: q.ID, SelectedOptionID: null.StringFrom(q.Options[idx].ID)}
}

// PickCorrect returns the answer selecting the first correct option of q.
func PickCorrect(q exam.Question) enrollment.AnswerInput {
	for i, opt := range q.Options {
		if opt.IsCorrect {
			return Pick(q, i)
		}
	}
	panic("question has no correct option")
}

// PickWrong returns the answer selecting the first wrong option of q.
func PickWrong(q exam.Question) enrollment.AnswerInput {
	for i, opt := range q.Options {
		if !opt.IsCorrect {
			return Pick(q, i)
		}
	}
	panic("question has no wrong option")
}

func Write(q exam.Question, text string) enrollment.AnswerInput {
	return enrollment.AnswerInput{QuestionID: q.ID, TextAnswer: null.StringFrom(text)}
}

// Logger records what it is given.
type Logger struct {
	mu       sync.Mutex
	Messages []string
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, level+": "+msg)
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("DEBUG", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("INFO", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("WARN", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("ERROR", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.log("FATAL", msg) }

// CreateExamTitled stores a free exam of academyID with a single short answer question.
func CreateExamTitled(t *testing.T, repo exam.Repository, academyID, title string, status exam.Status) exam.Exam {
	t.Helper()

	e, _ := CreateExam(t, repo, academyID, status, 0, 50, ShortAnswerQuestion("Why?", 1))
	e.Title = title
	e, err := repo.UpdateExam(context.Background(), e)
	if err != nil {
		t.Fatalf("UpdateExam() failed: %v", err)
	}
	return e
}
