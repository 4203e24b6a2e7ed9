package main

import (
	"fmt"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/course"
	"github.com/alphazero/academy/core/passcode"
	"github.com/alphazero/academy/core/user"
	logsvc "github.com/alphazero/academy/services/logger"
	"github.com/alphazero/academy/storage/database"
	"github.com/alphazero/academy/storage/database/sqlxrepos"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	logger = logsvc.New("ADMIN : ", conf)
	if conf.IsInMemory() {
		logger.Fatal("the admin CLI needs a PostgreSQL database")
	}

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)

	validate, translator := newValidator()

	// start CLI
	cli := commandLine{
		db:         db.DB,
		usrRepo:    sqlxrepos.NewUserRepository(db),
		courseRepo: sqlxrepos.NewCourseRepository(db),
		passcodes:  passcode.NewService(sqlxrepos.NewPassCodeRepository(db), database.NewTxRunner(db)),
		validate:   validate,
		translator: translator,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			fmt.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(fmt.Sprintf("%+v", err), err)
	}
}

// newValidator registers the same validators as the API.
func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	course.InitValidators(validate, translator)
	passcode.InitValidators(validate, translator)
	return validate, translator
}
