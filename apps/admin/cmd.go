package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/alphazero/academy/core/course"
	"github.com/alphazero/academy/core/passcode"
	"github.com/alphazero/academy/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sql.DB
	usrRepo    user.Repository
	courseRepo course.Repository
	passcodes  *passcode.Service
	validate   *validator.Validate
	translator ut.Translator
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS...]                                  - run a goose command (up, down, status, ...)")
	fmt.Println("  adduser -name NAME -email EMAIL [-role ROLE]               - create a user or update its password and role")
	fmt.Println("  resetpassword -email EMAIL                                 - reset a user's password")
	fmt.Println("  grant -email EMAIL -courses ID[,ID...]                     - give a student access to courses")
	fmt.Println("  passcode [-count N] -courses ID[,ID...]                    - generate unassigned pass codes")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserRole := addUserCmd.String("role", user.RoleAdmin, "One of "+strings.Join(user.AllRoles, ", ")+".")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	grantCmd := flag.NewFlagSet("grant", flag.ContinueOnError)
	grantEmail := grantCmd.String("email", "", "The student's email.")
	grantCourses := grantCmd.String("courses", "", "Comma separated course IDs.")

	passCodeCmd := flag.NewFlagSet("passcode", flag.ContinueOnError)
	passCodeCount := passCodeCmd.Int("count", 1, "How many pass codes to generate.")
	passCodeCourses := passCodeCmd.String("courses", "", "Comma separated course IDs.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserEmail, pwd, *addUserRole)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "grant":
		if err := grantCmd.Parse(args[2:]); err != nil {
			return err
		}
		courseIDs := splitIDs(*grantCourses)
		if *grantEmail == "" || len(courseIDs) == 0 {
			grantCmd.Usage()
			return errHelp
		}
		pc, err := cli.grant(*grantEmail, courseIDs)
		if err != nil {
			return err
		}
		fmt.Printf("pass code %s grants %d course(s)\n", pc.Code, len(pc.CourseIDs))
		return nil

	case "passcode":
		if err := passCodeCmd.Parse(args[2:]); err != nil {
			return err
		}
		courseIDs := splitIDs(*passCodeCourses)
		if len(courseIDs) == 0 {
			passCodeCmd.Usage()
			return errHelp
		}
		codes, err := cli.generatePassCodes(*passCodeCount, courseIDs)
		if err != nil {
			return err
		}
		for _, pc := range codes {
			fmt.Println(pc.Code)
		}
		return nil

	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
