package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"

	"coursetrack/internal/attendance"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type migrator interface {
	Migrate(ctx context.Context) error
}

type commandLine struct {
	svc      *attendance.Service
	migrator migrator
	log      *zap.Logger
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate - create the database tables")
	fmt.Println("  adduser -username USERNAME -name NAME -role lecturer|student [-student-id ID] [-email EMAIL] [-phone PHONE] - create a user with a profile")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserUname := addUserCmd.String("username", "", "Login name. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "Full name.")
	addUserEmail := addUserCmd.String("email", "", "Email address.")
	addUserRole := addUserCmd.String("role", "", "lecturer or student.")
	addUserStudentID := addUserCmd.String("student-id", "", "Student number, required for students.")
	addUserPhone := addUserCmd.String("phone", "", "Phone number.")

	switch args[1] {
	case "migrate":
		return cli.migrate(ctx)
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserRole == "" {
			addUserCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(ctx, attendance.NewUser{
			Username:        *addUserUname,
			Name:            *addUserName,
			Email:           *addUserEmail,
			Password:        string(pwd),
			PasswordConfirm: string(pwd),
			Role:            attendance.Role(*addUserRole),
			StudentID:       *addUserStudentID,
			Phone:           *addUserPhone,
		})
	default:
		cli.printUsage()
		return errHelp
	}
}
