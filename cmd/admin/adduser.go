package main

import (
	"context"

	"go.uber.org/zap"

	"coursetrack/internal/attendance"
)

// addUser creates a user.User with its profile.
func (cli *commandLine) addUser(ctx context.Context, nu attendance.NewUser) error {
	usr, prof, err := cli.svc.Register(ctx, nu)
	if err != nil {
		return err
	}
	cli.log.Info("user created",
		zap.String("id", usr.ID),
		zap.String("username", usr.Username),
		zap.String("role", string(prof.Role)),
	)
	return nil
}
