package main

import (
	"context"

	"github.com/pkg/errors"
)

func (cli *commandLine) migrate(ctx context.Context) error {
	if cli.migrator == nil {
		return errors.New("no database configured")
	}
	if err := cli.migrator.Migrate(ctx); err != nil {
		return err
	}
	cli.log.Info("schema up to date")
	return nil
}
