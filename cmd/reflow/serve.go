package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"reflow/server"
	"reflow/state"
)

func serve(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	root := cmd.Args().Get(0)
	if len(root) == 0 {
		var err error
		if root, err = os.Getwd(); err != nil {
			return err
		}
	}
	return server.Run(ctx, root, env.Log.Named("server"))
}
