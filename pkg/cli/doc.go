/*
Package cli provides command-line utilities for the morpheus command.

The package includes output formatters, typed command errors, and signal
handling helpers.

Output formatting:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Signal handling, for commands that should stop on SIGINT/SIGTERM:

	ctx := cli.SetupSignalHandler()
	return srv.Start(ctx)
*/
package cli
