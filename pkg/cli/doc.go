/*
Package cli provides command-line utilities shared by the mcpd
subcommands: typed command errors, output formatting and signal
handling.

Output Formatting:

Command results render as text or JSON:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx := cli.SetupSignalHandler()
	// ctx is cancelled when a shutdown signal arrives
*/
package cli
