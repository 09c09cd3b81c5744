// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-redfish.
//
// go-redfish is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-redfish/pkg/cli"
	"github.com/jeremyhahn/go-redfish/pkg/common"
	"github.com/jeremyhahn/go-redfish/pkg/local"
	"github.com/jeremyhahn/go-redfish/pkg/version"
)

var (
	settingsFile string
	viperConfig  *viper.Viper
	globalConfig *cli.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fishtool",
	Short: "A CLI tool for Redfish filesystems",
	Long: `fishtool runs filesystem commands against a Redfish deployment.

The deployment is described by a Redfish configuration file (--config),
the same file applications pass as fs.redfish.configFile. Relative paths
resolve against --cwd, which defaults to /user/<name>.

Settings can be provided via:
  - Command-line flags (highest priority)
  - Environment variables (FISHTOOL_*)
  - Settings file (~/.fishtool.yaml or ./.fishtool.yaml)`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		viperConfig, err = cli.InitConfig(settingsFile)
		if err != nil {
			return err
		}
		if err := viperConfig.BindPFlags(cmd.Flags()); err != nil {
			return fmt.Errorf("failed to bind flags: %w", err)
		}
		globalConfig = cli.GetConfig(viperConfig)
		return nil
	},
}

// run opens a command context for the duration of fn and prints any error
// in the selected output format.
func run(fn func(ctx context.Context, cc *cli.CommandContext, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		format := cli.OutputFormat(globalConfig.OutputFormat)

		cc, err := cli.NewCommandContext(ctx, globalConfig)
		if err != nil {
			fmt.Fprint(cmd.ErrOrStderr(), cli.FormatError(err, format))
			return err
		}
		defer func() { _ = cc.Close(ctx) }()

		if err := fn(ctx, cc, cmd, args); err != nil {
			fmt.Fprint(cmd.ErrOrStderr(), cli.FormatError(err, format))
			return err
		}
		return nil
	}
}

func printResult(cmd *cobra.Command, cc *cli.CommandContext, message string) {
	fmt.Fprint(cmd.OutOrStdout(), cli.FormatOperationResult(&cli.OperationResult{Success: true, Message: message}, cc.Format()))
}

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a directory",
	Example: `  fishtool ls                       # List the working directory
  fishtool ls /user/alice/data -o table`,
	Args: cobra.MaximumNArgs(1),
	RunE: run(func(ctx context.Context, cc *cli.CommandContext, cmd *cobra.Command, args []string) error {
		p := "."
		if len(args) > 0 {
			p = args[0]
		}
		entries, err := cc.ListCommand(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), cli.FormatStatusList(entries, cc.Format()))
		return nil
	}),
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a directory and its parents",
	Args:  cobra.ExactArgs(1),
	RunE: run(func(ctx context.Context, cc *cli.CommandContext, cmd *cobra.Command, args []string) error {
		modeArg, _ := cmd.Flags().GetString("mode") //nolint:errcheck // flags are validated by cobra
		mode, err := cli.ParseMode(modeArg)
		if err != nil {
			return err
		}
		created, err := cc.MkdirCommand(ctx, args[0], mode)
		if err != nil {
			return err
		}
		if created {
			printResult(cmd, cc, fmt.Sprintf("Created '%s'", args[0]))
		} else {
			printResult(cmd, cc, fmt.Sprintf("'%s' already exists", args[0]))
		}
		return nil
	}),
}

var putCmd = &cobra.Command{
	Use:   "put <local-file> <path>",
	Short: "Upload a local file",
	Long:  `Upload a local file. Use '-' as the local file to read from stdin.`,
	Example: `  fishtool put report.csv data/report.csv
  cat log.txt | fishtool put - logs/today.txt --overwrite`,
	Args: cobra.ExactArgs(2),
	RunE: run(func(ctx context.Context, cc *cli.CommandContext, cmd *cobra.Command, args []string) error {
		overwrite, _ := cmd.Flags().GetBool("overwrite") //nolint:errcheck // flags are validated by cobra
		var (
			n   int64
			err error
		)
		if args[0] == "-" {
			n, err = cc.PutReader(ctx, cmd.InOrStdin(), args[1], common.CreateOptions{Overwrite: overwrite})
		} else {
			n, err = cc.PutCommand(ctx, args[0], args[1], overwrite)
		}
		if err != nil {
			return err
		}
		printResult(cmd, cc, fmt.Sprintf("Uploaded %d bytes to '%s'", n, args[1]))
		return nil
	}),
}

var getCmd = &cobra.Command{
	Use:   "get <path> [local-file]",
	Short: "Download a file",
	Long:  `Download a file. Without a local file, or with '-', the content is written to stdout.`,
	Args:  cobra.RangeArgs(1, 2),
	RunE: run(func(ctx context.Context, cc *cli.CommandContext, cmd *cobra.Command, args []string) error {
		dst := ""
		if len(args) > 1 {
			dst = args[1]
		}
		n, err := cc.GetCommand(ctx, args[0], dst, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if dst != "" && dst != "-" {
			printResult(cmd, cc, fmt.Sprintf("Downloaded %d bytes to '%s'", n, dst))
		}
		return nil
	}),
}

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print a file",
	Args:  cobra.ExactArgs(1),
	RunE: run(func(ctx context.Context, cc *cli.CommandContext, cmd *cobra.Command, args []string) error {
		_, err := cc.CatCommand(ctx, args[0], cmd.OutOrStdout())
		return err
	}),
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Remove a file or directory",
	Example: `  fishtool rm data/old.csv
  fishtool rm -r data/archive`,
	Args: cobra.ExactArgs(1),
	RunE: run(func(ctx context.Context, cc *cli.CommandContext, cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive") //nolint:errcheck // flags are validated by cobra
		if err := cc.RemoveCommand(ctx, args[0], recursive); err != nil {
			return err
		}
		printResult(cmd, cc, fmt.Sprintf("Removed '%s'", args[0]))
		return nil
	}),
}

var mvCmd = &cobra.Command{
	Use:   "mv <source> <destination>",
	Short: "Rename a file or directory",
	Args:  cobra.ExactArgs(2),
	RunE: run(func(ctx context.Context, cc *cli.CommandContext, cmd *cobra.Command, args []string) error {
		if err := cc.MoveCommand(ctx, args[0], args[1]); err != nil {
			return err
		}
		printResult(cmd, cc, fmt.Sprintf("Renamed '%s' to '%s'", args[0], args[1]))
		return nil
	}),
}

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Show the status of a path",
	Args:  cobra.ExactArgs(1),
	RunE: run(func(ctx context.Context, cc *cli.CommandContext, cmd *cobra.Command, args []string) error {
		st, err := cc.StatCommand(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), cli.FormatStatus(st, cc.Format()))
		return nil
	}),
}

var chmodCmd = &cobra.Command{
	Use:     "chmod <mode> <path>",
	Short:   "Change permission bits",
	Example: `  fishtool chmod 640 data/report.csv`,
	Args:    cobra.ExactArgs(2),
	RunE: run(func(ctx context.Context, cc *cli.CommandContext, cmd *cobra.Command, args []string) error {
		if err := cc.ChmodCommand(ctx, args[1], args[0]); err != nil {
			return err
		}
		printResult(cmd, cc, fmt.Sprintf("Changed mode of '%s' to %s", args[1], args[0]))
		return nil
	}),
}

var chownCmd = &cobra.Command{
	Use:   "chown <owner[:group]> <path>",
	Short: "Change owner and group",
	Example: `  fishtool chown bob data/report.csv
  fishtool chown :analysts data/report.csv`,
	Args: cobra.ExactArgs(2),
	RunE: run(func(ctx context.Context, cc *cli.CommandContext, cmd *cobra.Command, args []string) error {
		if err := cc.ChownCommand(ctx, args[1], args[0]); err != nil {
			return err
		}
		printResult(cmd, cc, fmt.Sprintf("Changed owner of '%s' to %s", args[1], args[0]))
		return nil
	}),
}

var touchCmd = &cobra.Command{
	Use:   "touch <path>",
	Short: "Create an empty file or update its times",
	Args:  cobra.ExactArgs(1),
	RunE: run(func(ctx context.Context, cc *cli.CommandContext, cmd *cobra.Command, args []string) error {
		if err := cc.TouchCommand(ctx, args[0], time.Now()); err != nil {
			return err
		}
		printResult(cmd, cc, fmt.Sprintf("Touched '%s'", args[0]))
		return nil
	}),
}

var locateCmd = &cobra.Command{
	Use:   "locate <path>",
	Short: "Show the block locations of a file",
	Args:  cobra.ExactArgs(1),
	RunE: run(func(ctx context.Context, cc *cli.CommandContext, cmd *cobra.Command, args []string) error {
		start, _ := cmd.Flags().GetInt64("start")   //nolint:errcheck // flags are validated by cobra
		length, _ := cmd.Flags().GetInt64("length") //nolint:errcheck // flags are validated by cobra
		blocks, err := cc.LocateCommand(ctx, args[0], start, length)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), cli.FormatBlockLocations(args[0], blocks, cc.Format()))
		return nil
	}),
}

var mkfsCmd = &cobra.Command{
	Use:   "mkfs <base-directory>",
	Short: "Format a directory for the local backend",
	Long:  `Create the data and metadata trees the local backend serves from.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format := cli.OutputFormat(globalConfig.OutputFormat)
		if err := local.Format(args[0]); err != nil {
			fmt.Fprint(cmd.ErrOrStderr(), cli.FormatError(err, format))
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), cli.FormatOperationResult(&cli.OperationResult{
			Success: true,
			Message: fmt.Sprintf("Formatted '%s'", args[0]),
		}, format))
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective settings",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), cli.DisplayConfig(globalConfig, cli.OutputFormat(globalConfig.OutputFormat)))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "fishtool", version.GetInfo())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "", "fishtool settings file (default is $HOME/.fishtool.yaml)")
	rootCmd.PersistentFlags().String("config", "", "Redfish configuration file (fs.redfish.configFile)")
	rootCmd.PersistentFlags().StringP("output", "o", "text", "output format (text, json, yaml, table)")
	rootCmd.PersistentFlags().String("cwd", "", "working directory for relative paths (default /user/<name>)")
	rootCmd.PersistentFlags().String("user", "", "Redfish user name (default is the current OS user)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	mkdirCmd.Flags().String("mode", fmt.Sprintf("%o", uint32(common.DefaultDirMode)), "permission bits in octal")
	putCmd.Flags().Bool("overwrite", false, "replace an existing file")
	rmCmd.Flags().BoolP("recursive", "r", false, "remove directories and their contents")
	locateCmd.Flags().Int64("start", 0, "first byte of the range")
	locateCmd.Flags().Int64("length", -1, "length of the range (default to end of file)")

	rootCmd.AddCommand(lsCmd, mkdirCmd, putCmd, getCmd, catCmd, rmCmd, mvCmd, statCmd,
		chmodCmd, chownCmd, touchCmd, locateCmd, mkfsCmd, configCmd, versionCmd)
}
