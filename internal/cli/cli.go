// Package cli provides the command line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/ingest/internal/config"
	"github.com/temirov/ingest/internal/ingest"
	"github.com/temirov/ingest/internal/metrics"
	"github.com/temirov/ingest/internal/services/clipboard"
	"github.com/temirov/ingest/internal/types"
	"github.com/temirov/ingest/internal/utils"
)

const (
	refFlagName               = "ref"
	subpathFlagName           = "subpath"
	includeFlagName           = "include"
	includeFlagShorthand      = "i"
	excludeFlagName           = "exclude"
	excludeFlagShorthand      = "e"
	maxFileSizeFlagName       = "max-file-size"
	maxTotalSizeFlagName      = "max-total-size"
	maxFilesFlagName          = "max-files"
	includeGitignoredFlagName = "include-gitignored"
	includeSubmodulesFlagName = "include-submodules"
	tokenFlagName             = "token"
	formatFlagName            = "format"
	outputFlagName            = "output"
	outputFlagShorthand       = "o"
	copyFlagName              = "copy"
	configFlagName            = "config"
	versionFlagName           = "version"
	metricsFlagName           = "metrics"
	standardOutputPath        = "-"

	rootUse              = "ingest <source>"
	rootShortDescription = "turn a repository or directory into a text digest"
	rootLongDescription  = `ingest reads a local directory or a remote git repository and produces a digest:
a summary, a directory tree, and the concatenated content of every admitted file.
The source may be a path, an https URL, an SSH address, or a host/owner/repo slug;
browse URLs such as https://github.com/owner/repo/tree/main/docs select the ref and subpath.
Identical requests are served from the digest cache while the entry is fresh.`
	rootUsageExample = `  # Digest the current directory
  ingest .

  # Digest the docs of a tagged release as JSON
  ingest https://github.com/acme/widgets --ref v1.2.0 --subpath docs --format json

  # Only Go files, larger limits, written to a file and the clipboard
  ingest ./service -i '*.go' --max-file-size 2MiB -o digest.txt --copy`

	refFlagDescription               = "branch, tag, or commit to ingest (default branch when empty)"
	subpathFlagDescription           = "directory or file inside the source to ingest"
	includeFlagDescription           = "include pattern; repeat or separate with commas"
	excludeFlagDescription           = "exclude pattern; repeat or separate with commas"
	maxFileSizeFlagDescription       = "largest file whose content is included, e.g. 10MiB"
	maxTotalSizeFlagDescription      = "content budget for the whole digest, e.g. 500MiB"
	maxFilesFlagDescription          = "maximum number of files admitted into the digest"
	includeGitignoredFlagDescription = "do not apply .gitignore and .ignore files"
	includeSubmodulesFlagDescription = "check out submodules of remote repositories"
	tokenFlagDescription             = "access token for private repositories (defaults to $" + ingest.CredentialEnvironmentVariable + ")"
	formatFlagDescription            = "output format: raw or json"
	outputFlagDescription            = "write the digest to this file instead of standard output ('-' for standard output)"
	copyFlagDescription              = "copy the digest to the system clipboard"
	configFlagDescription            = "path to a configuration file (default ./" + utils.ConfigFileName + ")"
	versionFlagDescription           = "display application version"
	metricsFlagDescription           = "write pipeline metrics to standard error after the run"

	versionTemplate = "ingest version: %s\n"

	errorLoadConfigurationFormat = "loading configuration: %w"
	errorIngestFormat            = "ingesting %s: %w"
	warningWriteMetrics          = "writing metrics failed"
)

// ingestOptions holds the flag values of one invocation.
type ingestOptions struct {
	ref               string
	subpath           string
	includePatterns   []string
	excludePatterns   []string
	maxFileSize       int64
	maxTotalSize      int64
	maxFiles          int
	includeGitignored bool
	includeSubmodules bool
	token             string
	format            string
	outputPath        string
	copyToClipboard   bool
	configPath        string
	printMetrics      bool
}

// dependencies are the process level collaborators a command runs with.
type dependencies struct {
	logger *zap.Logger
	stdout io.Writer
	stderr io.Writer
	copier clipboard.Copier
}

// Execute runs the ingest application.
func Execute(logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCommand := createRootCommand(dependencies{
		logger: utils.LoggerOrNop(logger),
		stdout: os.Stdout,
		stderr: os.Stderr,
		copier: clipboard.NewService(),
	})
	rootCommand.SetArgs(normalizeSwitchArguments(rootCommand, os.Args[1:]))
	return rootCommand.ExecuteContext(ctx)
}

// createRootCommand builds the root Cobra command.
func createRootCommand(deps dependencies) *cobra.Command {
	var showVersion bool
	options := ingestOptions{format: types.FormatRaw}

	rootCommand := &cobra.Command{
		Use:          rootUse,
		Short:        rootShortDescription,
		Long:         rootLongDescription,
		Example:      rootUsageExample,
		SilenceUsage: true,
		Args: func(command *cobra.Command, arguments []string) error {
			if showVersion {
				return nil
			}
			return cobra.ExactArgs(1)(command, arguments)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			if showVersion {
				_, writeError := fmt.Fprintf(command.OutOrStdout(), versionTemplate, utils.GetApplicationVersion())
				return writeError
			}
			return runIngest(command.Context(), deps, options, arguments[0])
		},
	}
	rootCommand.SetOut(deps.stdout)

	flags := rootCommand.Flags()
	flags.StringVar(&options.ref, refFlagName, "", refFlagDescription)
	flags.StringVar(&options.subpath, subpathFlagName, "", subpathFlagDescription)
	flags.StringArrayVarP(&options.includePatterns, includeFlagName, includeFlagShorthand, nil, includeFlagDescription)
	flags.StringArrayVarP(&options.excludePatterns, excludeFlagName, excludeFlagShorthand, nil, excludeFlagDescription)
	registerByteSizeFlag(flags, &options.maxFileSize, maxFileSizeFlagName, maxFileSizeFlagDescription)
	registerByteSizeFlag(flags, &options.maxTotalSize, maxTotalSizeFlagName, maxTotalSizeFlagDescription)
	flags.IntVar(&options.maxFiles, maxFilesFlagName, 0, maxFilesFlagDescription)
	registerSwitchFlag(flags, &options.includeGitignored, includeGitignoredFlagName, false, includeGitignoredFlagDescription)
	registerSwitchFlag(flags, &options.includeSubmodules, includeSubmodulesFlagName, false, includeSubmodulesFlagDescription)
	flags.StringVar(&options.token, tokenFlagName, "", tokenFlagDescription)
	flags.Var(&formatFlagValue{target: &options.format}, formatFlagName, formatFlagDescription)
	flags.StringVarP(&options.outputPath, outputFlagName, outputFlagShorthand, "", outputFlagDescription)
	registerSwitchFlag(flags, &options.copyToClipboard, copyFlagName, false, copyFlagDescription)
	flags.StringVar(&options.configPath, configFlagName, "", configFlagDescription)
	registerSwitchFlag(flags, &options.printMetrics, metricsFlagName, false, metricsFlagDescription)
	flags.BoolVar(&showVersion, versionFlagName, false, versionFlagDescription)

	rootCommand.AddCommand(createInitCommand())
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

// runIngest loads configuration, builds the pipeline, and emits one digest.
func runIngest(ctx context.Context, deps dependencies, options ingestOptions, sourceArgument string) error {
	applicationConfiguration, loadError := config.LoadApplicationConfiguration(config.LoadOptions{ExplicitFilePath: options.configPath})
	if loadError != nil {
		return fmt.Errorf(errorLoadConfigurationFormat, loadError)
	}

	wired, buildError := newPipeline(applicationConfiguration, deps.logger)
	if buildError != nil {
		return buildError
	}
	defer wired.Close()

	request := options.request(sourceArgument, applicationConfiguration.Limits)
	artifact, ingestError := wired.service.Ingest(ctx, request)
	if options.printMetrics && deps.stderr != nil {
		if writeError := metrics.WriteText(deps.stderr, wired.registry); writeError != nil {
			deps.logger.Warn(warningWriteMetrics, zap.Error(writeError))
		}
	}
	if ingestError != nil {
		return fmt.Errorf(errorIngestFormat, sourceArgument, ingestError)
	}
	return emitArtifact(deps, artifact, options)
}

// request builds the ingestion request. Flags win over configured limits; anything
// still zero takes the built-in default during normalization.
func (options ingestOptions) request(sourceArgument string, limits config.LimitsConfiguration) types.IngestionRequest {
	request := types.IngestionRequest{
		Source:            sourceArgument,
		Ref:               options.ref,
		Subpath:           options.subpath,
		IncludePatterns:   options.includePatterns,
		ExcludePatterns:   options.excludePatterns,
		MaxFileSize:       limits.MaxFileSize,
		MaxTotalSize:      limits.MaxTotalSize,
		MaxFileCount:      limits.MaxFileCount,
		IncludeGitignored: options.includeGitignored,
		IncludeSubmodules: options.includeSubmodules,
		Credential:        options.token,
	}
	if options.maxFileSize > 0 {
		request.MaxFileSize = options.maxFileSize
	}
	if options.maxTotalSize > 0 {
		request.MaxTotalSize = options.maxTotalSize
	}
	if options.maxFiles > 0 {
		request.MaxFileCount = options.maxFiles
	}
	return request
}
