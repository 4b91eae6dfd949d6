package source

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/temirov/ingest/internal/types"
)

const (
	gitExecutableName      = "git"
	gitTerminalPromptEnv   = "GIT_TERMINAL_PROMPT=0"
	authorizationHeaderKey = "http.https://%s/.extraheader=Authorization: Basic %s"
	oauthBasicUser         = "x-oauth-basic"
	redactedCredential     = "***"

	errorGitCommandFormat = "git %s: %v: %s"
)

// runGitCommand executes git in directory and returns its standard output. Tests
// replace it to avoid touching the network.
var runGitCommand = func(ctx context.Context, directory string, arguments ...string) ([]byte, error) {
	command := exec.CommandContext(ctx, gitExecutableName, arguments...)
	command.Dir = directory
	command.Env = append(os.Environ(), gitTerminalPromptEnv)
	var standardOutput, standardError bytes.Buffer
	command.Stdout = &standardOutput
	command.Stderr = &standardError
	if runError := command.Run(); runError != nil {
		return standardOutput.Bytes(), &gitCommandError{
			Arguments: arguments,
			Stderr:    strings.TrimSpace(standardError.String()),
			Err:       runError,
		}
	}
	return standardOutput.Bytes(), nil
}

// gitCommandError keeps the standard error of a failed git invocation for classification.
type gitCommandError struct {
	Arguments []string
	Stderr    string
	Err       error
}

func (commandError *gitCommandError) Error() string {
	return fmt.Sprintf(errorGitCommandFormat, strings.Join(commandError.Arguments, " "), commandError.Err, commandError.Stderr)
}

func (commandError *gitCommandError) Unwrap() error {
	return commandError.Err
}

// authArguments returns the config override that sends credential to host as a
// basic authorization header. The credential never appears in a URL.
func authArguments(host string, credential string) []string {
	if credential == "" {
		return nil
	}
	return []string{"-c", fmt.Sprintf(authorizationHeaderKey, host, basicAuthorization(credential))}
}

func basicAuthorization(credential string) string {
	return base64.StdEncoding.EncodeToString([]byte(oauthBasicUser + ":" + credential))
}

// redact removes credential and its encoded header form from text.
func redact(text string, credential string) string {
	if credential == "" {
		return text
	}
	text = strings.ReplaceAll(text, basicAuthorization(credential), redactedCredential)
	return strings.ReplaceAll(text, credential, redactedCredential)
}

var (
	authenticationMarkers = []string{
		"authentication failed",
		"could not read username",
		"could not read password",
		"invalid username or password",
		"returned error: 401",
		"returned error: 403",
		"permission denied",
	}
	notFoundMarkers = []string{
		"repository not found",
		"returned error: 404",
	}
)

// classifyGitError maps a failed git invocation onto the acquisition error taxonomy.
// Hosts answer 404 for private repositories, so a missing repository without a
// credential asks for one.
func classifyGitError(locator string, credential string, gitError error) error {
	if errors.Is(gitError, context.Canceled) || errors.Is(gitError, context.DeadlineExceeded) {
		return gitError
	}
	detail := gitError.Error()
	var commandError *gitCommandError
	if errors.As(gitError, &commandError) {
		detail = commandError.Stderr
		if detail == "" {
			detail = commandError.Err.Error()
		}
	}
	detail = redact(detail, credential)
	lowered := strings.ToLower(detail)

	kind := types.ErrCloneFailed
	if containsAny(lowered, authenticationMarkers) || containsAny(lowered, notFoundMarkers) {
		kind = types.ErrAuthenticationRequired
		if credential != "" {
			kind = types.ErrAuthenticationFailed
		}
	}
	return &types.SourceError{Locator: locator, Kind: kind, Detail: detail}
}

func isRetryable(err error) bool {
	return errors.Is(err, types.ErrCloneFailed)
}

func containsAny(text string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
