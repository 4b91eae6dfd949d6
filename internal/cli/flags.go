package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/temirov/ingest/internal/types"
)

const (
	switchFlagTypeName   = "switch"
	byteSizeFlagTypeName = "size"
	formatFlagTypeName   = "format"
	switchTrueLiteral    = "true"
	switchAcceptedValues = "true, false, yes, no, on, off, 1, 0"

	errorSwitchValueFormat   = "invalid boolean value %q for --%s; accepted values: %s"
	errorByteSizeValueFormat = "invalid size %q for --%s: %w"
	errorNegativeSizeFormat  = "size for --%s must not be negative"
	errorFormatValueFormat   = "invalid format %q; accepted values: %s, %s"
)

var switchLiterals = map[string]bool{
	"true":  true,
	"t":     true,
	"1":     true,
	"yes":   true,
	"y":     true,
	"on":    true,
	"false": false,
	"f":     false,
	"0":     false,
	"no":    false,
	"n":     false,
	"off":   false,
}

// switchFlagValue is a boolean flag that also accepts yes/no style literals,
// either attached (--copy=no) or as the next argument (--copy no).
type switchFlagValue struct {
	target  *bool
	flagKey string
}

func (value *switchFlagValue) Set(input string) error {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		normalized = switchTrueLiteral
	}
	parsed, known := switchLiterals[normalized]
	if !known {
		return fmt.Errorf(errorSwitchValueFormat, input, value.flagKey, switchAcceptedValues)
	}
	*value.target = parsed
	return nil
}

func (value *switchFlagValue) String() string {
	if value == nil || value.target == nil {
		return "false"
	}
	return strconv.FormatBool(*value.target)
}

func (value *switchFlagValue) Type() string {
	return switchFlagTypeName
}

func registerSwitchFlag(flagSet *pflag.FlagSet, target *bool, name string, defaultValue bool, usage string) {
	*target = defaultValue
	flagSet.Var(&switchFlagValue{target: target, flagKey: name}, name, usage)
	if lookup := flagSet.Lookup(name); lookup != nil {
		lookup.DefValue = strconv.FormatBool(defaultValue)
		lookup.NoOptDefVal = switchTrueLiteral
	}
}

// byteSizeFlagValue accepts plain byte counts and human sizes such as 10MiB or 500kB.
// Zero keeps the configured default.
type byteSizeFlagValue struct {
	target  *int64
	flagKey string
}

func (value *byteSizeFlagValue) Set(input string) error {
	trimmed := strings.TrimSpace(input)
	if strings.HasPrefix(trimmed, "-") {
		return fmt.Errorf(errorNegativeSizeFormat, value.flagKey)
	}
	parsed, parseError := humanize.ParseBytes(trimmed)
	if parseError != nil {
		return fmt.Errorf(errorByteSizeValueFormat, input, value.flagKey, parseError)
	}
	*value.target = int64(parsed)
	return nil
}

func (value *byteSizeFlagValue) String() string {
	if value == nil || value.target == nil || *value.target == 0 {
		return "0"
	}
	return humanize.IBytes(uint64(*value.target))
}

func (value *byteSizeFlagValue) Type() string {
	return byteSizeFlagTypeName
}

func registerByteSizeFlag(flagSet *pflag.FlagSet, target *int64, name string, usage string) {
	flagSet.Var(&byteSizeFlagValue{target: target, flagKey: name}, name, usage)
}

// formatFlagValue restricts --format to the supported renderings.
type formatFlagValue struct {
	target *string
}

func (value *formatFlagValue) Set(input string) error {
	normalized := strings.ToLower(strings.TrimSpace(input))
	switch normalized {
	case types.FormatRaw, types.FormatJSON:
		*value.target = normalized
		return nil
	default:
		return fmt.Errorf(errorFormatValueFormat, input, types.FormatRaw, types.FormatJSON)
	}
}

func (value *formatFlagValue) String() string {
	if value == nil || value.target == nil {
		return types.FormatRaw
	}
	return *value.target
}

func (value *formatFlagValue) Type() string {
	return formatFlagTypeName
}

// normalizeSwitchArguments rewrites "--flag literal" into "--flag=literal" for switch
// flags, so a following source argument is never swallowed as a flag value.
func normalizeSwitchArguments(command *cobra.Command, arguments []string) []string {
	if command == nil || len(arguments) == 0 {
		return arguments
	}
	switchFlags := map[string]struct{}{}
	collectSwitchFlagNames(command, switchFlags)
	if len(switchFlags) == 0 {
		return arguments
	}
	normalized := make([]string, 0, len(arguments))
	for index := 0; index < len(arguments); index++ {
		currentArgument := arguments[index]
		if currentArgument == "--" {
			normalized = append(normalized, arguments[index:]...)
			break
		}
		if strings.HasPrefix(currentArgument, "--") && !strings.Contains(currentArgument, "=") && index+1 < len(arguments) {
			flagName := strings.TrimPrefix(currentArgument, "--")
			nextArgument := arguments[index+1]
			if _, isSwitch := switchFlags[flagName]; isSwitch && !strings.HasPrefix(nextArgument, "-") {
				if _, isLiteral := switchLiterals[strings.ToLower(strings.TrimSpace(nextArgument))]; isLiteral {
					normalized = append(normalized, fmt.Sprintf("--%s=%s", flagName, nextArgument))
					index++
					continue
				}
			}
		}
		normalized = append(normalized, currentArgument)
	}
	return normalized
}

func collectSwitchFlagNames(command *cobra.Command, target map[string]struct{}) {
	visit := func(flagSet *pflag.FlagSet) {
		flagSet.VisitAll(func(flag *pflag.Flag) {
			if flag.Value != nil && flag.Value.Type() == switchFlagTypeName {
				target[flag.Name] = struct{}{}
			}
		})
	}
	visit(command.PersistentFlags())
	visit(command.Flags())
	for _, child := range command.Commands() {
		collectSwitchFlagNames(child, target)
	}
}
