package cliutil

import (
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"
)

// SplitArgs separates args (without the program name) into the options
// meant for the flag parser and the positional arguments, keeping the order
// within each group. Numbers such as "-20" are positional, flags listed as
// taking a value consume the following argument, and everything after a
// literal "--" is positional.
//
// The flag parser only ever sees the options, so a negative percentage can
// follow any flag without being mistaken for one.
func SplitArgs(args []string, flags []cli.Flag) (options, positional []string) {
	takesValue := valueFlags(flags)

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--":
			return options, append(positional, args[i+1:]...)
		case a == "-" || !strings.HasPrefix(a, "-") || isNumber(a):
			positional = append(positional, a)
			continue
		}

		options = append(options, a)
		name, _, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !hasValue && takesValue[name] && i+1 < len(args) {
			i++
			options = append(options, args[i])
		}
	}
	return options, positional
}

func valueFlags(flags []cli.Flag) map[string]bool {
	m := make(map[string]bool)
	for _, f := range flags {
		_, isBool := f.(*cli.BoolFlag)
		for _, n := range f.Names() {
			m[n] = !isBool
		}
	}
	return m
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
