// Package enum provides a string flag restricted to a fixed set of values.
package enum

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/pflag"
)

const Type = "enum"

// Flag holds one of its options. The first option is the default.
type Flag struct {
	value   *string
	options []string
}

func (f *Flag) String() string {
	return *f.value
}

func (f *Flag) Set(s string) error {
	if !slices.Contains(f.options, s) {
		return fmt.Errorf("must be one of %s", strings.Join(f.options, ", "))
	}
	*f.value = s
	return nil
}

func (f *Flag) Type() string {
	return Type
}

func newFlag(options []string) *Flag {
	if len(options) == 0 {
		panic("enum flag needs at least one option")
	}
	value := options[0]
	return &Flag{value: &value, options: options}
}

// Var defines an enum flag with the given options.
func Var(f *pflag.FlagSet, name string, options []string, usage string) {
	VarP(f, name, "", options, usage)
}

func VarP(f *pflag.FlagSet, name, shorthand string, options []string, usage string) {
	flag := newFlag(options)
	f.VarPF(flag, name, shorthand, fmt.Sprintf("%s (must be one of %s)", usage, strings.Join(options, ", ")))
}

// Get returns the value of an enum flag.
func Get(f *pflag.FlagSet, name string) (string, error) {
	flag := f.Lookup(name)
	if flag == nil {
		return "", fmt.Errorf("flag accessed but not defined: %s", name)
	}
	if flag.Value.Type() != Type {
		return "", fmt.Errorf("trying to get %s value of flag of type %s", Type, flag.Value.Type())
	}
	return flag.Value.String(), nil
}
