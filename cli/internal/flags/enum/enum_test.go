package enum_test

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"ocm.software/open-component-model/appmodel/cli/internal/flags/enum"
)

func TestEnum(t *testing.T) {
	r := require.New(t)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	enum.VarP(fs, "output", "o", []string{"table", "json", "yaml"}, "output format")
	fs.String("plain", "", "")

	v, err := enum.Get(fs, "output")
	r.NoError(err)
	r.Equal("table", v, "first option is the default")

	r.NoError(fs.Parse([]string{"-o", "yaml"}))
	v, err = enum.Get(fs, "output")
	r.NoError(err)
	r.Equal("yaml", v)

	err = fs.Parse([]string{"--output", "xml"})
	r.ErrorContains(err, "must be one of table, json, yaml")

	_, err = enum.Get(fs, "plain")
	r.Error(err)
	_, err = enum.Get(fs, "missing")
	r.Error(err)
}
