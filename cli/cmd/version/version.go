package version

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"ocm.software/open-component-model/appmodel/cli/internal/flags/enum"
	"ocm.software/open-component-model/appmodel/cli/internal/version"
)

const (
	FlagFormat            = "format"
	FlagFormatShortHand   = "f"
	FlagFormatJSON        = "json"
	FlagFormatShort       = "short"
	FlagFormatGoBuildInfo = "gobuildinfo"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Retrieve the version of the appmodel CLI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := enum.Get(cmd.Flags(), FlagFormat)
			if err != nil {
				return err
			}
			bi, ok := debug.ReadBuildInfo()
			if !ok {
				return fmt.Errorf("no build info available")
			}
			if format == FlagFormatGoBuildInfo {
				_, err = io.Copy(cmd.OutOrStdout(), strings.NewReader(bi.String()))
				return err
			}
			info, err := version.FromBuildInfo(bi)
			if err != nil {
				return err
			}
			if format == FlagFormatShort {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), info.GitVersion)
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(info)
		},
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}

	enum.VarP(cmd.Flags(), FlagFormat, FlagFormatShortHand, []string{FlagFormatJSON, FlagFormatShort, FlagFormatGoBuildInfo}, "format of the version output")
	return cmd
}
