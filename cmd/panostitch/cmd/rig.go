package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/panostitch/internal/pipeline"
	"github.com/spf13/cobra"
)

func (a *app) newRigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rig",
		Short: "Describe the configured camera rig",
		Long: `Load the rig calibration without reading any image and print each
camera's type, focal length, focal scale and cylinder yaw.

Examples:
  panostitch rig --cameras 3 --base-dir ./rig
  panostitch rig --config rig.yaml --format json`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			if err := validateFormat(format); err != nil {
				return err
			}
			if !a.cfg.HasRig() {
				return errNoRig
			}
			spec, err := a.cfg.ToRigSpec()
			if err != nil {
				return err
			}
			report, err := pipeline.DescribeRig(spec)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == outputFormatJSON {
				s, err := pipeline.ToJSON(report)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, s)
				return err
			}
			return pipeline.WriteRigTable(out, report)
		},
	}

	addRigFlags(cmd)
	cmd.Flags().StringP("format", "f", outputFormatText, "output format (text, json)")
	a.bind(cmd, rigFlagBindings()...)
	return cmd
}
