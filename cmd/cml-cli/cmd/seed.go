package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BackendStack21/cml-go/utils"
)

const seedSize = 32

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Print a fresh random seed for --seed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for {
				seed, err := utils.SecureRandomBytes(seedSize)
				if err != nil {
					return err
				}
				// a draw can fail the entropy checks by chance
				if utils.ValidateSeedEntropy(seed) != nil {
					continue
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(seed))
				return err
			}
		},
	}
}
