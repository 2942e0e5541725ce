package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChatSift/Social/internal/domain/leveling"
)

func newFormulaCommand() *cobra.Command {
	var (
		base, multiplier int64
		xp, level        int64
		table            int64
	)

	cmd := &cobra.Command{
		Use:   "formula",
		Short: "Evaluate the level formula for a base and multiplier",
		Example: `  leveler formula --base 100 --multiplier 50 --xp 1200
  leveler formula --base 100 --multiplier 50 --level 10
  leveler formula --base 100 --multiplier 50 --table 20`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := leveling.Formula{Base: base, Multiplier: multiplier}
			out := cmd.OutOrStdout()

			switch {
			case cmd.Flags().Changed("xp"):
				l, err := leveling.LevelFor(f, xp)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d xp is level %d\n", xp, l)
			case cmd.Flags().Changed("level"):
				total, err := leveling.CumulativeXPFor(f, level)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "level %d requires %d xp\n", level, total)
			case table > 0:
				fmt.Fprintln(out, "LEVEL\tTOTAL XP\tSTEP")
				prev := int64(0)
				for l := int64(1); l <= table; l++ {
					total, err := leveling.CumulativeXPFor(f, l)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%d\t%d\t%d\n", l, total, total-prev)
					prev = total
				}
			default:
				return errors.New("one of --xp, --level or --table is required")
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&base, "base", 0, "requiredXpBase setting")
	cmd.Flags().Int64Var(&multiplier, "multiplier", 0, "requiredXpMultiplier setting")
	cmd.Flags().Int64Var(&xp, "xp", 0, "print the level reached with this much xp")
	cmd.Flags().Int64Var(&level, "level", 0, "print the total xp needed for this level")
	cmd.Flags().Int64Var(&table, "table", 0, "print requirements for levels 1..n")
	_ = cmd.MarkFlagRequired("multiplier")
	cmd.MarkFlagsMutuallyExclusive("xp", "level", "table")
	return cmd
}
