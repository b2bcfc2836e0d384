package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var purgeYes bool

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every item in the store",
	Args:  cobra.NoArgs,
	RunE:  runPurge,
}

func init() {
	purgeCmd.Flags().BoolVarP(&purgeYes, "yes", "y", false, "confirm deletion")
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if !purgeYes {
		return fmt.Errorf("refusing to delete all items without --yes")
	}
	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	n, err := s.container.Size(ctx)
	if err != nil {
		return err
	}
	if err := s.container.RemoveAllItems(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted %d items from %s\n", n, s.store.Path())
	return nil
}
