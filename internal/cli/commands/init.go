package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"lazyquery/internal/common"
	"lazyquery/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty item store",
	Long: `Create an empty item store at the --db path (or the default store path).

An existing store is left untouched.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path := storePath()
	store, err := storage.Create(path)
	if errors.Is(err, common.ErrExists) {
		fmt.Fprintf(out, "Store already exists at %s (not modified)\n", path)
		return nil
	}
	if err != nil {
		return err
	}
	defer store.Close()
	fmt.Fprintf(out, "Initialized empty store in %s\n", path)
	return nil
}
