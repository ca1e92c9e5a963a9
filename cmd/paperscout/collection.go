package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperscout/pkg/types"
)

var collectionCmd = &cobra.Command{
	Use:   "collection <name>",
	Short: "Print the key of a library collection, creating it if needed",
	Long: `Collection looks up the first collection named exactly <name> (case
sensitive) and prints its key. If there is none, the collection is created.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printCollectionKey(cmd.Context(), cmd.OutOrStdout(), appConfig, args[0])
	},
}

func init() {
	rootCmd.AddCommand(collectionCmd)
}

func printCollectionKey(ctx context.Context, w io.Writer, cfg types.Config, name string) error {
	cat, err := newCataloger(cfg)
	if err != nil {
		return err
	}
	key, err := cat.ResolveCollection(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, key)
	return nil
}
