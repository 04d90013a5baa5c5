package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"sparqlgen/internal/output"
	"sparqlgen/ui/console"
)

func newQueryCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "query <query|->",
		Short: "Run a query on the store without the language model",
		Long:  "Run a query as is. Use - to read it from stdin. Store errors are printed verbatim.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := args[0]
			if query == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read query: %w", err)
				}
				query = string(data)
			}
			if strings.TrimSpace(query) == "" {
				return fmt.Errorf("query is empty")
			}

			sess, err := a.openSession(ctx, a.cfg, false)
			if err != nil {
				return err
			}
			defer sess.Close(ctx)

			rows, err := sess.store.Execute(ctx, query)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			console.New(cmd.OutOrStdout()).PrintTable(output.BuildTable(rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print rows as JSON")
	return cmd
}
