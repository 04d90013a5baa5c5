package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"sparqlgen/internal/output"
	"sparqlgen/ui/console"
)

func newAskCmd(a *app) *cobra.Command {
	var (
		asJSON     bool
		compact    bool
		construct  bool
		noRephrase bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question by generating, running and repairing a query",
		Example: `  sparqlgen ask "Which compounds contain benzene?"
  sparqlgen ask --construct --max-attempts 3 "Which solvents are toxic?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.cfg
			if cmd.Flags().Changed("construct") {
				cfg = cfg.WithConstruct(construct)
			}
			if noRephrase {
				cfg = cfg.WithRephrase(false)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			sess, err := a.openSession(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer sess.Close(ctx)

			eng, err := sess.Engine(a.logger)
			if err != nil {
				return err
			}
			ans, err := eng.Ask(ctx, sess.request(strings.Join(args, " ")))
			if err != nil {
				return err
			}

			if asJSON {
				if err := printJSON(cmd.OutOrStdout(), ans); err != nil {
					return err
				}
				return ans.ConstructErr
			}
			p := console.New(cmd.OutOrStdout())
			if compact {
				p.Compact()
			}
			view := output.BuildAnswer(ans.OriginalQuestion, ans.Question, ans.Select, ans.Construct)
			if ans.ConstructErr != nil {
				view.Construct = &output.ConstructView{Failed: ans.ConstructErr.Error()}
			}
			p.PrintAnswer(view)
			// The SELECT rows are printed; the failed follow-up still fails the command.
			return ans.ConstructErr
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the answer as JSON")
	cmd.Flags().BoolVar(&compact, "compact", false, "Print only the result rows")
	cmd.Flags().BoolVar(&construct, "construct", false, "Also build a CONSTRUCT query from the answer (env CONSTRUCT)")
	cmd.Flags().BoolVar(&noRephrase, "no-rephrase", false, "Send the question to query generation as written (env REPHRASE=false)")
	return cmd
}
