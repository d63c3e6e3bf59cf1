package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/cobra"

	"github.com/ObiAU/airwatch/internal/classify"
	"github.com/ObiAU/airwatch/internal/keywords"
	"github.com/ObiAU/airwatch/internal/logging"
	"github.com/ObiAU/airwatch/internal/models"
)

func newClassifyCmd(opts *rootOptions) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "classify [text]",
		Short: "Show how a message would be classified",
		Long: `Runs the normaliser and both classifiers against a text without
touching any state. The text is read from stdin when no argument is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, nil)
			if err != nil {
				return err
			}
			ctx := logging.With(cmd.Context(), logger)

			text := strings.Join(args, " ")
			if text == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return goerr.Wrap(err, "failed to read stdin")
				}
				text = string(data)
			}

			tables, err := keywords.Load(cfg.Keywords.File)
			if err != nil {
				return err
			}
			c, err := classify.New(tables, cfg.Tiers())
			if err != nil {
				return err
			}

			if source == "" && len(cfg.Sources.Official) > 0 {
				source = cfg.Sources.Official[0]
			}
			exp := c.Explain(ctx, models.RawMessage{Text: text, SourceID: models.NormalizeSourceID(source)})
			printExplanation(cmd.OutOrStdout(), source, exp)
			return nil
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "source channel (default: first official source)")
	return cmd
}

func printExplanation(w io.Writer, source string, exp classify.Explanation) {
	label := color.New(color.FgHiCyan).SprintFunc()
	kind := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(w, "%s %s (%s)\n", label("source:"), source, exp.Tier)
	fmt.Fprintf(w, "%s %q\n", label("normalized:"), exp.Normalized)
	if exp.Official.Kind != models.EventIrrelevant {
		fmt.Fprintf(w, "%s %s %s via %s\n", label("official:"), exp.Official.Kind, exp.Official.Region, exp.Official.Pattern)
	} else {
		fmt.Fprintf(w, "%s no match\n", label("official:"))
	}
	s := exp.Signals
	fmt.Fprintf(w, "%s region=%t threat=%t rapid=%t bonus=%t hint=%q\n",
		label("signals:"), s.RegionHit, s.ThreatHit, s.RapidHit, s.BonusHit, s.ThreatHint)
	fmt.Fprintf(w, "%s %s", label("event:"), kind(exp.Event.Kind.String()))
	if exp.Event.Region != "" {
		fmt.Fprintf(w, " region=%s", exp.Event.Region)
	}
	if exp.Event.Fingerprint != "" {
		fmt.Fprintf(w, " fingerprint=%s", exp.Event.Fingerprint)
	}
	fmt.Fprintln(w)
}
