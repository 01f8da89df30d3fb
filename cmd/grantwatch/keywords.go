package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shanehull/grantwatch/internal/config"
	"github.com/shanehull/grantwatch/internal/keywords"
	"github.com/shanehull/grantwatch/internal/types"
)

func newKeywordsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "keywords",
		Short: "Print the effective relevance keywords and category terms",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configFile)
			if err != nil {
				return err
			}
			tx, err := keywords.Load(cfg.KeywordsFile)
			if err != nil {
				return err
			}
			return printTaxonomy(cmd, tx)
		},
	}
}

func printTaxonomy(cmd *cobra.Command, tx *keywords.Taxonomy) error {
	out := cmd.OutOrStdout()

	var rows [][]string
	for _, name := range tx.SourceNames() {
		rows = append(rows, []string{name, strings.Join(tx.Source(name), ", ")})
	}
	if err := writeTable(out, []string{"source", "relevance keywords"}, rows); err != nil {
		return err
	}
	fmt.Fprintln(out)

	rows = rows[:0]
	for i, c := range types.Categories {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			c.Key(),
			c.Label(),
			strings.Join(tx.Terms(c), ", "),
		})
	}
	if err := writeTable(out, []string{"#", "category", "label", "terms"}, rows); err != nil {
		return err
	}
	fmt.Fprintln(out)

	return writeTable(out, []string{"bizinfo hashtags"}, [][]string{{strings.Join(tx.Hashtags(), ", ")}})
}
