package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/justyntemme/exlibris/internal/catalog"
	"github.com/justyntemme/exlibris/internal/isbn"
	"github.com/justyntemme/exlibris/internal/matching"
)

func newISBNCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "isbn <code>",
		Short:       "Convert an ISBN between its 10 and 13 digit forms",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			isbn10, isbn13, err := catalog.ConvertISBN(args[0])
			if err != nil {
				return err
			}

			input := isbn.Normalize(args[0])
			inputValid := (len(input) == 10 && isbn.Validate10(input)) ||
				(len(input) == 13 && isbn.Validate13(input))

			fmt.Fprintln(cmd.OutOrStdout(), renderFields([][2]string{
				{"Input", input},
				{"Check digit valid", yesNo(inputValid)},
				{"ISBN-10", orNone(isbn10)},
				{"ISBN-13", isbn13},
			}))
			return nil
		},
	}
}

func newLookupCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "lookup <isbn>",
		Short: "Fetch a record by ISBN and resolve its author and work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			svc := catalog.NewService(ctx.lookupService(), matching.NewResolver(store.db), store.db, ctx.logger)

			res, err := svc.LookupISBN(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintln(out, renderLookup(res))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	return cmd
}

func renderLookup(res *catalog.Result) string {
	rec := res.Record
	pages := ""
	if rec.PageCount > 0 {
		pages = strconv.Itoa(rec.PageCount)
	}
	return renderFields([][2]string{
		{"Title", rec.Title},
		{"Subtitle", rec.Subtitle},
		{"Author", rec.Author},
		{"Publisher", rec.Publisher},
		{"Published", rec.PublishedDate},
		{"Pages", pages},
		{"ISBN-10", res.ISBN10},
		{"ISBN-13", res.ISBN13},
		{"Categories", strings.Join(rec.Categories, ", ")},
		{"Cover URL", rec.CoverURL},
		{"Source", rec.Source},
		{"Catalog author", describeMatch(res.Author)},
		{"Catalog work", describeMatch(res.Work)},
	})
}

func describeMatch(m matching.Match) string {
	if m.Unknown {
		return fmt.Sprintf("%s (no match)", m.Name)
	}
	return fmt.Sprintf("%s #%d (score %.2f)", m.Name, m.ID, m.Score)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
