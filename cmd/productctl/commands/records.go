package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/vyrodovalexey/productstore/internal/importer"
	"github.com/vyrodovalexey/productstore/internal/model"
	"github.com/vyrodovalexey/productstore/internal/store"
)

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every record in file order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			products, err := a.records.ListAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing records: %w", err)
			}

			out := cmd.OutOrStdout()
			if a.outputJSON {
				return a.printJSON(out, products)
			}

			if len(products) == 0 {
				fmt.Fprintln(out, "No records.")
				return nil
			}
			for _, p := range products {
				fmt.Fprintln(out, importer.FormatReportLine(p))
			}
			return nil
		},
	}
}

func newAddCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add NAME PRICE QUANTITY",
		Short: "Append a record",
		Long: `Append a record. Arguments starting with "-" must follow "--".

Examples:
  productctl add Pen 1.50 100
  productctl add -- Refund -1 1`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := model.ParseProduct(args[0], args[1], args[2])
			if err != nil {
				return fmt.Errorf("invalid record: %w", err)
			}

			if err := a.records.Insert(cmd.Context(), p); err != nil {
				return fmt.Errorf("adding record: %w", err)
			}

			return a.printResult(cmd, "Added", p)
		},
	}
}

func newUpdateCommand(a *app) *cobra.Command {
	var (
		name     string
		price    string
		quantity string
	)

	cmd := &cobra.Command{
		Use:   "update NAME PRICE QUANTITY",
		Short: "Replace the first record matching the given values",
		Long: `Replace the first record whose name, price and quantity match the
arguments. Prices match within 0.01. Fields not given as flags keep their
current value. Arguments starting with "-" must follow "--", after
the flags.

Examples:
  productctl update Pen 1.50 100 --price 1.75
  productctl update Pen 1.75 100 --name "Blue Pen" --quantity 90
  productctl update --price 1 -- Pen -1 100`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			old, err := parseMatch(args)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if !flags.Changed("name") && !flags.Changed("price") && !flags.Changed("quantity") {
				return errors.New("nothing to update, set at least one of --name, --price, --quantity")
			}
			if !flags.Changed("name") {
				name = old.Name
			}
			if !flags.Changed("price") {
				price = decimal.NewFromFloat(old.Price).String()
			}
			if !flags.Changed("quantity") {
				quantity = strconv.Itoa(old.Quantity)
			}

			updated, err := model.ParseProduct(name, price, quantity)
			if err != nil {
				return fmt.Errorf("invalid new values: %w", err)
			}

			if err := a.records.Update(cmd.Context(), old, updated); err != nil {
				return matchError("updating record", old, err)
			}

			return a.printResult(cmd, "Updated", updated)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&price, "price", "", "new price")
	cmd.Flags().StringVar(&quantity, "quantity", "", "new quantity")

	return cmd
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME PRICE QUANTITY",
		Short: "Remove the first record matching the given values",
		Long: `Remove the first record whose name, price and quantity match the
arguments. Prices match within 0.01. Arguments starting with "-" must
follow "--".`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseMatch(args)
			if err != nil {
				return err
			}

			if err := a.records.Delete(cmd.Context(), p); err != nil {
				return matchError("deleting record", p, err)
			}

			return a.printResult(cmd, "Deleted", p)
		},
	}
}

func newImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import PATH",
		Short: "Merge an external file into the store",
		Long: `Read PATH line by line and append its rows to the current records. A
first line whose first column reads name, product, nome or produto is treated
as a header. Malformed rows are skipped and listed in the report.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := importer.New(a.records, a.logger).ImportFile(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("importing %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			if a.outputJSON {
				return a.printJSON(out, model.ImportSummary{
					Imported: len(report.Imported),
					Skipped:  len(report.Skipped),
					Report:   report.Lines,
				})
			}

			for _, line := range report.Lines {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintf(out, "Imported %d, skipped %d.\n", len(report.Imported), len(report.Skipped))
			return nil
		},
	}
}

// parseMatch reads the NAME PRICE QUANTITY arguments that select a record.
// Only the number formats are checked, so records holding out-of-range
// values can still be addressed.
func parseMatch(args []string) (model.Product, error) {
	p, err := model.ParseValues(args[0], args[1], args[2])
	if err != nil {
		return model.Product{}, fmt.Errorf("invalid record: %w", err)
	}
	return p, nil
}

func matchError(operation string, p model.Product, err error) error {
	if errors.Is(err, store.ErrNoMatch) {
		return fmt.Errorf("%s: no record matches %s: %w", operation, p, err)
	}
	return fmt.Errorf("%s: %w", operation, err)
}

func (a *app) printResult(cmd *cobra.Command, verb string, p model.Product) error {
	out := cmd.OutOrStdout()
	if a.outputJSON {
		return a.printJSON(out, p)
	}
	fmt.Fprintf(out, "%s: %s\n", verb, importer.FormatReportLine(p))
	return nil
}
