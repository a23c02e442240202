package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jacksonlee411/claimwatch/modules/procurement/services"
	"github.com/jacksonlee411/claimwatch/pkg/verify"
)

type verifyOptions struct {
	claim       string
	invoice     string
	invoiceText string
}

func verifyCmd() *cobra.Command {
	var o verifyOptions
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a claim against its invoice",
		Long: `Check a claim's amount, vendor and submission date against an invoice.
The invoice is given as JSON fields, as extracted invoice text, or both; JSON
fields take precedence over values read from the text.

Examples:
  claimwatch verify --claim claim.json --invoice invoice.json
  claimwatch verify --claim claim.json --invoice-text invoice.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVerify(cmd.Context(), cmd.OutOrStdout(), o)
		},
	}
	cmd.Flags().StringVar(&o.claim, "claim", "", "claim JSON {amount, vendor_name, submission_date}")
	cmd.Flags().StringVar(&o.invoice, "invoice", "", "invoice JSON {invoice_number, date, amount, vendor_name}")
	cmd.Flags().StringVar(&o.invoiceText, "invoice-text", "", "plain text of the invoice")
	_ = cmd.MarkFlagRequired("claim")
	return cmd
}

func runVerify(ctx context.Context, out io.Writer, o verifyOptions) error {
	if o.invoice == "" && o.invoiceText == "" {
		return errors.New("one of --invoice or --invoice-text is required")
	}

	var claim verify.ClaimFields
	if err := readJSONFile(o.claim, &claim); err != nil {
		return err
	}
	var invoice verify.InvoiceFields
	if o.invoice != "" {
		if err := readJSONFile(o.invoice, &invoice); err != nil {
			return err
		}
	}
	var text string
	if o.invoiceText != "" {
		b, err := os.ReadFile(o.invoiceText)
		if err != nil {
			return err
		}
		text = string(b)
	}

	svc, err := services.NewAnalysisService(ctx, services.AnalysisServiceOptions{})
	if err != nil {
		return err
	}
	check, err := svc.VerifyInvoice(claim, invoice, text)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(check)
}

func readJSONFile(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
