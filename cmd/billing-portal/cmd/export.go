package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/billing-portal/internal/portal"
	"github.com/shunichi-ikebuchi/billing-portal/pkg/billing"
	"github.com/shunichi-ikebuchi/billing-portal/pkg/db"
	"github.com/shunichi-ikebuchi/billing-portal/pkg/identity"
	"github.com/shunichi-ikebuchi/billing-portal/pkg/render"
)

var (
	exportInvoiceID string
	exportToken     string
	exportEmail     string
	exportPassword  string
	exportOutput    string
)

// exportCmd represents the export command.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export an invoice as PDF",
	Long: `Fetch one invoice from the billing API and write it as a PDF file.

Authenticate either with an existing bearer token (--token) or by signing in
with --email and --password. Without --output the file is named after the
invoice number, e.g. invoice-INV-2024-001.pdf. Use --output - for stdout.

Example:
  billing-portal export --invoice <id> --email client@example.com --password password
  billing-portal export --invoice <id> --token $TOKEN -o latest.pdf`,
	Run: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportInvoiceID, "invoice", "", "Invoice ID (required)")
	exportCmd.Flags().StringVar(&exportToken, "token", "", "Bearer token for the billing API")
	exportCmd.Flags().StringVar(&exportEmail, "email", "", "Sign-in email (when --token is not given)")
	exportCmd.Flags().StringVar(&exportPassword, "password", "", "Sign-in password (when --token is not given)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path, or - for stdout")

	exportCmd.MarkFlagRequired("invoice")
	exportCmd.MarkFlagsMutuallyExclusive("token", "email")
}

func runExport(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig([]string{"billing", "apiUrl"})
	exitOnError(err, "failed to load configuration")

	ctx := cmd.Context()

	token, email := exportToken, ""
	if token == "" {
		identityClient := identity.NewClient(identity.ClientConfig{
			APIURL:  cfg.Auth.APIURL,
			Timeout: cfg.Billing.Timeout,
		})
		id, err := identityClient.Login(ctx, exportEmail, exportPassword)
		if errors.Is(err, identity.ErrMissingCredentials) {
			err = errors.New("pass --token, or --email and --password")
		}
		exitOnError(err, "failed to sign in")
		slog.Debug("signed in", "user", id.Email)
		token, email = id.Token, id.Email
	}

	issuer := render.DefaultIssuer()
	if cfg.Render.IssuerProfile != "" {
		issuer, err = render.LoadIssuer(cfg.Render.IssuerProfile)
		exitOnError(err, "failed to load issuer profile")
	}

	billingClient := billing.NewClient(billing.ClientConfig{
		APIURL:  cfg.Billing.APIURL,
		Timeout: cfg.Billing.Timeout,
	})

	slog.Info("Fetching invoice", "invoice_id", exportInvoiceID)
	detail, err := billingClient.GetInvoiceDetail(ctx, token, exportInvoiceID)
	exitOnError(err, "failed to fetch invoice")

	pdf, err := render.New(render.Config{Issuer: issuer}).Render(ctx, &detail.Invoice, detail.Items)
	exitOnError(err, "failed to render invoice")

	if exportOutput == "-" {
		_, err = os.Stdout.Write(pdf)
		exitOnError(err, "failed to write pdf")
	} else {
		path := exportOutput
		if path == "" {
			path = portal.ExportFilename(detail.Invoice)
		}
		exitOnError(os.WriteFile(path, pdf, 0o644), "failed to write pdf")

		slog.Info("Invoice exported", "path", path, "bytes", len(pdf))
		fmt.Printf("Wrote %s (%d bytes)\n", path, len(pdf))
	}

	recordExport(ctx, cfg.History.DBPath, db.ExportRecord{
		InvoiceID:     detail.Invoice.ID,
		InvoiceNumber: detail.Invoice.Number,
		UserEmail:     email,
		Source:        db.SourceCLI,
		Bytes:         len(pdf),
	})
}

// recordExport adds record to the export history when one is configured.
// A failure is logged; the document has already been written.
func recordExport(ctx context.Context, dbPath string, record db.ExportRecord) {
	if dbPath == "" {
		return
	}
	conn, err := db.Open(dbPath)
	if err != nil {
		slog.Warn("failed to open export history", "error", err)
		return
	}
	defer conn.Close()

	if err := db.NewExportHistory(conn).Record(ctx, record); err != nil {
		slog.Warn("failed to record export", "error", err)
	}
}
