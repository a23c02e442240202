package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/jacksonlee411/claimwatch/modules/procurement/domain/types"
	"github.com/jacksonlee411/claimwatch/modules/procurement/infrastructure/persistence"
	"github.com/jacksonlee411/claimwatch/modules/procurement/services"
)

const usage = "usage: dbtool <schema-apply|rls-smoke|ledger-smoke> [args]"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fatal(err)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) < 1 {
		return errors.New(usage)
	}
	switch args[0] {
	case "schema-apply":
		return schemaApply(args[1:], out)
	case "rls-smoke":
		return rlsSmoke(args[1:], out)
	case "ledger-smoke":
		return ledgerSmoke(args[1:], out)
	default:
		return fmt.Errorf("unknown subcommand: %s", args[0])
	}
}

type smokeFlags struct {
	url        string
	agency     string
	department string
	from       string
	to         string
	timeout    time.Duration
}

func parseFlags(name string, args []string) (smokeFlags, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var f smokeFlags
	fs.StringVar(&f.url, "url", "", "postgres connection string")
	fs.DurationVar(&f.timeout, "timeout", 10*time.Second, "overall timeout")
	if name == "ledger-smoke" {
		fs.StringVar(&f.agency, "agency", "", "agency to scope the ledger to")
		fs.StringVar(&f.department, "department", "", "department filter")
		fs.StringVar(&f.from, "from", "", "created-from date (2006-01-02)")
		fs.StringVar(&f.to, "to", "", "created-to date (2006-01-02)")
	}
	if err := fs.Parse(args); err != nil {
		return smokeFlags{}, err
	}
	if f.url == "" {
		return smokeFlags{}, errors.New("missing --url")
	}
	if f.timeout <= 0 {
		return smokeFlags{}, errors.New("--timeout must be positive")
	}
	return f, nil
}

func schemaApply(args []string, out io.Writer) error {
	f, err := parseFlags("schema-apply", args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	conn, err := pgx.Connect(ctx, f.url)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, persistence.SchemaSQL()); err != nil {
		return describe(err)
	}
	_, _ = fmt.Fprintln(out, "[schema-apply] OK")
	return nil
}

func rlsSmoke(args []string, out io.Writer) error {
	f, err := parseFlags("rls-smoke", args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	conn, err := pgx.Connect(ctx, f.url)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	_ = tryEnsureRole(ctx, conn, "app_nobypassrls")

	// Nothing is committed; the smoke rows disappear with the rollback.
	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	_ = trySetRole(ctx, tx, "app_nobypassrls")

	agencyA, agencyB := "smoke-agency-a", "smoke-agency-b"
	if err := setAgency(ctx, tx, agencyA); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO procurement.claims (claim_id, agency, vendor_address, department_address, amount, create_time)
VALUES ('smoke-claim-a', $1, 'smoke-vendor', 'smoke-dept', 100, now());`, agencyA); err != nil {
		return describe(err)
	}

	if _, err := tx.Exec(ctx, `SAVEPOINT sp_cross_insert;`); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
INSERT INTO procurement.claims (claim_id, agency, amount)
VALUES ('smoke-claim-b', $1, 1);`, agencyB)
	if _, rbErr := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT sp_cross_insert;`); rbErr != nil {
		return rbErr
	}
	if err == nil {
		return errors.New("expected RLS rejection on cross-agency insert")
	}

	checks := []struct {
		agency string
		want   int
	}{
		{agency: agencyA, want: 1},
		{agency: agencyB, want: 0},
		{agency: "", want: 1},
	}
	for _, c := range checks {
		if err := setAgency(ctx, tx, c.agency); err != nil {
			return err
		}
		var count int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM procurement.claims WHERE claim_id LIKE 'smoke-%';`).Scan(&count); err != nil {
			return describe(err)
		}
		if count != c.want {
			return fmt.Errorf("expected count=%d under agency %q, got %d", c.want, c.agency, count)
		}
	}

	_, _ = fmt.Fprintln(out, "[rls-smoke] OK")
	return nil
}

func ledgerSmoke(args []string, out io.Writer) error {
	f, err := parseFlags("ledger-smoke", args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, f.url)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc, err := services.NewAnalysisService(ctx, services.AnalysisServiceOptions{
		Store:  persistence.NewLedgerPGStore(pool),
		Logger: zerolog.New(os.Stderr).Level(zerolog.WarnLevel),
	})
	if err != nil {
		return err
	}
	filter := types.LedgerFilter{
		Agency:      strings.ToLower(strings.TrimSpace(f.agency)),
		Department:  f.department,
		CreatedFrom: f.from,
		CreatedTo:   f.to,
	}
	ledger, err := svc.LoadLedger(ctx, filter)
	if err != nil {
		return describe(err)
	}
	a, err := svc.AnalyzeLedger(ctx, filter, time.Time{})
	if err != nil {
		return describe(err)
	}

	_, _ = fmt.Fprintf(out, "[ledger-smoke] claims=%d supplier_payments=%d subsupplier_payments=%d\n",
		len(ledger.Claims), len(ledger.SupplierPayments), len(ledger.SubSupplierPayments))
	_, _ = fmt.Fprintf(out, "[ledger-smoke] sections=%s alerts=%d risk=%s\n",
		strings.Join(a.Report.Sections(), ","), len(a.Alerts), a.Risk.Level)
	_, _ = fmt.Fprintln(out, "[ledger-smoke] OK")
	return nil
}

func setAgency(ctx context.Context, tx pgx.Tx, agency string) error {
	_, err := tx.Exec(ctx, `SELECT set_config('app.current_agency', $1, true);`, agency)
	return err
}

// describe adds the SQLSTATE to postgres errors.
func describe(err error) error {
	if msg, ok := pgErrorMessage(err); ok {
		return errors.New(msg)
	}
	return err
}

func pgErrorMessage(err error) (string, bool) {
	pgErr, ok := errors.AsType[*pgconn.PgError](err)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s (SQLSTATE %s)", pgErr.Message, pgErr.Code), true
}

func tryEnsureRole(ctx context.Context, conn *pgx.Conn, role string) error {
	if !validSQLIdent(role) {
		return fmt.Errorf("invalid role: %s", role)
	}

	stmt := fmt.Sprintf(`DO $$
BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = '%s') THEN
    EXECUTE 'CREATE ROLE %s NOBYPASSRLS';
  END IF;
END
$$;`, role, role)
	if _, err := conn.Exec(ctx, stmt); err != nil {
		return err
	}
	_, _ = conn.Exec(ctx, `GRANT USAGE ON SCHEMA procurement TO `+role+`;`)
	_, _ = conn.Exec(ctx, `GRANT SELECT, INSERT ON ALL TABLES IN SCHEMA procurement TO `+role+`;`)
	return nil
}

func trySetRole(ctx context.Context, tx pgx.Tx, role string) bool {
	if _, err := tx.Exec(ctx, `SET ROLE `+role+`;`); err != nil {
		return false
	}
	return true
}

var reSQLIdent = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func validSQLIdent(s string) bool {
	return reSQLIdent.MatchString(s)
}

func fatal(err error) {
	if err == nil {
		os.Exit(1)
	}
	fatalf("%v", err)
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
