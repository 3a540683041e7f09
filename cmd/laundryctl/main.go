// laundryctl calls the laundry backend with the service token from the
// dashboard config.
//
// Usage:
//
//	laundryctl totals                                  Show revenue totals
//	laundryctl bonus-list                              Show bonus per staff member
//	laundryctl upload revenue|transactions|bonus <f>   Upload a spreadsheet
//	laundryctl service-types list                      List service types
//	laundryctl service-types add <name> <bonus>        Create a service type
//	laundryctl service-types update <id> <name> <bonus>
//	laundryctl service-types delete <id>
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/dukerupert/laundrydash/internal/authclient"
	"github.com/dukerupert/laundrydash/internal/config"
	"github.com/dukerupert/laundrydash/internal/laundry"
	"github.com/dukerupert/laundrydash/internal/logging"
	"github.com/dukerupert/laundrydash/internal/model"
	"github.com/dukerupert/laundrydash/internal/trace"
	"github.com/dukerupert/laundrydash/internal/view"
)

func main() {
	cmd, args, configPath := parseArgs()
	if cmd == "" || cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		if cmd == "" {
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(config.Options{File: configPath, EnvFile: ".env"})
	if err != nil {
		fatal(err)
	}
	if cfg.ServiceToken == "" {
		fatal(fmt.Errorf("%sSERVICE_TOKEN is not set", config.EnvPrefix))
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = authclient.WithCredentials(ctx, authclient.StaticCredentials{
		Token: cfg.ServiceToken,
		User:  model.User{ID: "laundryctl", DisplayName: "laundryctl"},
	})
	ctx = trace.WithID(ctx, trace.New())

	c := laundry.New(cfg.APIBase, authclient.NewClient(false, cfg.APITimeout, logger), nil)

	switch cmd {
	case "totals":
		err = cmdTotals(ctx, c, os.Stdout)
	case "bonus-list":
		err = cmdBonusList(ctx, c, os.Stdout)
	case "upload":
		err = cmdUpload(ctx, c, os.Stdout, args)
	case "service-types":
		err = cmdServiceTypes(ctx, c, os.Stdout, args)
	default:
		fmt.Fprintf(os.Stderr, "laundryctl: unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "laundryctl: %v\n", err)
	os.Exit(1)
}

// parseArgs extracts the subcommand, positional args and --config path.
func parseArgs() (command string, args []string, configPath string) {
	configPath = "laundrydash.yaml"
	raw := os.Args[1:]
	var filtered []string
	for i := 0; i < len(raw); i++ {
		if raw[i] == "--config" && i+1 < len(raw) {
			configPath = raw[i+1]
			i++
			continue
		}
		filtered = append(filtered, raw[i])
	}
	if len(filtered) == 0 {
		return "", nil, configPath
	}
	return filtered[0], filtered[1:], configPath
}

func printUsage() {
	fmt.Print(`laundryctl - laundry backend admin client

Usage:
  laundryctl [--config <path>] <command> [arguments]

Commands:
  totals                                   Show revenue totals
  bonus-list                               Show bonus per staff member
  upload revenue <file>                    Upload a revenue spreadsheet
  upload transactions <file>               Upload a transaction spreadsheet
  upload bonus <file>                      Upload a bonus spreadsheet
  service-types list                       List service types
  service-types add <name> <bonus>         Create a service type
  service-types update <id> <name> <bonus> Update a service type
  service-types delete <id>                Delete a service type

Environment:
  LAUNDRY_API_BASE       Backend base URL
  LAUNDRY_SERVICE_TOKEN  Bearer token for backend calls
`)
}

func cmdTotals(ctx context.Context, c *laundry.Client, out io.Writer) error {
	t, err := c.Totals(ctx)
	if err != nil {
		return err
	}
	printTotals(out, t)
	return nil
}

func printTotals(out io.Writer, t *model.Totals) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Pendapatan Artha\t%s\n", view.Rupiah(t.PendapatanArtha))
	fmt.Fprintf(tw, "Pendapatan Pusat\t%s\n", view.Rupiah(t.PendapatanPusat))
	fmt.Fprintf(tw, "Total\t%s\n", view.Rupiah(t.TotalAll))
	for _, cb := range t.Cashboxes() {
		fmt.Fprintf(tw, "  %s\t%s\n", cb.Cashbox, view.Rupiah(cb.Total))
	}
	tw.Flush()
}

func cmdBonusList(ctx context.Context, c *laundry.Client, out io.Writer) error {
	list, err := c.BonusList(ctx)
	if err != nil {
		return err
	}
	printBonus(out, list)
	return nil
}

func printBonus(out io.Writer, list model.BonusList) {
	if len(list) == 0 {
		fmt.Fprintln(out, "Belum ada data bonus.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t\t%s\n", s.Staff, view.Rupiah(s.Total()))
		for _, r := range s.Records {
			fmt.Fprintf(tw, "  %s\t%s cuci\t%s\n", r.ServiceName, view.Number(r.WashCount), view.Rupiah(r.BonusAmount))
		}
	}
	tw.Flush()
}

func cmdUpload(ctx context.Context, c *laundry.Client, out io.Writer, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: laundryctl upload revenue|transactions|bonus <file>")
	}
	kind, path := args[0], args[1]
	if !view.IsSpreadsheet(path) {
		return errors.New(view.MsgUnsupportedFile)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	name := filepath.Base(path)

	switch kind {
	case "revenue":
		res, err := c.UploadRevenue(ctx, name, f)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, uploadMessage(res, view.MsgRevenueUploaded))
		return cmdTotals(ctx, c, out)
	case "transactions":
		sum, err := c.UploadTransactions(ctx, name, f)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, view.MsgMaterialsUploaded)
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "Baris diproses\t%s\n", view.Number(sum.RowsProcessed))
		fmt.Fprintf(tw, "Total pelanggan AG\t%s\n", view.Number(sum.CustomersAG))
		fmt.Fprintf(tw, "Total qty\t%s\n", view.Number(sum.Quantity))
		fmt.Fprintf(tw, "Total bahan baku\t%s\n", view.Rupiah(sum.Cost()))
		return tw.Flush()
	case "bonus":
		res, err := c.UploadBonus(ctx, name, f)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, uploadMessage(res, "Bonus diproses."))
		return cmdBonusList(ctx, c, out)
	default:
		return fmt.Errorf("unknown upload kind %q", kind)
	}
}

func uploadMessage(res *laundry.UploadResult, fallback string) string {
	if res != nil && res.Message != "" {
		return res.Message
	}
	return fallback
}

func cmdServiceTypes(ctx context.Context, c *laundry.Client, out io.Writer, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: laundryctl service-types list|add|update|delete")
	}
	switch args[0] {
	case "list":
		types, err := c.ListServiceTypes(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAMA LAYANAN\tHARGA BONUS")
		for _, st := range types {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", st.ID, st.ServiceName, view.Rupiah(st.BonusPrice))
		}
		return tw.Flush()
	case "add":
		if len(args) != 3 {
			return errors.New("usage: laundryctl service-types add <name> <bonus>")
		}
		st, err := parseServiceType("", args[1], args[2])
		if err != nil {
			return err
		}
		return c.CreateServiceType(ctx, st)
	case "update":
		if len(args) != 4 {
			return errors.New("usage: laundryctl service-types update <id> <name> <bonus>")
		}
		st, err := parseServiceType(args[1], args[2], args[3])
		if err != nil {
			return err
		}
		return c.UpdateServiceType(ctx, st)
	case "delete":
		if len(args) != 2 {
			return errors.New("usage: laundryctl service-types delete <id>")
		}
		return c.DeleteServiceType(ctx, args[1])
	default:
		return fmt.Errorf("unknown service-types command %q", args[0])
	}
}

func parseServiceType(id, name, bonus string) (model.ServiceType, error) {
	price, err := strconv.ParseInt(bonus, 10, 64)
	if name == "" || err != nil {
		return model.ServiceType{}, errors.New(view.MsgFillAllFields)
	}
	return model.ServiceType{ID: id, ServiceName: name, BonusPrice: price}, nil
}
