package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/domain/types"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/presentation/controllers"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type serviceOpener func(ctx context.Context) (controllers.SettlementService, func(), error)

type cli struct {
	open   serviceOpener
	out    io.Writer
	tenant string
	format string
}

func newRootCmd(open serviceOpener, out io.Writer) *cobra.Command {
	c := &cli{open: open, out: out}

	root := &cobra.Command{
		Use:           "settlementctl",
		Short:         "Generate and inspect payroll settlements",
		Long:          "Calculates PPh 21 and BPJS deductions for payroll records and manages stored settlements.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.tenant, "tenant", os.Getenv("SETTLEMENT_TENANT"), "tenant uuid (env SETTLEMENT_TENANT)")
	root.PersistentFlags().StringVar(&c.format, "format", "json", "output format: json|table")

	root.AddCommand(
		c.generateCmd("generate", false),
		c.generateCmd("preview", true),
		c.showCmd(),
		c.showPayrollCmd(),
		c.listCmd(),
		c.deleteCmd(),
		c.ratesCmd(),
		c.invalidateRatesCmd(),
		versionCmd(out),
	)
	return root
}

func versionCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(out, "settlementctl %s (commit %s)\n", version, commit)
		},
	}
}

// run opens the service for one command and closes it afterwards.
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, svc controllers.SettlementService, tenantID string) error) error {
	tenantID := strings.TrimSpace(c.tenant)
	if tenantID == "" {
		return errors.New("--tenant is required")
	}
	if c.format != "json" && c.format != "table" {
		return fmt.Errorf("unknown --format %q", c.format)
	}
	svc, closeFn, err := c.open(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(cmd.Context(), svc, tenantID)
}

type generateFlags struct {
	payrollID   string
	requestedBy string
	risk        string
	dependents  int
	allowances  string
	other       string
	dryRun      bool
}

func (f generateFlags) options(cmd *cobra.Command) (types.GenerateOptions, error) {
	opts := types.GenerateOptions{JKKRiskCategory: strings.TrimSpace(f.risk)}
	if cmd.Flags().Changed("dependents") {
		n := f.dependents
		opts.Dependents = &n
	}
	var err error
	if opts.AdditionalAllowances, err = parseAmount("allowances", f.allowances); err != nil {
		return opts, err
	}
	if opts.OtherDeductions, err = parseAmount("other-deductions", f.other); err != nil {
		return opts, err
	}
	return opts, nil
}

func parseAmount(flag string, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("--%s: %w", flag, err)
	}
	return d, nil
}

func (c *cli) generateCmd(use string, preview bool) *cobra.Command {
	var f generateFlags
	short := "Calculate and store the settlement for a payroll record"
	if preview {
		short = "Calculate a settlement without storing it"
	}
	cmd := &cobra.Command{
		Use:   use + " --payroll <payroll_id>",
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options(cmd)
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, svc controllers.SettlementService, tenantID string) error {
				var s types.Settlement
				if preview || f.dryRun {
					s, err = svc.PreviewSettlement(ctx, tenantID, f.payrollID, opts)
				} else {
					s, err = svc.GenerateSettlement(ctx, tenantID, f.payrollID, opts, f.requestedBy)
				}
				if err != nil {
					return err
				}
				return c.printSettlements(s)
			})
		},
	}
	cmd.Flags().StringVar(&f.payrollID, "payroll", "", "payroll record id")
	cmd.Flags().StringVar(&f.risk, "jkk-risk", "", "JKK risk category (default LOW)")
	cmd.Flags().IntVar(&f.dependents, "dependents", 0, "dependents for PTKP (clamped to 0..3)")
	cmd.Flags().StringVar(&f.allowances, "allowances", "", "additional taxable allowances")
	cmd.Flags().StringVar(&f.other, "other-deductions", "", "other employee deductions")
	if !preview {
		cmd.Flags().StringVar(&f.requestedBy, "by", os.Getenv("USER"), "recorded as generated_by")
		cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "calculate without storing")
	}
	_ = cmd.MarkFlagRequired("payroll")
	return cmd
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <settlement_id>",
		Short: "Show a stored settlement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, svc controllers.SettlementService, tenantID string) error {
				s, err := svc.GetSettlementByID(ctx, tenantID, args[0])
				if err != nil {
					return err
				}
				return c.printSettlements(s)
			})
		},
	}
}

func (c *cli) showPayrollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show-payroll <payroll_id>",
		Short: "Show the settlement of a payroll record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, svc controllers.SettlementService, tenantID string) error {
				s, err := svc.GetSettlementByPayrollID(ctx, tenantID, args[0])
				if err != nil {
					return err
				}
				return c.printSettlements(s)
			})
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	var employeeID string
	cmd := &cobra.Command{
		Use:   "list --employee <employee_id>",
		Short: "List an employee's settlements, newest period first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, svc controllers.SettlementService, tenantID string) error {
				out, err := svc.ListSettlementsForEmployee(ctx, tenantID, employeeID)
				if err != nil {
					return err
				}
				return c.printSettlements(out...)
			})
		},
	}
	cmd.Flags().StringVar(&employeeID, "employee", "", "employee id")
	_ = cmd.MarkFlagRequired("employee")
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <settlement_id>",
		Short: "Delete a settlement and its deduction lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, svc controllers.SettlementService, tenantID string) error {
				if err := svc.DeleteSettlement(ctx, tenantID, args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(c.out, "deleted %s\n", args[0])
				return err
			})
		},
	}
}

func (c *cli) ratesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rates",
		Short: "Print the effective rate configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, svc controllers.SettlementService, tenantID string) error {
				cfg, err := svc.EffectiveRateConfig(ctx, tenantID)
				if err != nil {
					return err
				}
				return c.writeJSON(cfg)
			})
		},
	}
}

func (c *cli) invalidateRatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate-rates",
		Short: "Drop the cached rate configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, svc controllers.SettlementService, tenantID string) error {
				if err := svc.InvalidateRateConfig(ctx, tenantID); err != nil {
					return err
				}
				_, err := fmt.Fprintf(c.out, "rate config invalidated for %s\n", tenantID)
				return err
			})
		},
	}
}

func (c *cli) printSettlements(list ...types.Settlement) error {
	if c.format == "json" {
		if len(list) == 1 {
			return c.writeJSON(list[0])
		}
		if list == nil {
			list = make([]types.Settlement, 0)
		}
		return c.writeJSON(list)
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(tw, "ID\tPAYROLL\tPERIOD\tGROSS\tTAX\tBPJS KES\tBPJS TK\tOTHER\tTAKE HOME\t")
	for _, s := range list {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			s.ID, s.PayrollID, s.PeriodStart,
			s.GrossIncome.StringFixed(2), s.TaxAmount.StringFixed(2),
			s.BPJSKesehatanEmployee.StringFixed(2), s.BPJSKetenagakerjaanEmployee.StringFixed(2),
			s.OtherDeductions.StringFixed(2), s.TakeHomePay.StringFixed(2),
		)
	}
	return tw.Flush()
}

func (c *cli) writeJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.out, string(b))
	return err
}
