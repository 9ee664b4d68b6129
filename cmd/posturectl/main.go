package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/postureboard/postureboard/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	cfgFile   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "posturectl",
	Short: "Posture dashboard CLI",
	Long: `posturectl is the command-line interface for the posture dashboard.

It lets operators inspect tenant maturity, capture score snapshots, and
drive the quarterly report lifecycle from the terminal.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".posturectl"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.posturectl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "dashboard server URL (default http://localhost:8080)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(tenantsCmd)
	rootCmd.AddCommand(maturityCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(reportsCmd)
	rootCmd.AddCommand(distributeCmd)
	rootCmd.AddCommand(pdfCmd)
	rootCmd.AddCommand(versionCmd)
}

// apiClient builds a client carrying the saved session token, if any.
func apiClient() *client.Client {
	token, _ := os.ReadFile(tokenPath())
	if len(token) > 0 {
		return client.New(serverURL, client.WithToken(strings.TrimSpace(string(token))))
	}
	return client.New(serverURL)
}

func tokenPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".posturectl", "token")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ── login ────────────────────────────────────────────────────────────────────

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate and save a session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginPassword == "" {
			loginPassword = os.Getenv("POSTUREBOARD_PASSWORD")
		}
		if loginPassword == "" {
			return fmt.Errorf("password required (use --password or POSTUREBOARD_PASSWORD)")
		}

		c := client.New(serverURL)
		token, err := c.Login(context.Background(), loginEmail, loginPassword)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}

		if err := os.MkdirAll(filepath.Dir(tokenPath()), 0o700); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err := os.WriteFile(tokenPath(), []byte(token), 0o600); err != nil {
			return fmt.Errorf("save token: %w", err)
		}

		fmt.Printf("✓ Logged in as %s\n", loginEmail)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Operator email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Operator password (or set POSTUREBOARD_PASSWORD)")
	_ = loginCmd.MarkFlagRequired("email")
}

// ── tenants ──────────────────────────────────────────────────────────────────

var tenantsCmd = &cobra.Command{
	Use:   "tenants",
	Short: "List managed tenants",
	RunE: func(cmd *cobra.Command, args []string) error {
		tenants, err := apiClient().ListTenants(context.Background())
		if err != nil {
			return fmt.Errorf("list tenants: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tACTIVE")
		for _, t := range tenants {
			fmt.Fprintf(w, "%s\t%s\t%t\n", t.ID, t.Name, t.Active)
		}
		return w.Flush()
	},
}

// ── maturity ─────────────────────────────────────────────────────────────────

var maturityCmd = &cobra.Command{
	Use:   "maturity <tenant-id>",
	Short: "Show the live maturity score for a tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := apiClient().GetMaturity(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("get maturity: %w", err)
		}

		pct := 0.0
		if result.MaxScore > 0 {
			pct = result.TotalScore / result.MaxScore * 100
		}
		fmt.Printf("Tenant:  %s\n", result.TenantID)
		fmt.Printf("Score:   %.1f / %.1f (%.1f%%)\n", result.TotalScore, result.MaxScore, pct)
		return nil
	},
}

// ── snapshot ─────────────────────────────────────────────────────────────────

var (
	snapshotList bool
	snapshotAll  bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [tenant-id]",
	Short: "Capture today's score snapshot for a tenant (or all with --all)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := apiClient()
		if snapshotAll {
			tenants, err := c.ListTenants(context.Background())
			if err != nil {
				return fmt.Errorf("list tenants: %w", err)
			}
			failed := 0
			for _, t := range tenants {
				snap, err := c.CaptureSnapshot(context.Background(), t.ID)
				if err != nil {
					failed++
					fmt.Printf("  ✗ %-28s %v\n", t.Name, err)
					continue
				}
				fmt.Printf("  ✓ %-28s %.1f / %.1f\n", t.Name, snap.Total, snap.Max)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d tenants failed", failed, len(tenants))
			}
			return nil
		}
		if len(args) == 0 {
			return fmt.Errorf("tenant-id required unless --all is set")
		}
		if snapshotList {
			snaps, err := c.ListSnapshots(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("list snapshots: %w", err)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tSCORE\tMAX\tPERCENT\tSECURE%")
			for _, s := range snaps {
				fmt.Fprintf(w, "%s\t%.1f\t%.1f\t%.1f\t%.1f\n",
					s.Date.Format("2006-01-02"), s.Total, s.Max, s.Percent, s.SecurePercent)
			}
			return w.Flush()
		}

		snap, err := c.CaptureSnapshot(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("capture snapshot: %w", err)
		}
		fmt.Printf("✓ Snapshot captured for %s\n", snap.Date.Format("2006-01-02"))
		fmt.Printf("  Score: %.1f / %.1f (%.1f%%)\n", snap.Total, snap.Max, snap.Percent)
		return nil
	},
}

func init() {
	snapshotCmd.Flags().BoolVar(&snapshotList, "list", false, "List retained snapshots instead of capturing")
	snapshotCmd.Flags().BoolVar(&snapshotAll, "all", false, "Capture snapshots for every active tenant")
}

// ── reports ──────────────────────────────────────────────────────────────────

var (
	reportQuarter int
	reportYear    int
	reportForce   bool
	reportJSON    bool
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Manage quarterly risk reports",
}

var reportsGenerateCmd = &cobra.Command{
	Use:   "generate <tenant-id>",
	Short: "Generate a quarterly report for a tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := apiClient().CreateReport(context.Background(), args[0], reportQuarter, reportYear, reportForce)
		if err != nil {
			return fmt.Errorf("generate report: %w", err)
		}

		fmt.Printf("✓ Report generated\n\n")
		fmt.Printf("  ID:      %s\n", rep.ID)
		fmt.Printf("  Period:  Q%d %d\n", rep.Quarter, rep.Year)
		fmt.Printf("  Overall: %d/10\n", rep.OverallRisk)
		fmt.Printf("  Status:  %s\n", rep.Status)
		return nil
	},
}

var reportsListCmd = &cobra.Command{
	Use:   "list <tenant-id>",
	Short: "List reports for a tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reports, err := apiClient().ListReports(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("list reports: %w", err)
		}
		if reportJSON {
			return printJSON(reports)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPERIOD\tOVERALL\tSTATUS")
		for _, r := range reports {
			fmt.Fprintf(w, "%s\tQ%d %d\t%d/10\t%s\n", r.ID, r.Quarter, r.Year, r.OverallRisk, r.Status)
		}
		return w.Flush()
	},
}

var reportsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Generate previous-quarter reports for every tenant that lacks one",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := apiClient()
		tenants, err := c.ListTenants(context.Background())
		if err != nil {
			return fmt.Errorf("list tenants: %w", err)
		}

		quarter, year := previousQuarter(time.Now())
		fmt.Printf("Sweeping Q%d %d across %d tenant(s)\n", quarter, year, len(tenants))

		failed := 0
		for _, t := range tenants {
			rep, err := c.CreateReport(context.Background(), t.ID, quarter, year, false)
			switch {
			case errors.Is(err, client.ErrConflict):
				fmt.Printf("  - %-28s already generated\n", t.Name)
			case err != nil:
				failed++
				fmt.Printf("  ✗ %-28s %v\n", t.Name, err)
			default:
				fmt.Printf("  ✓ %-28s overall %d/10\n", t.Name, rep.OverallRisk)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d tenants failed", failed, len(tenants))
		}
		return nil
	},
}

// previousQuarter returns the most recently completed quarter for now.
func previousQuarter(now time.Time) (quarter, year int) {
	quarter = (int(now.Month()) - 1) / 3
	year = now.Year()
	if quarter == 0 {
		quarter = 4
		year--
	}
	return quarter, year
}

var reportsTransitionCmd = &cobra.Command{
	Use:   "transition <report-id> <target-status>",
	Short: "Advance a report to the next lifecycle status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := apiClient().Transition(context.Background(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("transition report: %w", err)
		}
		fmt.Printf("✓ Report %s is now %s\n", rep.ID, rep.Status)
		return nil
	},
}

func init() {
	reportsGenerateCmd.Flags().IntVar(&reportQuarter, "quarter", 0, "Reporting quarter (1-4)")
	reportsGenerateCmd.Flags().IntVar(&reportYear, "year", 0, "Reporting year")
	reportsGenerateCmd.Flags().BoolVar(&reportForce, "force", false, "Replace an unsent report for the same period")
	_ = reportsGenerateCmd.MarkFlagRequired("quarter")
	_ = reportsGenerateCmd.MarkFlagRequired("year")

	reportsListCmd.Flags().BoolVar(&reportJSON, "json", false, "Output as JSON")

	reportsCmd.AddCommand(reportsGenerateCmd)
	reportsCmd.AddCommand(reportsListCmd)
	reportsCmd.AddCommand(reportsSweepCmd)
	reportsCmd.AddCommand(reportsTransitionCmd)
}

// ── distribute ───────────────────────────────────────────────────────────────

var distributeCmd = &cobra.Command{
	Use:   "distribute <report-id>",
	Short: "Email a finalized report to its recipients",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := apiClient().Distribute(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("distribute report: %w", err)
		}

		fmt.Printf("Sent:    %d\n", len(result.Sent))
		fmt.Printf("Skipped: %d\n", len(result.Skipped))
		if len(result.Failed) > 0 {
			fmt.Printf("Failed:  %d\n", len(result.Failed))
			for addr, msg := range result.Failed {
				fmt.Printf("  %s: %s\n", addr, msg)
			}
			return fmt.Errorf("distribution incomplete; rerun to retry failed recipients")
		}
		return nil
	},
}

// ── pdf ──────────────────────────────────────────────────────────────────────

var pdfOutput string

var pdfCmd = &cobra.Command{
	Use:   "pdf <report-id>",
	Short: "Download the rendered PDF for a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := apiClient().DownloadPDF(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("download pdf: %w", err)
		}

		out := pdfOutput
		if out == "" {
			out = fmt.Sprintf("report-%s.pdf", args[0])
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		fmt.Printf("✓ Wrote %s (%d bytes)\n", out, len(data))
		return nil
	},
}

func init() {
	pdfCmd.Flags().StringVarP(&pdfOutput, "output", "o", "", "Output path (default report-<id>.pdf)")
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the posturectl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("posturectl %s\n", version)
	},
}
