package main

import (
	"context"
	"fmt"
	"os"

	"deltascan/internal/config"
	"deltascan/internal/report"
	"deltascan/internal/scan"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	// Database drivers for the supported dialects.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb"
	_ "github.com/microsoft/go-mssqldb"
)

var exitStatus = report.ExitSuccess

var rootCmd = &cobra.Command{
	Use:   "deltascan",
	Short: "Scan a schema delta for sensitive data before deployment",
	Long: `deltascan parses a consolidated DDL migration script, samples live data
from every column the delta introduces, classifies the sampled values
against a library of sensitive-data detection rules, and emits a JSON
compliance report whose exit status gates the deployment.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := initLogger()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
			exitStatus = report.ExitUnhandledFault
			return nil
		}
		defer logger.Sync()
		sugar := logger.Sugar()

		v := config.NewViper()
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			sugar.Errorw("flag binding failed", "error", err)
			exitStatus = report.ExitInvalidConfig
			return nil
		}
		cfg, err := config.Load(v)
		if err != nil {
			sugar.Errorw("configuration load failed", "error", err)
			exitStatus = report.ExitInvalidConfig
			return nil
		}

		exitStatus = scan.NewRunner(cfg, sugar).Run(cmd.Context())
		return nil
	},
}

func init() {
	f := rootCmd.Flags()
	f.String("delta", "", "Path to the consolidated DDL delta script (required)")
	f.String("policy", "", "Path to the exception policy JSON file")
	f.String("patterns", "", "Path to the custom pattern JSON file")
	f.String("out", "", "Report artifact path (default: stdout)")
	f.String("default-schema", "dbo", "Schema assumed for unqualified table names")
	f.Int("sample-size", 1000, "Maximum rows sampled per table")
	f.Duration("query-timeout", 0, "Per-table sampling query timeout")
	f.Duration("parse-timeout", 0, "Delta regex matching timeout")
	f.Int("workers", 1, "Concurrent table samplers (1 = sequential)")
	f.Bool("force-continue", false, "Report success despite active violations (audited)")
	f.String("force-reason", "", "Audit reason required with --force-continue")
	f.String("connection.driver", "", "Database dialect: sqlserver, postgres, mysql, duckdb")
	f.String("connection.dsn", "", "Direct database connection string")
	f.String("connection.vault.address", "", "Vault server address")
	f.String("connection.vault.path", "", "Vault secret path holding the DSN")
	f.String("connection.vault.key", "", "Key within the vault secret")
}

func initLogger() (*zap.Logger, error) {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		zapcore.InfoLevel,
	)
	return zap.New(core), nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(report.ExitUnhandledFault)
	}
	os.Exit(exitStatus)
}
