package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nethalo/dbsafe-osc/internal/mysql"
	"github.com/nethalo/dbsafe-osc/internal/osc/invoker"
	"github.com/nethalo/dbsafe-osc/internal/osclog"
	"github.com/nethalo/dbsafe-osc/internal/output"
)

var resumeCmd = &cobra.Command{
	Use:          "resume <database>.<table>",
	Short:        "Resume an interrupted online schema change",
	SilenceUsage: true,
	Long: `Resume continues a backfill that was interrupted mid-copy (process
killed, host rebooted) from its last saved low watermark, instead of
restarting from the beginning. It requires that the original "run" was
started with checkpointing enabled (osc.checkpoint: true, or
--checkpoint on the original run) and that the shadow table it created
is still present.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		origin := args[0]
		database, _ := splitDatabaseTable(origin)
		if database == "" {
			return fmt.Errorf("table must be schema-qualified, e.g. mydb.users")
		}

		connCfg := mysql.ConnectionConfig{
			Host:     viper.GetString("host"),
			Port:     viper.GetInt("port"),
			User:     viper.GetString("user"),
			Password: viper.GetString("password"),
			Database: database,
			Socket:   viper.GetString("socket"),
			TLSMode:  viper.GetString("tls"),
			TLSCA:    viper.GetString("tls_ca"),
		}
		if connCfg.Host == "" && connCfg.Socket == "" {
			connCfg.Host = "127.0.0.1"
		}
		if connCfg.User == "" {
			connCfg.User = "dbsafe"
		}
		if connCfg.Password == "" {
			connCfg.Password = mysql.PromptPassword()
		}

		conn, err := mysql.Connect(connCfg)
		if err != nil {
			return fmt.Errorf("connection failed: %w", err)
		}
		defer conn.Close()

		logger := osclog.New(viper.GetBool("verbose"))

		opt := invoker.Option{
			Stride:               viper.GetInt("osc.stride"),
			Throttle:             time.Duration(viper.GetInt("osc.throttle_ms")) * time.Millisecond,
			RetrySleepTime:       time.Duration(viper.GetInt("osc.retry_sleep_ms")) * time.Millisecond,
			MaxRetries:           viper.GetInt("osc.max_retries"),
			TemporaryTableSuffix: viper.GetString("osc.temporary_table_suffix"),
			Checkpoint:           true,
		}

		inv := invoker.New(conn, origin, opt, logger)

		summary, err := inv.Resume(context.Background())
		if err != nil {
			return fmt.Errorf("resume failed: %w", err)
		}

		format := viper.GetString("format")
		renderer := output.NewRenderer(format, os.Stdout)
		renderer.RenderRunSummary(summary)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}
