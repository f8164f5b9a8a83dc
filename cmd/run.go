package cmd

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nethalo/dbsafe-osc/internal/analyzer"
	"github.com/nethalo/dbsafe-osc/internal/mysql"
	"github.com/nethalo/dbsafe-osc/internal/osc/invoker"
	"github.com/nethalo/dbsafe-osc/internal/oscconfig"
	"github.com/nethalo/dbsafe-osc/internal/osclog"
	"github.com/nethalo/dbsafe-osc/internal/output"
	"github.com/nethalo/dbsafe-osc/internal/parser"
	"github.com/nethalo/dbsafe-osc/internal/topology"
)

var runCmd = &cobra.Command{
	Use:          "run <database>.<table> --alter \"<clause>\"",
	Short:        "Run an online schema change via shadow-table copy",
	SilenceUsage: true,
	Long: `Run performs a schema change without blocking writes to the original
table: it creates a shadow copy, applies the ALTER clause to the copy,
mirrors live writes onto it with triggers, backfills existing rows in
bounded chunks, and swaps the tables in with an atomic rename (or a
brief LOCK TABLES fallback on flavors that can't guarantee the rename
is atomic).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		origin := args[0]
		database, table := splitDatabaseTable(origin)
		if database == "" {
			return fmt.Errorf("table must be schema-qualified, e.g. mydb.users")
		}

		alterClause, _ := cmd.Flags().GetString("alter")
		if strings.TrimSpace(alterClause) == "" {
			return fmt.Errorf("--alter is required, e.g. --alter \"ADD COLUMN last_seen DATETIME\"")
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

		verbose := viper.GetBool("verbose")
		logger := osclog.New(verbose)

		if topo, err := topology.Detect(conn, verbose); err == nil {
			switch topo.Type {
			case topology.Galera, topology.GroupRepl:
				logger.Warnf("running against a %s cluster; online schema changes are more disruptive here than on a standalone server", topo.Type)
			}
		}

		opt := invoker.Option{
			Stride:               viper.GetInt("osc.stride"),
			Throttle:             time.Duration(viper.GetInt("osc.throttle_ms")) * time.Millisecond,
			RetrySleepTime:       time.Duration(viper.GetInt("osc.retry_sleep_ms")) * time.Millisecond,
			MaxRetries:           viper.GetInt("osc.max_retries"),
			TemporaryTableSuffix: viper.GetString("osc.temporary_table_suffix"),
			Checkpoint:           viper.GetBool("osc.checkpoint"),
		}
		if cfgFile := viper.ConfigFileUsed(); cfgFile != "" {
			if parsed, err := oscconfig.Load(cfgFile); err == nil {
				opt = parsed.InvokerOption(origin)
			}
		}
		if checkpoint, _ := cmd.Flags().GetBool("checkpoint"); checkpoint {
			opt.Checkpoint = true
		}

		if bypass, _ := cmd.Flags().GetBool("no-entangler"); bypass {
			f := false
			opt.Entangler = &f
		} else if !cmd.Flags().Changed("no-entangler") && recommendBypass(conn, connCfg, database, table, alterClause) {
			f := false
			opt.Entangler = &f
			fmt.Fprintln(os.Stderr, "dbsafe-osc: this ALTER classifies as INSTANT or LOCK=NONE INPLACE; running it directly instead of via shadow-table copy (use --no-entangler=false to force the copy path)")
		}

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			if !confirm(fmt.Sprintf("About to run ALTER TABLE %s %s online. Continue?", origin, alterClause)) {
				fmt.Fprintln(os.Stderr, "Aborted.")
				return nil
			}
		}

		inv := invoker.New(conn, origin, opt, logger)

		ctx := context.Background()
		summary, err := inv.Execute(ctx, func(ctx context.Context, target string) error {
			stmt := fmt.Sprintf("ALTER TABLE `%s` %s", lastComponent(target), alterClause)
			_, err := conn.ExecContext(ctx, stmt)
			return err
		})
		if err != nil {
			return fmt.Errorf("run failed: %w", err)
		}

		format := viper.GetString("format")
		renderer := output.NewRenderer(format, os.Stdout)
		renderer.RenderRunSummary(summary)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("alter", "", "ALTER TABLE clause to apply, without the leading ALTER TABLE <name> (e.g. \"ADD COLUMN foo INT\")")
	runCmd.Flags().Bool("yes", false, "Skip the confirmation prompt")
	runCmd.Flags().Bool("no-entangler", false, "Force bypass of the shadow-table copy and apply the ALTER directly")
	runCmd.Flags().Bool("checkpoint", false, "Persist backfill progress so a crashed run can be continued with 'resume'")
	viper.SetDefault("osc.stride", 2000)
	viper.SetDefault("osc.throttle_ms", 100)
	viper.SetDefault("osc.retry_sleep_ms", 10)
	viper.SetDefault("osc.max_retries", 600)
	viper.SetDefault("osc.temporary_table_suffix", "_new")
	viper.SetDefault("osc.checkpoint", false)
}

func splitDatabaseTable(name string) (database, table string) {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return "", name
	}
	return name[:idx], name[idx+1:]
}

func lastComponent(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return name
	}
	return name[idx+1:]
}

func confirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	return strings.TrimSpace(strings.ToLower(answer)) == "y"
}

// recommendBypass asks the existing DDL classifier whether this ALTER
// would already run as native INSTANT/INPLACE LOCK=NONE DDL, in which
// case a shadow-table copy is unnecessary overhead.
func recommendBypass(conn *sql.DB, connCfg mysql.ConnectionConfig, database, table, alterClause string) bool {
	sqlText := fmt.Sprintf("ALTER TABLE %s.%s %s", database, table, alterClause)
	parsed, err := parser.Parse(sqlText)
	if err != nil || parsed.Type != parser.DDL {
		return false
	}

	version, err := mysql.GetServerVersion(conn)
	if err != nil {
		return false
	}
	meta, err := mysql.GetTableMetadata(conn, database, table)
	if err != nil {
		return false
	}
	topo, _ := topology.Detect(conn, false)

	result := analyzer.Analyze(analyzer.Input{
		Parsed:  parsed,
		Meta:    meta,
		Topo:    topo,
		Version: version,
	})
	c := result.Classification
	return c.Algorithm == analyzer.AlgoInstant ||
		(c.Algorithm == analyzer.AlgoInplace && c.Lock == analyzer.LockNone)
}
