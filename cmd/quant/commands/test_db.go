package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/equitysim/pkg/database"
)

// testDBCmd represents the test-db command
var testDBCmd = &cobra.Command{
	Use:   "test-db",
	Short: "PostgreSQL 연결 테스트",
	Long: `Connects with DATABASE_URL, pings, and prints pool statistics.

Example:
  go run ./cmd/quant test-db
  go run ./cmd/quant test-db --env production`,
	RunE: runTestDB,
}

func init() {
	rootCmd.AddCommand(testDBCmd)
}

func runTestDB(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadRuntime()
	if err != nil {
		return err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	fmt.Printf("✅ Config loaded (ENV: %s)\n", cfg.Env)
	fmt.Printf("   Database URL: %s\n\n", maskPassword(cfg.Database.URL))

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("❌ Failed to connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("❌ Health check failed: %w", err)
	}

	fmt.Println("✅ Health Check Results:")
	PrintKeyValue("Healthy", fmt.Sprint(status.Healthy), 14)
	PrintKeyValue("Response time", status.ResponseTime.String(), 14)
	PrintKeyValue("Timestamp", status.Timestamp.Format(time.RFC3339), 14)
	fmt.Println()

	fmt.Println("📊 Connection Pool Statistics:")
	PrintKeyValue("Max", fmt.Sprint(status.MaxConns), 14)
	PrintKeyValue("Total", fmt.Sprint(status.TotalConns), 14)
	PrintKeyValue("Acquired", fmt.Sprint(status.AcquiredConns), 14)
	PrintKeyValue("Idle", fmt.Sprint(status.IdleConns), 14)

	fmt.Println()
	PrintSuccess("All tests passed!")
	return nil
}

// maskPassword hides the password component of a connection URL
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
