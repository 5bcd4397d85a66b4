package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/thejerf/suture/v4"
	"golang.org/x/term"

	"github.com/litevault/litevault/internal/config"
	"github.com/litevault/litevault/internal/logging"
	"github.com/litevault/litevault/internal/manager"
	"github.com/litevault/litevault/internal/metadata"
	"github.com/litevault/litevault/internal/progress"
	"github.com/litevault/litevault/internal/remote"
	"github.com/litevault/litevault/internal/scheduler"
	"github.com/litevault/litevault/pkg/version"
)

// Global variables for CLI flags
var (
	configPath string
	dbPath     string
	backupDir  string
	verbose    bool
	quiet      bool
	// backup flags
	backupType string
	compress   bool
	encrypt    bool
	password   string
	// restore flags
	targetPath string
	// list flags
	listRemote bool
	// remote storage flags
	remoteType   string
	s3Bucket     string
	s3Region     string
	s3Endpoint   string
	s3AccessKey  string
	s3SecretKey  string
	gcsBucket    string
	gcsCredsFile string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:     "litevault",
		Short:   "SQLite backup and recovery manager",
		Long:    "litevault takes verified online backups of a SQLite database, restores them with hash and integrity verification, and enforces a tiered retention policy with optional scheduling, encryption and off-site replication",
		Version: version.Version,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: litevault.yaml, /etc/litevault/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the SQLite database")
	rootCmd.PersistentFlags().StringVar(&backupDir, "backup-dir", "", "Directory to store backups")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet output")

	// Remote replication flags
	rootCmd.PersistentFlags().StringVar(&remoteType, "remote", "", "Remote replication backend (s3, gcs)")
	rootCmd.PersistentFlags().StringVar(&s3Bucket, "s3-bucket", "", "S3 bucket name")
	rootCmd.PersistentFlags().StringVar(&s3Region, "s3-region", "", "S3 region")
	rootCmd.PersistentFlags().StringVar(&s3Endpoint, "s3-endpoint", "", "S3 endpoint (for S3-compatible services)")
	rootCmd.PersistentFlags().StringVar(&s3AccessKey, "s3-access-key", "", "S3 access key")
	rootCmd.PersistentFlags().StringVar(&s3SecretKey, "s3-secret-key", "", "S3 secret key")
	rootCmd.PersistentFlags().StringVar(&gcsBucket, "gcs-bucket", "", "GCS bucket name")
	rootCmd.PersistentFlags().StringVar(&gcsCredsFile, "gcs-creds", "", "Path to GCS credentials file")

	// Add commands
	rootCmd.AddCommand(createBackupCommand())
	rootCmd.AddCommand(createRestoreCommand())
	rootCmd.AddCommand(createListCommand())
	rootCmd.AddCommand(createStatusCommand())
	rootCmd.AddCommand(createCleanupCommand())
	rootCmd.AddCommand(createDeleteCommand())
	rootCmd.AddCommand(createVerifyCommand())
	rootCmd.AddCommand(createPullCommand())
	rootCmd.AddCommand(createServeCommand())
	rootCmd.AddCommand(createVersionCommand())

	return rootCmd
}

// loadConfig loads the layered configuration and applies flag overrides on
// top of it.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if backupDir != "" {
		cfg.Backup.Dir = backupDir
	}
	if remoteType != "" {
		cfg.Remote.Type = remoteType
	}
	if s3Bucket != "" {
		cfg.Remote.S3.Bucket = s3Bucket
	}
	if s3Region != "" {
		cfg.Remote.S3.Region = s3Region
	}
	if s3Endpoint != "" {
		cfg.Remote.S3.Endpoint = s3Endpoint
	}
	if s3AccessKey != "" {
		cfg.Remote.S3.AccessKey = s3AccessKey
	}
	if s3SecretKey != "" {
		cfg.Remote.S3.SecretKey = s3SecretKey
	}
	if gcsBucket != "" {
		cfg.Remote.GCS.Bucket = gcsBucket
	}
	if gcsCredsFile != "" {
		cfg.Remote.GCS.Credentials = gcsCredsFile
	}
	if encrypt {
		cfg.Encryption.Enabled = true
	}
	if password != "" {
		cfg.Encryption.Password = password
	}
	if verbose && cfg.Logging.Level == "info" {
		cfg.Logging.Level = "debug"
	}
	if quiet && !verbose {
		cfg.Logging.Level = "error"
	}

	return cfg, nil
}

// setup builds the manager and its logger from config plus flags. The
// returned closer flushes the log file, if any.
func setup(ctx context.Context, needPassword bool) (*manager.Manager, *config.Config, zerolog.Logger, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, zerolog.Nop(), nil, err
	}

	logger, closeLog, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, zerolog.Nop(), nil, err
	}

	if cfg.Encryption.Enabled && cfg.Encryption.Password == "" {
		if needPassword {
			pw, err := promptPassword("Enter encryption password: ", false)
			if err != nil {
				closeLog()
				return nil, nil, zerolog.Nop(), nil, err
			}
			cfg.Encryption.Password = pw
		} else {
			// read-only commands never encrypt or decrypt
			cfg.Encryption.Enabled = false
		}
	}

	backend, err := remote.NewBackend(ctx, cfg.Remote)
	if err != nil {
		closeLog()
		return nil, nil, zerolog.Nop(), nil, err
	}

	mgr, err := manager.New(manager.Options{
		DBPath:    cfg.Database.Path,
		BackupDir: cfg.Backup.Dir,
		Compress:  cfg.Backup.Compress,
		Retention: manager.Retention{
			Daily:   cfg.Backup.Retention.Daily,
			Weekly:  cfg.Backup.Retention.Weekly,
			Monthly: cfg.Backup.Retention.Monthly,
		},
		Schedule: cfg.Backup.Schedule,
		Encrypt:  cfg.Encryption.Enabled,
		Password: cfg.Encryption.Password,
		Remote:   backend,
		Quiet:    quiet,
		Logger:   logger,
	})
	if err != nil {
		closeLog()
		return nil, nil, zerolog.Nop(), nil, err
	}

	return mgr, cfg, logger, closeLog, nil
}

func promptPassword(prompt string, confirm bool) (string, error) {
	fmt.Print(prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if len(pw) == 0 {
		return "", fmt.Errorf("password must not be empty")
	}

	if confirm {
		fmt.Print("Confirm password: ")
		again, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		if string(pw) != string(again) {
			return "", fmt.Errorf("passwords do not match")
		}
	}

	return string(pw), nil
}

func createBackupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a backup of the database",
		Long:  "Take a verified online snapshot of the configured SQLite database and record it in the backup catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			mgr, cfg, _, closeLog, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer closeLog()

			doCompress := cfg.Backup.Compress
			if cmd.Flags().Changed("compress") {
				doCompress = compress
			}

			res := mgr.CreateBackup(ctx, metadata.BackupType(backupType), doCompress)
			if !res.Success {
				return res.Err
			}

			if !quiet {
				fmt.Printf("✅ Backup created: %s\n", res.Record.Name)
				fmt.Printf("   Path: %s\n", res.Record.FilePath)
				fmt.Printf("   Size: %s", formatBytes(res.Record.FileSize))
				if res.Record.Compressed {
					fmt.Printf(" (from %s)", formatBytes(res.Record.OriginalSize))
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&backupType, "type", "t", "manual", "Backup type (manual, daily, weekly, monthly, full, emergency, scheduled)")
	cmd.Flags().BoolVar(&compress, "compress", true, "Compress the backup with gzip")
	cmd.Flags().BoolVar(&encrypt, "encrypt", false, "Encrypt the backup with AES-256")
	cmd.Flags().StringVar(&password, "password", "", "Password for encryption (will prompt if not provided)")

	return cmd
}

func createRestoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <backup-name>",
		Short: "Restore a backup",
		Long:  "Verify a backup's hash and integrity and restore it. The default target is the source database path plus .restored; pass --target with the live path explicitly for an in-place restore",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			mgr, _, _, closeLog, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer closeLog()

			res := mgr.RestoreBackup(args[0], targetPath)
			if !res.Success {
				return res.Err
			}

			if !quiet {
				fmt.Printf("✅ %s\n", res.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&targetPath, "target", "", "Restore target path (default: <db-path>.restored)")
	cmd.Flags().StringVar(&password, "password", "", "Password for decryption (will prompt if encryption is enabled and not provided)")

	return cmd
}

func createListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all backups",
		Long:  "List all recorded backups, newest first. With --remote, list the objects on the replication backend instead",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			mgr, _, _, closeLog, err := setup(ctx, false)
			if err != nil {
				return err
			}
			defer closeLog()

			if listRemote {
				keys, err := mgr.RemoteKeys(ctx)
				if err != nil {
					return err
				}
				if len(keys) == 0 {
					fmt.Println("No remote objects found")
					return nil
				}
				for _, key := range keys {
					fmt.Println(key)
				}
				return nil
			}

			records := mgr.Store().Records()
			if len(records) == 0 {
				fmt.Println("No backups found")
				return nil
			}

			// newest first
			for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
				records[i], records[j] = records[j], records[i]
			}

			fmt.Printf("%-40s %-20s %-10s %-10s %s\n", "NAME", "CREATED", "SIZE", "TYPE", "FLAGS")
			for _, rec := range records {
				flags := ""
				if rec.Compressed {
					flags += "gz "
				}
				if rec.Encrypted {
					flags += "enc"
				}
				fmt.Printf("%-40s %-20s %-10s %-10s %s\n",
					rec.Name,
					rec.Timestamp.Format("2006-01-02 15:04:05"),
					formatBytes(rec.FileSize),
					rec.Type,
					flags,
				)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&listRemote, "remote-objects", false, "List objects on the replication backend instead of local records")

	return cmd
}

func createStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backup system status as JSON",
		Long:  "Report backup counts, sizes, schedule and a fresh integrity check of the live database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			mgr, _, _, closeLog, err := setup(ctx, false)
			if err != nil {
				return err
			}
			defer closeLog()

			data, err := json.MarshalIndent(mgr.Status(), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode status: %w", err)
			}
			fmt.Println(string(data))
			return nil
		},
	}
}

func createCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete backups beyond the retention caps",
		Long:  "Apply the tiered retention policy (daily/weekly/monthly caps) and delete excess backups, newest kept first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			mgr, _, _, closeLog, err := setup(ctx, false)
			if err != nil {
				return err
			}
			defer closeLog()

			res := mgr.CleanupOldBackups(ctx)
			if !res.Success {
				return res.Err
			}

			if !quiet {
				fmt.Printf("✅ %s\n", res.Message)
				for _, name := range res.Removed {
					fmt.Printf("   removed %s\n", name)
				}
			}
			return nil
		},
	}
}

func createDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <backup-name>",
		Short: "Delete a backup",
		Long:  "Delete a backup's artifact, its remote replica when replication is configured, and its catalog record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			mgr, _, _, closeLog, err := setup(ctx, false)
			if err != nil {
				return err
			}
			defer closeLog()

			res := mgr.Delete(ctx, args[0])
			if !res.Success {
				return res.Err
			}

			if !quiet {
				fmt.Printf("✅ %s\n", res.Message)
			}
			return nil
		},
	}
}

func createVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <backup-name>",
		Short: "Verify a backup without restoring it",
		Long:  "Recompute the backup's content hash and run an integrity check on its database content without touching any restore target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			mgr, _, _, closeLog, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer closeLog()

			var spinner *progress.Spinner
			if !quiet {
				spinner = progress.NewSpinner("Verifying " + args[0])
			}
			res := mgr.Verify(args[0])
			if spinner != nil {
				spinner.Stop()
			}
			if !res.Success {
				return res.Err
			}

			if !quiet {
				fmt.Printf("✅ %s\n", res.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Password for decryption (will prompt if encryption is enabled and not provided)")

	return cmd
}

func createPullCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pull <backup-name>",
		Short: "Re-download a backup from remote storage",
		Long:  "Fetch a recorded backup whose artifact is missing from disk from the replication backend. The download is kept only after its hash and integrity verify against the catalog record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			mgr, _, _, closeLog, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer closeLog()

			res := mgr.PullFromRemote(ctx, args[0])
			if !res.Success {
				return res.Err
			}

			if !quiet {
				fmt.Printf("✅ %s\n", res.Message)
			}
			return nil
		},
	}
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show detailed version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.Info())
		},
	}
}

func createServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the backup scheduler in the foreground",
		Long:  "Run the automated backup scheduler under a supervision tree until interrupted. Jobs fire per the configured schedule; retention cleanup runs daily at 03:30",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mgr, _, logger, closeLog, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer closeLog()

			sched := scheduler.New(mgr, logger)

			sup := suture.NewSimple("litevault")
			sup.Add(sched)

			logger.Info().Msg("starting supervised scheduler, press Ctrl-C to stop")
			if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			logger.Info().Msg("scheduler shut down")
			return nil
		},
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
