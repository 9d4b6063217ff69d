// Command atlaskv-server runs the AtlasKV storage engine behind a TCP
// listener. Flags are grounded on the cobra CLI pattern used by
// lirlia-100day_challenge_backend/day42_raft_nosql_simulator's cmd/cli
// package: one root command with flags bound directly to
// package-level vars via StringVar/IntVar, no generated subcommands.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atlaskv/atlaskv/internal/config"
	"github.com/atlaskv/atlaskv/internal/engine"
	"github.com/atlaskv/atlaskv/internal/logkv"
	"github.com/atlaskv/atlaskv/internal/server"
)

var (
	dataDir        string
	listenAddr     string
	maxConnections int
	memtableMB     int
	syncEveryN     int
	syncEveryWrite bool
)

var rootCmd = &cobra.Command{
	Use:   "atlaskv-server",
	Short: "Starts the AtlasKV embedded key-value store's TCP server",
	RunE:  runServer,
}

func init() {
	defaults := config.Default()

	rootCmd.Flags().StringVar(&dataDir, "data-dir", defaults.DataDir, "directory for the WAL and SSTable files")
	rootCmd.Flags().StringVar(&listenAddr, "listen", defaults.ListenAddr, "TCP address to listen on")
	rootCmd.Flags().IntVar(&maxConnections, "max-connections", defaults.MaxConnections, "maximum concurrent client connections")
	rootCmd.Flags().IntVar(&memtableMB, "memtable-mb", int(defaults.MemtableSizeLimit/(1024*1024)), "memtable size limit in mebibytes before an automatic flush")
	rootCmd.Flags().IntVar(&syncEveryN, "sync-every-n", defaults.WalSyncStrategy.N, "fsync the WAL after this many buffered entries")
	rootCmd.Flags().BoolVar(&syncEveryWrite, "sync-every-write", defaults.WalSyncStrategy.EveryWrite, "fsync the WAL after every single write (overrides --sync-every-n)")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	cfg.DataDir = dataDir
	cfg.ListenAddr = listenAddr
	cfg.MaxConnections = maxConnections
	cfg.MemtableSizeLimit = int64(memtableMB) * 1024 * 1024
	if syncEveryWrite {
		cfg.WalSyncStrategy = config.EveryWriteStrategy()
	} else {
		cfg.WalSyncStrategy = config.EveryNEntriesStrategy(syncEveryN)
	}

	eng, err := engine.Open(cfg)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}

	srv := server.New(cfg, eng)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logkv.With("atlaskv-server").Info("shutting down")
		srv.Shutdown()
	}()

	if err := srv.Serve(); err != nil {
		eng.Close()
		return fmt.Errorf("serve: %w", err)
	}

	return eng.Close()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
