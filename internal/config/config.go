// Package config holds the AtlasKV engine and server configuration, with
// the defaults named in the spec's External Interfaces section.
package config

import (
	"fmt"
	"time"

	"github.com/atlaskv/atlaskv/internal/atlaserr"
)

// SyncStrategy controls how often the WAL is forced durable.
type SyncStrategy struct {
	// EveryWrite, when true, forces a durable flush after every Append.
	EveryWrite bool
	// N is the uncommitted-entry threshold when EveryWrite is false.
	N int
}

// EveryWriteStrategy forces an fsync after every WAL append.
func EveryWriteStrategy() SyncStrategy {
	return SyncStrategy{EveryWrite: true}
}

// EveryNEntriesStrategy forces an fsync once n entries are uncommitted.
func EveryNEntriesStrategy(n int) SyncStrategy {
	return SyncStrategy{N: n}
}

// Config is the full configuration object for an Engine plus the network
// front end that drives it.
type Config struct {
	DataDir            string
	WalSyncStrategy    SyncStrategy
	MemtableSizeLimit  int64
	ListenAddr         string
	MaxConnections     int
	ReadTimeoutMillis  int64
	WriteTimeoutMillis int64
}

// Default returns the configuration described in spec.md §6: a 64MB
// memtable, fsync every 100 WAL entries, listening on 127.0.0.1:6379.
func Default() Config {
	return Config{
		DataDir:            "./atlaskv_data",
		WalSyncStrategy:    EveryNEntriesStrategy(100),
		MemtableSizeLimit:  64 * 1024 * 1024,
		ListenAddr:         "127.0.0.1:6379",
		MaxConnections:     1024,
		ReadTimeoutMillis:  5000,
		WriteTimeoutMillis: 5000,
	}
}

// Validate rejects configurations that cannot produce a working engine.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data dir must not be empty", atlaserr.ErrConfig)
	}
	if c.MemtableSizeLimit <= 0 {
		return fmt.Errorf("%w: memtable size limit must be positive", atlaserr.ErrConfig)
	}
	if !c.WalSyncStrategy.EveryWrite && c.WalSyncStrategy.N <= 0 {
		return fmt.Errorf("%w: sync-every-n-entries count must be positive", atlaserr.ErrConfig)
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("%w: max connections must be positive", atlaserr.ErrConfig)
	}
	return nil
}

// ReadTimeout returns the configured read deadline as a time.Duration.
func (c Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMillis) * time.Millisecond
}

// WriteTimeout returns the configured write deadline as a time.Duration.
func (c Config) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMillis) * time.Millisecond
}
