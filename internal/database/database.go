// Package database opens the PostgreSQL store. A localhost configuration
// without a password boots an embedded server under the data directory.
package database

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/xelth-com/eckslot/internal/config"
	"github.com/xelth-com/eckslot/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const embeddedPassword = "postgres"

// DB wraps gorm.DB and includes a reference to an embedded process if active
type DB struct {
	*gorm.DB
	embedded *embeddedpostgres.EmbeddedPostgres
}

// GormConfig is the gorm setup shared by every connection: UTC timestamps
// and SQL logging unless quiet.
func GormConfig(quiet bool) *gorm.Config {
	level := logger.Warn
	if quiet {
		level = logger.Silent
	}
	return &gorm.Config{
		Logger: logger.New(log.New(os.Stdout, "", log.LstdFlags), logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Connect establishes a connection to a PostgreSQL database (external or embedded)
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	var embedded *embeddedpostgres.EmbeddedPostgres

	if cfg.Host == "localhost" && cfg.Password == "" {
		var err error
		embedded, err = startEmbedded(cfg)
		if err != nil {
			return nil, err
		}
		cfg.Port = strconv.Itoa(cfg.EmbeddedPort)
		cfg.Password = embeddedPassword
	} else {
		log.Printf("🌐 Mode: [External PostgreSQL] - Connecting to %s:%s\n", cfg.Host, cfg.Port)
	}

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database,
	)
	gdb, err := gorm.Open(postgres.Open(dsn), GormConfig(cfg.Quiet))
	if err != nil {
		if embedded != nil {
			_ = embedded.Stop()
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if sqlDB, err := gdb.DB(); err == nil {
		maxOpen := cfg.MaxOpenConns
		if maxOpen < 1 {
			maxOpen = 50
		}
		sqlDB.SetMaxOpenConns(maxOpen)
		sqlDB.SetMaxIdleConns(maxOpen / 5)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	log.Println("✅ Database connection established")
	return &DB{DB: gdb, embedded: embedded}, nil
}

// startEmbedded boots the bundled PostgreSQL on cfg.EmbeddedPort
func startEmbedded(cfg config.DatabaseConfig) (*embeddedpostgres.EmbeddedPostgres, error) {
	log.Println("📦 Mode: [Embedded PostgreSQL] - Initializing internal database...")

	reclaimDataDir(cfg.EmbeddedDataDir)
	if err := waitPortFree(cfg.EmbeddedPort, 3*time.Second); err != nil {
		return nil, err
	}

	pg := embeddedpostgres.NewDatabase(embeddedpostgres.DefaultConfig().
		DataPath(cfg.EmbeddedDataDir).
		Port(uint32(cfg.EmbeddedPort)).
		Database(cfg.Database).
		Username(cfg.Username).
		Password(embeddedPassword))
	if err := pg.Start(); err != nil {
		return nil, fmt.Errorf("failed to start embedded database: %w", err)
	}
	log.Printf("✅ Embedded PostgreSQL process started on port %d", cfg.EmbeddedPort)
	return pg, nil
}

// reclaimDataDir stops a postmaster left running by a crashed previous run
// and removes its pid file so the embedded server can start again.
func reclaimDataDir(dir string) {
	pidFile := filepath.Join(dir, "postmaster.pid")
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return
	}

	firstLine, _, _ := bytes.Cut(data, []byte("\n"))
	pid, err := strconv.Atoi(string(bytes.TrimSpace(firstLine)))
	if err != nil {
		log.Printf("⚠️  Could not parse PID from postmaster.pid: %v", err)
		return
	}

	proc, err := os.FindProcess(pid)
	if err != nil || !alive(proc) {
		log.Printf("🧹 Cleaning up stale postmaster.pid (PID %d not running)", pid)
		os.Remove(pidFile)
		return
	}

	log.Printf("⚠️  Found orphaned PostgreSQL process (PID %d), attempting to stop...", pid)
	_ = proc.Signal(syscall.SIGTERM)
	for deadline := time.Now().Add(5 * time.Second); time.Now().Before(deadline); {
		time.Sleep(500 * time.Millisecond)
		if !alive(proc) {
			log.Printf("✅ Orphaned PostgreSQL process stopped")
			os.Remove(pidFile)
			return
		}
	}

	log.Printf("⚠️  Process did not stop gracefully, sending SIGKILL...")
	_ = proc.Kill()
	time.Sleep(500 * time.Millisecond)
	os.Remove(pidFile)
}

// alive probes a process with signal 0; FindProcess always succeeds on Unix
func alive(proc *os.Process) bool {
	return proc.Signal(syscall.Signal(0)) == nil
}

// waitPortFree polls until nothing accepts connections on port
func waitPortFree(port int, timeout time.Duration) error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	for deadline := time.Now().Add(timeout); ; {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err != nil {
			return nil
		}
		conn.Close()
		if time.Now().After(deadline) {
			return fmt.Errorf("port %d is still in use by another process", port)
		}
		log.Printf("⚠️  Port %d still in use, waiting for release...", port)
		time.Sleep(500 * time.Millisecond)
	}
}

// Wrap adopts an already opened gorm connection (used by tests and tools
// that bring their own dialector)
func Wrap(db *gorm.DB) *DB {
	return &DB{DB: db}
}

// Ping checks that the database answers
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Migrate synchronizes the schema of every domain model
func (db *DB) Migrate() error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close ensures the database connection and embedded process are shut down
func (db *DB) Close() error {
	var errs []error
	if sqlDB, err := db.DB.DB(); err != nil {
		errs = append(errs, err)
	} else if err := sqlDB.Close(); err != nil {
		errs = append(errs, err)
	}
	if db.embedded != nil {
		log.Println("🛑 Stopping Embedded PostgreSQL process...")
		if err := db.embedded.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop embedded postgres: %w", err))
		}
	}
	return errors.Join(errs...)
}
