package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scadalink/mbtcp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string

	listenHost  string
	listenPort  int
	bankSize    int
	maxConns    int
	readTimeout time.Duration
	verbose     bool

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mbtcpd",
	Short: "Modbus TCP server daemon",
	Long: `mbtcpd serves Modbus TCP requests from an in-memory register map.

The store has four banks (coils, discrete inputs, holding registers,
input registers), all zero-initialized at startup. Each client
connection is handled concurrently; requests within a connection are
answered in order.`,
	Version: version,
	RunE:    runServer,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.mbtcpd.yaml)")

	rootCmd.Flags().StringVarP(&listenHost, "host", "H", "0.0.0.0", "Listen host")
	rootCmd.Flags().IntVarP(&listenPort, "port", "p", mbtcp.DefaultPort, "Listen port")
	rootCmd.Flags().IntVarP(&bankSize, "bank-size", "b", mbtcp.DefaultBankSize, "Entries per register bank")
	rootCmd.Flags().IntVar(&maxConns, "max-conns", 100, "Maximum concurrent connections")
	rootCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "Idle connection timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	viper.BindPFlag("host", rootCmd.Flags().Lookup("host"))
	viper.BindPFlag("port", rootCmd.Flags().Lookup("port"))
	viper.BindPFlag("bank-size", rootCmd.Flags().Lookup("bank-size"))
	viper.BindPFlag("max-conns", rootCmd.Flags().Lookup("max-conns"))
	viper.BindPFlag("read-timeout", rootCmd.Flags().Lookup("read-timeout"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".mbtcpd")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("MBTCPD")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	store := mbtcp.NewDataStore(viper.GetInt("bank-size"))
	server := mbtcp.NewServer(store,
		mbtcp.WithServerLogger(logger),
		mbtcp.WithMaxConnections(viper.GetInt("max-conns")),
		mbtcp.WithReadTimeout(viper.GetDuration("read-timeout")),
	)

	addr := fmt.Sprintf("%s:%d", viper.GetString("host"), viper.GetInt("port"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe(addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	}

	if err := server.Close(); err != nil {
		return err
	}

	snap := store.Snapshot()
	metrics := server.Metrics()
	logger.Info("final state",
		slog.Int("coils", len(snap.Coils)),
		slog.Int("holding_registers", len(snap.HoldingRegisters)),
		slog.Int64("connections_total", metrics.ConnectionsTotal.Value()),
		slog.Int64("requests_total", metrics.RequestsTotal.Value()),
		slog.Int64("requests_errors", metrics.RequestsErrors.Value()),
		slog.Int64("frames_invalid", metrics.FramesInvalid.Value()))

	return <-errCh
}
