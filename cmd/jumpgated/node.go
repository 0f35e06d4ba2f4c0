package jumpgated

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aremia/jumpgates/pkg/common"
	"github.com/aremia/jumpgates/pkg/db"
	"github.com/aremia/jumpgates/pkg/devnet"
	"github.com/aremia/jumpgates/pkg/encode"
	"github.com/aremia/jumpgates/pkg/jumpgate"
	"github.com/aremia/jumpgates/pkg/publicrpc"
	"github.com/aremia/jumpgates/pkg/readiness"
	"github.com/aremia/jumpgates/pkg/sweeper"
	"github.com/aremia/jumpgates/pkg/version"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	ipfslog "github.com/ipfs/go-log/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	dataDir    *string
	statusAddr *string
	apiAddr    *string
	logLevel   *string

	genesisPath *string

	recipientChain *string
	recipient      *string
	arbiterFee     *string

	sweepInterval *time.Duration

	apiRateLimit *float64
	apiBurst     *int
)

func init() {
	dataDir = NodeCmd.Flags().String("dataDir", "", "Data directory (records are kept in memory if blank)")
	statusAddr = NodeCmd.Flags().String("statusAddr", "[::]:6060", "Listen address for status server (disabled if blank)")
	apiAddr = NodeCmd.Flags().String("apiAddr", "[::]:7070", "Listen address for the public REST API (disabled if blank)")
	logLevel = NodeCmd.Flags().String("logLevel", "info", "Logging level (debug, info, warn, error, dpanic, panic, fatal)")

	genesisPath = NodeCmd.Flags().String("genesis", "", "Path to devnet genesis JSON (built-in devnet genesis if blank)")

	recipientChain = NodeCmd.Flags().String("recipientChain", "terra", "Destination chain name or Wormhole chain ID")
	recipient = NodeCmd.Flags().String("recipient", "", "Destination address in the native format of recipientChain (required)")
	arbiterFee = NodeCmd.Flags().String("arbiterFee", "0", "Relayer fee in base units of the token")

	sweepInterval = NodeCmd.Flags().Duration("sweepInterval", time.Minute, "How often to check the jumpgate balance (disabled if 0)")

	apiRateLimit = NodeCmd.Flags().Float64("apiRateLimit", 10, "Sustained public API requests per second")
	apiBurst = NodeCmd.Flags().Int("apiBurst", 20, "Public API request burst size")
}

// NodeCmd represents the node command
var NodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run a jumpgate on a local devnet ledger",
	Run:   runNode,
}

func runNode(cmd *cobra.Command, args []string) {
	if err := applyConfig(cmd); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	lvl, err := ipfslog.LevelFromString(*logLevel)
	if err != nil {
		fmt.Println("Invalid log level")
		os.Exit(1)
	}

	// Our root logger. Convert directly to a regular Zap logger.
	logger := ipfslog.Logger("jumpgate").Desugar()

	// Override the default go-log config, which uses a magic environment variable.
	ipfslog.SetAllLoggers(lvl)

	logger.Info("starting jumpgated", zap.String("version", version.Version()))

	if *recipient == "" {
		logger.Fatal("Please specify --recipient")
	}
	chainID, err := encode.ParseChainID(*recipientChain)
	if err != nil {
		logger.Fatal("Invalid recipient chain", zap.Error(err))
	}
	recipientAddr, err := encode.Address(chainID, *recipient)
	if err != nil {
		logger.Fatal("Invalid recipient", zap.String("chain", chainID.String()), zap.Error(err))
	}
	fee, err := uint256.FromDecimal(*arbiterFee)
	if err != nil {
		logger.Fatal("Invalid arbiter fee", zap.Error(err))
	}
	if err := validateSweepInterval(*sweepInterval); err != nil {
		logger.Fatal("Invalid sweep interval", zap.Error(err))
	}

	registry := readiness.NewRegistry()
	registry.RegisterComponent(readiness.Database)
	registry.RegisterComponent(readiness.Ledger)

	if *statusAddr != "" {
		// Use a custom routing instead of using http.DefaultServeMux directly to avoid accidentally exposing packages
		// that register themselves with it by default.
		router := mux.NewRouter()
		router.HandleFunc("/readyz", registry.Handler)
		router.Handle("/metrics", promhttp.Handler())

		go func() {
			logger.Info("status server listening", zap.String("addr", *statusAddr))
			srv := &http.Server{Addr: *statusAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
			logger.Error("status server crashed", zap.Error(srv.ListenAndServe()))
		}()
	}

	database := db.OpenDb(logger, dataDir)
	defer database.Close()
	registry.SetReady(readiness.Database)

	genesis := devnet.DefaultGenesis()
	if *genesisPath != "" {
		data, err := os.ReadFile(*genesisPath)
		if err != nil {
			logger.Fatal("Failed to read genesis", zap.Error(err))
		}
		if genesis, err = devnet.ParseGenesis(data); err != nil {
			logger.Fatal("Failed to parse genesis", zap.Error(err))
		}
	}

	net, err := devnet.Bootstrap(genesis)
	if err != nil {
		logger.Fatal("Failed to bootstrap devnet ledger", zap.Error(err))
	}
	gate, err := net.DeployJumpgate(devnet.Owner(), chainID, recipientAddr, fee)
	if err != nil {
		logger.Fatal("Failed to deploy jumpgate", zap.Error(err))
	}
	registry.SetReady(readiness.Ledger)

	logger.Info("jumpgate deployed",
		zap.Stringer("jumpgate", gate.Address()),
		zap.Stringer("owner", devnet.Owner()),
		zap.Stringer("token", gate.Token()),
		zap.Stringer("bridge", gate.Bridge()),
		zap.Stringer("recipient_chain", chainID),
		zap.String("recipient", *recipient),
	)

	client := jumpgate.NewClient(net.State, gate)
	sw := sweeper.New(logger.Named("sweeper"), client, net.Core, database, devnet.Keeper(), *sweepInterval)

	rootCtx, rootCtxCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCtxCancel()

	errC := make(chan error, 2)

	if *sweepInterval > 0 {
		sw.WithReadiness(registry)
		common.RunWithScissors(rootCtx, errC, "sweeper", sw.Run)
	}

	if *apiAddr != "" {
		limiter := rate.NewLimiter(rate.Limit(*apiRateLimit), *apiBurst)
		srv := publicrpc.NewHTTPServer(*apiAddr, publicrpc.NewPublicrpcServer(logger, client, database, sw, net, limiter))
		common.RunWithScissors(rootCtx, errC, "publicrpc", serveHTTP(logger, srv))
	}

	select {
	case <-rootCtx.Done():
		logger.Info("root context cancelled, exiting...")
	case err := <-errC:
		if !errors.Is(err, context.Canceled) {
			logger.Error("component failed, exiting", zap.Error(err))
		}
	}
}

// validateSweepInterval accepts 0 (sweeper disabled) or at least one second.
func validateSweepInterval(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("sweepInterval %s must not be negative", d)
	}
	if d > 0 && d < time.Second {
		return fmt.Errorf("sweepInterval %s is below the 1s minimum", d)
	}
	return nil
}

// serveHTTP runs srv until ctx is canceled.
func serveHTTP(logger *zap.Logger, srv *http.Server) common.Runnable {
	return func(ctx context.Context) error {
		errC := make(chan error, 1)
		go func() {
			logger.Info("public api listening", zap.String("addr", srv.Addr))
			errC <- srv.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errC:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	}
}
