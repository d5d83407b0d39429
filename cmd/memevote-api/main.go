package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/memevote/internal/config"
	"github.com/MarcoPoloResearchLab/memevote/internal/database"
	"github.com/MarcoPoloResearchLab/memevote/internal/images"
	"github.com/MarcoPoloResearchLab/memevote/internal/logging"
	"github.com/MarcoPoloResearchLab/memevote/internal/memes"
	"github.com/MarcoPoloResearchLab/memevote/internal/pinning"
	"github.com/MarcoPoloResearchLab/memevote/internal/server"
	"github.com/MarcoPoloResearchLab/memevote/internal/solana"
	"github.com/MarcoPoloResearchLab/memevote/internal/trade"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "memevote-api",
		Short: "Meme token submission and upvote gateway",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file loaded before reading the environment")
	cmd.PersistentFlags().String("http-host", defaults.GetString("http.host"), "HTTP listen host")
	cmd.PersistentFlags().Int("http-port", defaults.GetInt("http.port"), "HTTP listen port")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-url", defaults.GetString("database.url"), "SQLite path or PostgreSQL DSN")
	cmd.PersistentFlags().String("rpc-url", defaults.GetString("rpc.url"), "Solana JSON-RPC endpoint")
	cmd.PersistentFlags().String("trade-url", defaults.GetString("trade.url"), "Trade API endpoint")
	cmd.PersistentFlags().String("pinning-url", defaults.GetString("pinning.url"), "IPFS pinning API endpoint")
	cmd.PersistentFlags().String("images-dir", defaults.GetString("images.dir"), "Directory of token images")
	cmd.PersistentFlags().String("static-dir", defaults.GetString("static.dir"), "Directory of static client files")
	cmd.PersistentFlags().String("jackpot-wallet", defaults.GetString("jackpot.wallet"), "Jackpot wallet address advertised to clients")
	cmd.PersistentFlags().Bool("metrics", defaults.GetBool("metrics.enabled"), "Expose Prometheus metrics on /metrics")

	bindFlag(cmd, "http.host", "http-host")
	bindFlag(cmd, "http.port", "http-port")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.url", "database-url")
	bindFlag(cmd, "rpc.url", "rpc-url")
	bindFlag(cmd, "trade.url", "trade-url")
	bindFlag(cmd, "pinning.url", "pinning-url")
	bindFlag(cmd, "images.dir", "images-dir")
	bindFlag(cmd, "static.dir", "static-dir")
	bindFlag(cmd, "jackpot.wallet", "jackpot-wallet")
	bindFlag(cmd, "metrics.enabled", "metrics")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	gin.SetMode(gin.ReleaseMode)

	db, err := database.Open(database.Options{
		Driver: appConfig.DatabaseDriver,
		URL:    appConfig.DatabaseURL,
		Key:    appConfig.DatabaseKey,
	}, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	submissions, err := memes.NewService(memes.ServiceConfig{
		Database:   db,
		IDProvider: memes.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	chain, err := solana.NewClient(solana.ClientConfig{
		Endpoint:     appConfig.RPCURL,
		APIKey:       appConfig.RPCAPIKey,
		PollInterval: appConfig.ConfirmPollInterval,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	tradeClient, err := trade.NewClient(trade.ClientConfig{
		Endpoint:        appConfig.TradeURL,
		Pool:            appConfig.TradePool,
		SlippagePercent: appConfig.TradeSlippagePercent,
		PriorityFeeSOL:  appConfig.TradePriorityFeeSOL,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	pinningClient, err := pinning.NewClient(pinning.ClientConfig{
		Endpoint: appConfig.PinningURL,
		Metadata: pinning.Metadata{
			Description: appConfig.TokenDescription,
			Twitter:     appConfig.TokenTwitter,
			Telegram:    appConfig.TokenTelegram,
			Website:     appConfig.TokenWebsite,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	catalog, err := images.NewCatalog(appConfig.ImagesDir)
	if err != nil {
		return err
	}

	var metrics *server.Metrics
	if appConfig.MetricsEnabled {
		metrics = server.NewMetrics()
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Submissions: submissions,
		Chain:       chain,
		Trade:       tradeClient,
		Pinning:     pinningClient,
		Images:      catalog,
		Metrics:     metrics,
		Settings: server.Settings{
			JackpotWallet:   appConfig.JackpotWallet,
			UpvoteAmountSOL: appConfig.UpvoteAmountSOL,
			CreateAmountSOL: appConfig.CreateAmountSOL,
			ConfirmTimeout:  appConfig.ConfirmTimeout,
			StaticDir:       appConfig.StaticDir,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	address := appConfig.HTTPAddress()
	httpServer := &http.Server{
		Addr:              address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", address),
			zap.String("database_driver", appConfig.DatabaseDriver),
			zap.Bool("metrics", appConfig.MetricsEnabled))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
