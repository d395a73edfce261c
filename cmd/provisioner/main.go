// Command provisioner runs the Resource Provisioner RPC facade. The
// entrypoint is deliberately thin: it only wires configuration to the
// provisioning drivers and starts the server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/homeport/provisioner/internal/api"
	appprovision "github.com/homeport/provisioner/internal/app/provision"
	"github.com/homeport/provisioner/internal/infrastructure/provision/dynamoprovision"
	"github.com/homeport/provisioner/internal/infrastructure/provision/keystore"
	"github.com/homeport/provisioner/internal/infrastructure/provision/rdsprovision"
	"github.com/homeport/provisioner/internal/infrastructure/provision/shareddb"
	"github.com/homeport/provisioner/internal/pkg/config"
	"github.com/homeport/provisioner/internal/pkg/logger"
	"github.com/homeport/provisioner/pkg/version"
)

func main() {
	cmd := rootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:     "provisioner",
		Short:   "Resource Provisioner: allocates and releases managed data-store resources",
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	return cmd
}

func serve(verbose bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Verbose = true
	}

	logger.Init(logger.Config{Verbose: cfg.Verbose, JSON: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service, err := buildService(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build provisioning service: %w", err)
	}

	server := api.NewServer(api.Config{
		Host:    cfg.Host,
		Port:    cfg.Port,
		Verbose: cfg.Verbose,
		Version: version.Version,
	}, service)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Info("received shutdown signal")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	}
}

// buildService constructs the AWS SDK config, the Postgres pool, the
// MongoDB client, and every driver, then wires them into the facade. Any
// shared-DB or RDS driver whose dependency is unconfigured is left nil; the
// facade returns an internal error rather than panicking if a request is
// routed to it (see appprovision.Service.provisionDatabase).
func buildService(ctx context.Context, cfg config.Config) (*appprovision.Service, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var postgresDriver *shareddb.Postgres
	if cfg.PostgresAdminDSN != "" {
		postgresDriver, err = shareddb.NewPostgres(ctx, cfg.PostgresAdminDSN, cfg.PostgresDSNTemplate, shareddb.PostgresConfig{
			PrivateAddress: cfg.PostgresPrivateHost,
			PublicAddress:  cfg.PostgresPublicHost,
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
	}

	var mongoDriver *shareddb.MongoDB
	if cfg.MongoDBAdminURI != "" {
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoDBAdminURI))
		if err != nil {
			return nil, fmt.Errorf("connect mongodb: %w", err)
		}
		mongoDriver = shareddb.NewMongoDB(mongoClient, shareddb.MongoDBConfig{
			PrivateAddress: cfg.MongoDBPrivateHost,
			PublicAddress:  cfg.MongoDBPublicHost,
		})
	}

	rdsDriver := rdsprovision.New(rds.NewFromConfig(awsCfg))

	store := keystore.New(cfg.AccessKeyStateDir)
	dynamoOrchestrator := dynamoprovision.New(
		iam.NewFromConfig(awsCfg),
		sts.NewFromConfig(awsCfg),
		dynamodb.NewFromConfig(awsCfg),
		store,
		awsCfg.Region,
	)

	return appprovision.New(postgresDriver, mongoDriver, rdsDriver, dynamoOrchestrator), nil
}
