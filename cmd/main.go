package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/secureteam/access-gate/api"
	"github.com/secureteam/access-gate/audit"
	"github.com/secureteam/access-gate/authorizer"
	"github.com/secureteam/access-gate/config"
	"github.com/secureteam/access-gate/interceptor"
	"github.com/secureteam/access-gate/mfa"
	"github.com/secureteam/access-gate/policy"
	"github.com/secureteam/access-gate/replaystore"
	"github.com/secureteam/access-gate/token"
)

type App struct {
	Config       *config.Config
	ReplayStore  replaystore.Store
	TokenService *token.Service
	MfaService   *mfa.Service
	PolicyEngine *policy.Engine
	Authorizer   *authorizer.Authorizer
	Logger       *zap.Logger
}

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Cannot initialize Zap logger: %v.", err)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			log.Printf("Error syncing logger: %v", err)
		}
	}()

	appConfig := config.GetAppConfig()

	replayStore := buildReplayStore(appConfig, logger)

	keyPair := buildKeyPair(appConfig, logger)

	tokenService := token.NewService(appConfig.TokenIssuer, keyPair, replayStore, logger)

	mfaService := mfa.NewService(appConfig.MfaIssuer, replayStore, logger)

	policyEngine, err := policy.NewEngine(appConfig.WorkingHoursStart, appConfig.WorkingHoursEnd,
		policy.DefaultRestrictedDepartments, appConfig.PolicyTimezone)
	if err != nil {
		logger.Fatal("Invalid policy configuration.", zap.Error(err))
	}

	directory := buildDirectory(appConfig, logger)

	auditDispatcher := audit.NewDispatcher(audit.NewZapSink(logger), audit.DefaultBufferSize, logger)
	defer auditDispatcher.Close()

	auth := authorizer.NewAuthorizer(tokenService, policyEngine, directory, auditDispatcher,
		appConfig.TokenAudience, logger)

	app := &App{
		Config:       appConfig,
		ReplayStore:  replayStore,
		TokenService: tokenService,
		MfaService:   mfaService,
		PolicyEngine: policyEngine,
		Authorizer:   auth,
		Logger:       logger,
	}

	if app.Config.ServicePort != nil {
		gateInterceptor, err := interceptor.NewInterceptor(*app.Config.ServicePort,
			app.Config.InterceptorPort, app.Authorizer, nil, logger)
		if err != nil {
			logger.Fatal("Failed to build gate interceptor.", zap.Error(err))
		}

		go func() {
			if err := gateInterceptor.Start(); err != nil {
				logger.Fatal("Gate interceptor exited.", zap.Error(err))
			}
		}()
	}

	apiServer := &api.API{
		ApiPort:      app.Config.ApiPort,
		MfaService:   app.MfaService,
		TokenService: app.TokenService,
		Audience:     app.Config.TokenAudience,
		Logger:       logger,
	}

	if err := apiServer.Run(); err != nil {
		logger.Fatal("API server exited.", zap.Error(err))
	}
}

func buildReplayStore(appConfig *config.Config, logger *zap.Logger) replaystore.Store {
	if appConfig.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, using in-memory replay store.")

		return replaystore.NewMemoryStore()
	}

	client := redis.NewClient(&redis.Options{Addr: appConfig.RedisAddr})

	return replaystore.NewRedisStore(client)
}

func buildKeyPair(appConfig *config.Config, logger *zap.Logger) *token.KeyPair {
	if appConfig.PrivateKeyFile == "" {
		logger.Warn("No signing key configured, generating an ephemeral keypair. " +
			"Tokens will not survive a restart.")

		keyPair, err := token.GenerateKeyPair()
		if err != nil {
			logger.Fatal("Failed to generate signing keypair.", zap.Error(err))
		}

		return keyPair
	}

	pemData, err := os.ReadFile(appConfig.PrivateKeyFile)
	if err != nil {
		logger.Fatal("Failed to read configured signing key.", zap.Error(err))
	}

	keyPair, err := token.LoadKeyPair(pemData)
	if err != nil {
		logger.Fatal("Failed to load configured signing key.", zap.Error(err))
	}

	return keyPair
}

func buildDirectory(appConfig *config.Config, logger *zap.Logger) authorizer.SubjectDirectory {
	if appConfig.DirectoryFile == "" {
		logger.Warn("SUBJECT_DIRECTORY_FILE not set, all subjects will resolve as unknown.")

		return authorizer.StaticDirectory{}
	}

	directory, err := authorizer.LoadStaticDirectory(appConfig.DirectoryFile)
	if err != nil {
		logger.Fatal("Failed to load subject directory.", zap.Error(err))
	}

	logger.Info("Loaded subject directory.", zap.Int("subjects", len(directory)))

	return directory
}
