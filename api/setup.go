package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/secureteam/access-gate/api/handler"
	"github.com/secureteam/access-gate/api/service"
	"github.com/secureteam/access-gate/mfa"
	"github.com/secureteam/access-gate/token"
)

type API struct {
	ApiPort      int
	MfaService   *mfa.Service
	TokenService *token.Service
	Audience     string
	Logger       *zap.Logger
}

func (api *API) Run() error {
	apiService := service.NewService(api.MfaService, api.TokenService, api.Audience, api.Logger)
	apiHandlers := handler.NewHandlers(apiService, api.Logger)

	router := mux.NewRouter()
	router.HandleFunc("/auth/health", apiHandlers.HealthHandler).Methods("GET")
	router.HandleFunc("/auth/mfa/setup", apiHandlers.MfaSetupHandler).Methods("POST")
	router.HandleFunc("/auth/mfa/verify", apiHandlers.MfaVerifyHandler).Methods("POST")
	router.HandleFunc("/keys/public", apiHandlers.PublicKeysHandler).Methods("GET")

	srv := &http.Server{
		Handler:      router,
		Addr:         fmt.Sprintf("0.0.0.0:%d", api.ApiPort),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	api.Logger.Info("Starting HTTP server...", zap.Int("port", api.ApiPort))

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		api.Logger.Error("Failed to start the http server", zap.Error(err))

		return fmt.Errorf("failed to start the http server :%w", err)
	}

	return nil
}
