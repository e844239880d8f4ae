package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vrsandeep/vmfa-addons/internal/api"
	"github.com/vrsandeep/vmfa-addons/internal/auth"
	"github.com/vrsandeep/vmfa-addons/internal/core"
	"github.com/vrsandeep/vmfa-addons/internal/models"
)

func main() {
	app, err := core.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error during application setup: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()
	logger := app.Logger()

	if err := provisionAdmin(app); err != nil {
		logger.Fatal("could not provision the admin account", zap.Error(err))
	}

	if err := app.StartBackground(); err != nil {
		logger.Fatal("could not start background jobs", zap.Error(err))
	}

	server := api.NewServer(app)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.Config().Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting web server", zap.String("addr", httpServer.Addr), zap.String("plugins", app.Plugins().Root()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("could not start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exiting")
}

// provisionAdmin creates the first administrator when the user table is
// empty. Without a configured password a random one is generated and logged
// once.
func provisionAdmin(app *core.App) error {
	st := app.Store()
	count, err := st.CountUsers()
	if err != nil {
		return fmt.Errorf("could not check user count: %w", err)
	}
	if count > 0 {
		return nil
	}

	cfg := app.Config().Admin
	password := cfg.Password
	generated := password == ""
	if generated {
		if password, err = generateRandomPassword(16); err != nil {
			return err
		}
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := st.CreateUser(cfg.Username, hash, models.RoleAdmin); err != nil {
		return fmt.Errorf("could not create default admin user: %w", err)
	}

	fields := []zap.Field{zap.String("username", cfg.Username)}
	if generated {
		fields = append(fields, zap.String("password", password))
	}
	app.Logger().Warn("default admin user created, change the password immediately", fields...)
	return nil
}

func generateRandomPassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}
	return string(b), nil
}
