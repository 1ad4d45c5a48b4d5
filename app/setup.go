package app

import (
	"fmt"
	"os"

	"github.com/learnhub/lms-api/api"
	"github.com/learnhub/lms-api/config"
	"github.com/learnhub/lms-api/database"
	"github.com/learnhub/lms-api/router"
	"github.com/learnhub/lms-api/services"
	"github.com/learnhub/lms-api/services/cron"
	"github.com/learnhub/lms-api/services/gateway"
	"gorm.io/gorm"
)

// SetupAndRunServer loads configuration, connects the database, starts the
// background jobs and serves the API
func SetupAndRunServer() error {
	if err := config.LoadENV(); err != nil {
		return err
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	store, err := database.StartGORM()
	if err != nil {
		print("Check whether Postgres is running or not\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		return err
	}

	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		return fmt.Errorf("failed to get GORM DB instance")
	}

	// Payment gateway client and service
	gatewayClient := gateway.NewClient(gateway.Config{
		BaseURL:       getEnv.GATEWAY_BASE_URL,
		StoreID:       getEnv.GATEWAY_STORE_ID,
		StorePassword: getEnv.GATEWAY_STORE_PASSWORD,
	})
	paymentService := services.NewPaymentService(db, gatewayClient)

	// Scheduled jobs (enabled unless CRON_ENABLED=false)
	var cronManager *cron.CronManager
	if os.Getenv("CRON_ENABLED") != "false" {
		cronManager = cron.NewCronManager(db, paymentService)
		if err := cronManager.Start(); err != nil {
			print("Warning: Failed to start cron jobs\n")
			print("Error: ", err.Error(), "\n")
		}
	}

	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		store.Close()
	}()

	server := api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT), store)
	app := server.GetEngine()

	router.SetupRoutes(app, store, paymentService)

	return server.Run()
}
