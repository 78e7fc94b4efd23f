package main

import (
	"lms/config"
	analyticsController "lms/controllers/analytics"
	courseControllers "lms/controllers/course"
	"lms/database"
	"lms/routers/analyticsRoutes"
	"lms/routers/authRoutes"
	"lms/routers/courseRoutes"
	"lms/services/analytics"
	"lms/services/progress"
	"lms/utils"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	config.LoadConfig()
	database.ConnectDb()

	db := database.Database.Db
	dbTimeout := time.Duration(config.AppConfig.DBTimeoutSeconds) * time.Second

	// Progress pipeline: ledger -> aggregator -> issuer
	aggregator := progress.NewAggregator(db, dbTimeout)
	issuer := progress.NewIssuer(db, dbTimeout, config.AppConfig.CertificateCodeAttempts)
	ledger := progress.NewLedger(db, dbTimeout, aggregator, issuer)
	ledger.OnCertificateIssued(utils.CertificateNotifier(db))

	// Analytics rollup with snapshot caching
	snapshots := analytics.NewSnapshotStore(db,
		time.Duration(config.AppConfig.AnalyticsStalenessMins)*time.Minute)
	rollup := analytics.NewRollup(db, dbTimeout, snapshots)

	courseControllers.Setup(ledger, aggregator)
	analyticsController.Setup(rollup)

	utils.InitializeAnalyticsScheduler(rollup)

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE",        // Allowed HTTP methods
		AllowHeaders: "Content-Type,Authorization", // Allowed headers
	}))

	// Enable the built-in logger middleware to log all requests
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
	}))

	// Serve static files from the public folder
	app.Static("/", "./public")

	authRoutes.SetupAuthRoutes(app)
	courseRoutes.SetupCourseRoutes(app)
	courseRoutes.SetupInstructorRoutes(app)
	analyticsRoutes.SetupAnalyticsRoutes(app)

	log.Printf("Server is running on port %s", config.AppConfig.Port)
	log.Fatal(app.Listen(":" + config.AppConfig.Port))
}
