package main

import (
	"context"
	"log"
	"time"

	"reconciliation-close-backend/internal/config"
	"reconciliation-close-backend/internal/routes"
	"reconciliation-close-backend/internal/services/matching"
	"reconciliation-close-backend/internal/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env")
	}

	settings := config.Load()

	var docStore store.Store
	switch settings.StoreBackend {
	case "postgres":
		db := config.InitDB(settings.DatabaseURL)
		if err := db.AutoMigrate(&store.Document{}); err != nil {
			log.Fatalf("failed to migrate document table: %v", err)
		}
		docStore = store.NewPostgresStore(db)
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(settings.MongoURL))
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		docStore = store.NewMongoStore(client.Database(settings.MongoDB))
	default:
		log.Println("STORE_BACKEND not set to postgres or mongo, using in-memory store")
		docStore = store.NewMemoryStore()
	}

	engineCfg := matching.DefaultConfig()
	engineCfg.FuzzyThreshold = settings.FuzzyThreshold
	engineCfg.BackdateWindowDays = settings.BackdateWindowDays

	r := gin.Default()
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, docStore, engineCfg)

	r.Run(":" + settings.Port)
}
