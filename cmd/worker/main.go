package main

import (
	"context"
	"log"
	"os"

	"stylistapi/dbhelper"
	"stylistapi/services"
	"stylistapi/tasks"

	firebase "firebase.google.com/go/v4"
	"github.com/hibiken/asynq"
)

func main() {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")},
		asynq.Config{Concurrency: 10, Queues: map[string]int{
			"process": 7,
		}},
	)
	awsService := &services.AWSService{}
	stylistProvider := services.GoogleStylistProvider{}
	err := awsService.InitPresignClient(context.Background())
	if err != nil {
		log.Fatal("[Queue] Failed to initialize AWS provider: S3")
	}
	app, err := firebase.NewApp(context.Background(), nil)
	if err != nil {
		log.Fatalf("error initializing firebase app: %v\n", err)
		return
	}
	mux := asynq.NewServeMux()
	db := dbhelper.SetupDB()
	mux.HandleFunc("process:item", func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleItemProcessingTask(ctx, t, db, stylistProvider, awsService, app)
	})

	if err := srv.Run(mux); err != nil {
		log.Fatal(err)
	}
}
