package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jun/gophdeck/internal/app"
)

func main() {
	application, err := app.NewApp(context.Background())
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	defer application.Logger().Sync()

	lambda.Start(application.HandleRequest)
}
