package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/floodnet-dev/flood-response-api/api/handlers"

	"go.uber.org/zap"

	"github.com/floodnet-dev/flood-response-api/config"
)

func main() {
	a := handlers.App{}
	a.Config = *config.New()

	a.Initialize() //initialize database and router

	sched := a.StartScheduler() //background dispatch sweep and digests
	defer sched.Stop()

	port := os.Getenv("PORT")
	baseURL := os.Getenv("BASE_URL")
	zap.S().Infow("flood-response-api is up and running",
		"port", port,
		"url", baseURL,
	)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%v", port), a.Router))
}
