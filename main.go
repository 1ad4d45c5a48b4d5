package main

import (
	"github.com/gofiber/fiber/v2/log"
	"github.com/learnhub/lms-api/app"
)

func main() {
	err := app.SetupAndRunServer()
	if err != nil {
		log.Trace(err)
		panic(err)
	}
}
