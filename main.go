package main

import (
	"github.com/bookbrain-ai/bookbrain-be/cmd"
	"github.com/joho/godotenv"
)

func main() {
	cmd.Execute()
}

func init() {
	// .env is optional, real deployments use environment variables
	godotenv.Load()
}
