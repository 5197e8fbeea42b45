package main

import (
	"context"
	"log"
	"os"

	"github.com/MuhammadAbdiel/aora-app/internal/app"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("aora: ")

	ctx := context.Background()
	if err := app.Run(ctx, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
