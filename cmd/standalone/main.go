package main

import (
	"context"
	"log"

	"github.com/aegisnexus/sovereignty-gateway/internal/app/bootstrap"
)

func main() {
	ctx := context.Background()
	runtime, err := bootstrap.NewRuntime(ctx, "configs/default.yaml", bootstrap.RoleStandalone)
	if err != nil {
		log.Fatalf("bootstrap standalone runtime: %v", err)
	}
	if err := runtime.Run(ctx); err != nil {
		log.Fatalf("run standalone: %v", err)
	}
}
