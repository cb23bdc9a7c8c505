package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/tunaaoguzhann/schoolgate/core"
	"github.com/tunaaoguzhann/schoolgate/logging"
)

// printChannel stands in for email or SMS and keeps the last code it saw.
type printChannel struct {
	last string
}

func (p *printChannel) Send(_ context.Context, recipient, code string) error {
	fmt.Printf("  -> code sent to %s\n", recipient)
	p.last = code
	return nil
}

func main() {
	logging.InitLogger("example", "warn")

	manager, err := core.NewManagerWithOptions(core.ManagerOptions{
		Secret:      "my-secret-key-12345",
		MaxAttempts: 3,
	})
	if err != nil {
		log.Fatalf("Failed to create manager: %v", err)
	}

	ctx := context.Background()
	inbox := &printChannel{}

	gate, err := core.NewGate("principal@example.edu", manager, inbox)
	if err != nil {
		log.Fatalf("Failed to create gate: %v", err)
	}

	fmt.Printf("Gate %s is %s\n", gate.ID(), gate.State())
	if err := gate.Request(ctx); err != nil {
		log.Fatalf("Failed to request code: %v", err)
	}
	fmt.Printf("Gate is %s\n\n", gate.State())

	wrong := "000000"
	if inbox.last == wrong {
		wrong = "111111"
	}
	err = gate.Submit(ctx, wrong)
	var rej *core.Rejection
	if errors.As(err, &rej) {
		fmt.Printf("Wrong code rejected: %v (recovery: %s)\n", err, core.RecoveryFor(err))
	}
	fmt.Printf("Gate is %s with %d attempts left\n\n", gate.State(), gate.Status().AttemptsRemaining)

	if err := gate.Submit(ctx, inbox.last); err != nil {
		log.Fatalf("Failed to verify code: %v", err)
	}
	fmt.Printf("Gate is %s\n", gate.State())
	fmt.Printf("  Release: %v\n", gate.Release())
	fmt.Printf("  Release again: %v\n", gate.Release())

	if _, err := manager.Verify(ctx, "principal@example.edu", inbox.last); err != nil {
		fmt.Printf("\nAs expected, the code cannot be used twice: %v\n", err)
	}
}
