package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"merchant-update-gate/middleware/throttle/application"
	"merchant-update-gate/middleware/throttle/domain"
	"merchant-update-gate/middleware/throttle/infra"
)

var (
	errMissingMerchant = errors.New("merchant id argument is required")
	errEphemeralStore  = errors.New("memory storage does not persist between commands; set --storage-dsn or storage.dsn")
)

// gateAction abre o storage configurado, monta o gate e chama fn com o
// merchant passado como primeiro argumento.
func gateAction(fn func(ctx context.Context, cmd *cli.Command, gate *application.Gate, id domain.MerchantID) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		id := domain.MerchantID(strings.TrimSpace(cmd.Args().First()))
		if id == "" {
			return errMissingMerchant
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log := newLogger(cfg.Log)

		store, err := infra.OpenStorage(ctx, cfg.Storage.DSN, storageOptions(cfg))
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer func() { _ = store.Close() }()
		if infra.StorageKind(store) == "memory" {
			return errEphemeralStore
		}

		gate := &application.Gate{
			Storage: store,
			Policy:  cfg.Policy.Domain(),
			Logger:  log.WithField("component", "gate"),
		}
		return fn(ctx, cmd, gate, id)
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Print the retained update attempts of a merchant",
		ArgsUsage: "<merchant-id>",
		Flags:     commonFlags(),
		Action: gateAction(func(ctx context.Context, _ *cli.Command, gate *application.Gate, id domain.MerchantID) error {
			for _, t := range gate.History(ctx, id) {
				fmt.Fprintln(stdout, application.FormatTimestamp(t))
			}
			return nil
		}),
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Tell whether a merchant may update now",
		ArgsUsage: "<merchant-id>",
		Flags:     commonFlags(),
		Action: gateAction(func(ctx context.Context, _ *cli.Command, gate *application.Gate, id domain.MerchantID) error {
			dec := gate.Evaluate(ctx, id)
			fmt.Fprintf(stdout, "merchant=%s can_update=%t in_progress=%t reason=%s retry_after=%s\n",
				id, dec.Allowed, gate.InProgress(ctx, id), dec.Reason, dec.RetryAfter.Round(time.Second))
			return nil
		}),
	}
}

func recordCommand() *cli.Command {
	flags := append(commonFlags(),
		&cli.BoolFlag{
			Name:  "if-allowed",
			Usage: "Only record when the merchant may update now",
		},
	)
	return &cli.Command{
		Name:      "record",
		Usage:     "Record an update attempt for a merchant",
		ArgsUsage: "<merchant-id>",
		Flags:     flags,
		Action: gateAction(func(ctx context.Context, cmd *cli.Command, gate *application.Gate, id domain.MerchantID) error {
			if cmd.Bool("if-allowed") {
				dec, err := application.Service{Gate: gate}.Attempt(ctx, id)
				if err != nil {
					return err
				}
				if !dec.Allowed {
					return fmt.Errorf("merchant %s throttled (%s), retry after %s", id, dec.Reason, dec.RetryAfter.Round(time.Second))
				}
			} else if err := gate.Record(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "recorded update attempt for %s\n", id)
			return nil
		}),
	}
}

func forgetCommand() *cli.Command {
	return &cli.Command{
		Name:      "forget",
		Usage:     "Remove the update history of a merchant",
		ArgsUsage: "<merchant-id>",
		Flags:     commonFlags(),
		Action: gateAction(func(ctx context.Context, _ *cli.Command, gate *application.Gate, id domain.MerchantID) error {
			if err := gate.Forget(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "forgot update history of %s\n", id)
			return nil
		}),
	}
}
