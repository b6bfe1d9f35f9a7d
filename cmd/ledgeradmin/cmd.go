package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/lmsledger/backend/internal/models"
)

var (
	errHelp         = errors.New("help provided")
	errInconsistent = errors.New("wallet balances do not match the transaction log")
)

type reconciler interface {
	Reconcile(ctx context.Context, studentID int64) (*models.Reconciliation, error)
}

type walletLister interface {
	ListWalletStudentIDs(ctx context.Context) ([]int64, error)
}

type commandLine struct {
	migrate func(ctx context.Context, command string, args ...string) error
	ledger  reconciler
	wallets walletLister
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]      - run a goose command (up, down, status, up-to VERSION, ...)")
	fmt.Fprintln(cli.out, "  reconcile -all | ID [ID...] - compare cached balances with the transaction log")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	reconcileCmd := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	reconcileCmd.SetOutput(cli.out)
	reconcileAll := reconcileCmd.Bool("all", false, "Reconcile every student that has a wallet.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2], args[3:]...)
	case "reconcile":
		if err := reconcileCmd.Parse(args[2:]); err != nil {
			return err
		}
		ids, err := cli.reconcileTargets(ctx, *reconcileAll, reconcileCmd.Args())
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			reconcileCmd.Usage()
			return errHelp
		}
		return cli.reconcile(ctx, ids)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) reconcileTargets(ctx context.Context, all bool, args []string) ([]int64, error) {
	if all {
		return cli.wallets.ListWalletStudentIDs(ctx)
	}
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid student id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (cli *commandLine) reconcile(ctx context.Context, ids []int64) error {
	mismatches := 0
	for _, id := range ids {
		rec, err := cli.ledger.Reconcile(ctx, id)
		if err != nil {
			return fmt.Errorf("student %d: %w", id, err)
		}

		status := "ok"
		if !rec.Consistent {
			status = "MISMATCH"
			mismatches++
		}
		fmt.Fprintf(cli.out, "student %d: cached %s ledger %s %s\n",
			id, rec.CachedBalance.StringFixed(2), rec.LedgerBalance.StringFixed(2), status)
	}

	if mismatches > 0 {
		return fmt.Errorf("%w: %d of %d", errInconsistent, mismatches, len(ids))
	}
	return nil
}
