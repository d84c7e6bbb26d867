package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"bawabamail/config"
	"bawabamail/internal/app"
	"bawabamail/internal/domain"
	"bawabamail/internal/services"
)

const appName = "newsletterctl"

const usage = `usage: newsletterctl <command> [flags]

commands:
  campaigns [-status s] [-page n] [-page-size n]   list campaigns
  subscribers [-status s] [-page n] [-page-size n] list subscribers
  send <campaign-id>                               queue a campaign for dispatch
  create-admin -email e -password p [-name n] [-role admin|editor]
`

var errUsage = errors.New("invalid usage")

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := config.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, command string, args []string) error {
	switch command {
	case "campaigns", "subscribers", "send", "create-admin":
	default:
		return errUsage
	}

	infra, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()
	svc, err := app.NewServices(cfg, infra, logger)
	if err != nil {
		return err
	}

	switch command {
	case "campaigns":
		return listCampaigns(ctx, svc, args)
	case "subscribers":
		return listSubscribers(ctx, svc, args)
	case "send":
		return send(ctx, svc, infra, args)
	default:
		return createAdmin(ctx, svc, args)
	}
}

func listFlags(name string, args []string) (status string, params domain.PaginationParams, err error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	statusFlag := fs.String("status", "", "filter by status")
	pageFlag := fs.Int("page", 1, "page number")
	sizeFlag := fs.Int("page-size", 50, "rows per page")
	if err := fs.Parse(args); err != nil {
		return "", params, errUsage
	}
	return *statusFlag, domain.PaginationParams{Page: max(*pageFlag, 1), PageSize: max(*sizeFlag, 1)}, nil
}

func listCampaigns(ctx context.Context, svc *app.Services, args []string) error {
	status, params, err := listFlags("campaigns", args)
	if err != nil {
		return err
	}
	campaigns, total, err := svc.Campaigns.List(ctx, domain.CampaignStatus(status), params)
	if err != nil {
		return err
	}
	printCampaigns(os.Stdout, campaigns, total)
	return nil
}

func listSubscribers(ctx context.Context, svc *app.Services, args []string) error {
	status, params, err := listFlags("subscribers", args)
	if err != nil {
		return err
	}
	subs, total, err := svc.Subscribers.List(ctx, domain.SubscriberStatus(status), params)
	if err != nil {
		return err
	}
	printSubscribers(os.Stdout, subs, total)
	return nil
}

// send moves a draft to send_now (which enqueues it) or re-enqueues a send_now campaign.
// Without a broker the dispatch runs here and the outcome is printed.
func send(ctx context.Context, svc *app.Services, infra *app.Infra, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	id := args[0]
	c, err := svc.Campaigns.GetByID(ctx, id)
	if err != nil {
		return err
	}

	switch {
	case c.Status.Terminal():
		return fmt.Errorf("campaign %s is %s; duplicate it to send again", id, c.Status)
	case infra.Embedded():
		if c.Status == domain.CampaignStatusDraft {
			if err := setSendNow(ctx, svc, id); err != nil {
				return err
			}
		}
		if err := svc.Dispatcher.Dispatch(ctx, id); err != nil {
			return err
		}
		c, err = svc.Campaigns.GetByID(ctx, id)
		if err != nil {
			return err
		}
		printOutcome(os.Stdout, c)
		return nil
	case c.Status == domain.CampaignStatusDraft:
		if err := setSendNow(ctx, svc, id); err != nil {
			return err
		}
	default:
		if err := infra.Queue.Publish(ctx, services.NewDispatchJob(id)); err != nil {
			return err
		}
	}
	fmt.Printf("campaign %s queued for dispatch\n", id)
	return nil
}

func setSendNow(ctx context.Context, svc *app.Services, id string) error {
	status := domain.CampaignStatusSendNow
	_, err := svc.Campaigns.Update(ctx, id, domain.CampaignPatch{Status: &status})
	return err
}

func createAdmin(ctx context.Context, svc *app.Services, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	email := fs.String("email", "", "operator email")
	password := fs.String("password", "", "operator password (min 8 characters)")
	name := fs.String("name", "", "display name")
	role := fs.String("role", domain.RoleAdmin, "admin or editor")
	if err := fs.Parse(args); err != nil || *email == "" || *password == "" {
		return errUsage
	}
	user, err := svc.Auth.CreateOperator(ctx, *email, *password, *name, *role)
	if err != nil {
		return err
	}
	fmt.Printf("created %s %s (%s)\n", *role, user.Email, user.ID)
	return nil
}
