package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/viant/vetflow"
	"github.com/viant/vetflow/config"
	"github.com/viant/vetflow/model"
	"github.com/viant/vetflow/service/connector/email"
	"github.com/viant/vetflow/service/store"
	gmailsource "github.com/viant/vetflow/service/watcher/gmail"
)

var (
	configFile string
	useNop     bool
)

func main() {
	root := &cobra.Command{
		Use:           "vetflow",
		Short:         "Approval-gated task workflow",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "vetflow.yaml", "configuration file")
	root.PersistentFlags().BoolVar(&useNop, "nop", false, "use no-op connectors for kinds without a vendor binding")

	root.AddCommand(runCmd(), listCmd(), approveCmd(), rejectCmd(), submitCmd(), tailCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func buildService(ctx context.Context) (*vetflow.Service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	options := []vetflow.Option{vetflow.WithConfig(cfg)}
	if useNop {
		options = append(options, vetflow.WithNopConnectors())
	}
	if google := cfg.Connectors.Email; google != nil {
		client, err := email.NewOAuthClient(ctx, google.CredentialsFile, google.TokenFile,
			gmailapi.GmailSendScope, gmailapi.GmailReadonlyScope, gmailapi.GmailModifyScope)
		if err != nil {
			return nil, err
		}
		sender, err := email.NewWithClient(ctx, client, google.From)
		if err != nil {
			return nil, err
		}
		options = append(options, vetflow.WithConnectors(sender))
		for _, w := range cfg.Watchers {
			if w.Name != "gmail" {
				continue
			}
			sourceConfig := gmailsource.Config{}
			if w.Gmail != nil {
				sourceConfig = *w.Gmail
			}
			source, err := gmailsource.NewWithClient(ctx, client, sourceConfig)
			if err != nil {
				return nil, err
			}
			interval, err := config.ParseInterval(w.Interval, time.Minute)
			if err != nil {
				return nil, err
			}
			options = append(options, vetflow.WithSource(source, interval))
		}
	}
	return vetflow.New(options...)
}

func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(configFile); err != nil {
		cfg := &config.Config{}
		cfg.Init()
		return cfg, nil
	}
	return config.Load(configFile)
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the watchers and the execution engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			service, err := buildService(ctx)
			if err != nil {
				return err
			}
			runtime := service.Runtime()
			if err := runtime.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			fmt.Println("shutting down...")
			return runtime.Shutdown()
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List drafts pending approval",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			service, err := buildService(ctx)
			if err != nil {
				return err
			}
			pending, err := service.Approval().ListPending(ctx)
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"ID", "Kind", "Source", "File", "Payload"})
			for _, p := range pending {
				preview := p.Task.Payload
				if runes := []rune(preview); len(runes) > 60 {
					preview = string(runes[:57]) + "..."
				}
				preview = strings.ReplaceAll(preview, "\n", " ")
				t.AppendRow(table.Row{p.Task.ID, p.Task.Kind, p.Task.Source, p.Name, preview})
			}
			t.Render()
			return nil
		},
	}
}

func approveCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "approve <id|filename>",
		Short: "Approve a pending draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return decide(args[0], true, reason)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "decision note")
	return cmd
}

func rejectCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <id|filename>",
		Short: "Reject a pending draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return decide(args[0], false, reason)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	return cmd
}

func decide(id string, approved bool, reason string) error {
	ctx := context.Background()
	service, err := buildService(ctx)
	if err != nil {
		return err
	}
	decision, err := service.Approval().Decide(ctx, id, approved, reason)
	if err != nil {
		return err
	}
	verdict := "rejected"
	if decision.Approved {
		verdict = "approved"
	}
	fmt.Printf("%s %s\n", decision.Name, verdict)
	return nil
}

func submitCmd() *cobra.Command {
	var kind, payload, file, to, subject string
	var pending bool
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Create a manual task",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			service, err := buildService(ctx)
			if err != nil {
				return err
			}
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				payload = string(data)
			}
			if payload == "" {
				return fmt.Errorf("either --payload or --file is required")
			}
			task := model.NewTask(model.Kind(kind), "manual", payload)
			if to != "" || subject != "" {
				task.Meta = map[string]string{"to": to, "subject": subject}
			}
			data, err := task.Encode()
			if err != nil {
				return err
			}
			destination := store.NeedsAction
			if pending {
				destination = store.PendingApproval
			}
			name := task.Filename()
			if err := service.Workspace().Put(ctx, destination, name, data); err != nil {
				return err
			}
			fmt.Printf("created %s/%s (task %s)\n", destination, name, task.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(model.KindNote), "task kind")
	cmd.Flags().StringVar(&payload, "payload", "", "payload text")
	cmd.Flags().StringVar(&file, "file", "", "read payload from file")
	cmd.Flags().StringVar(&to, "to", "", "email recipient")
	cmd.Flags().StringVar(&subject, "subject", "", "email subject")
	cmd.Flags().BoolVar(&pending, "pending", false, "place directly into pending-approval")
	return cmd
}

func tailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent audit ledger entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := buildService(context.Background())
			if err != nil {
				return err
			}
			lines, err := service.Ledger().Tail(n)
			if err != nil {
				return err
			}
			for _, line := range lines {
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "lines", "n", 20, "number of entries")
	return cmd
}
