package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hireline/internal/config"
	"hireline/internal/db"
	"hireline/internal/domain"
	"hireline/internal/engine"
	"hireline/internal/migrate"
	"hireline/internal/repo"
	"hireline/internal/server"
	"hireline/internal/stage"
)

var rootCmd = &cobra.Command{
	Use:   "hl",
	Short: "Hireline CLI",
	Long: `Hireline tracks hiring requisitions on a stage board with task-gated transitions.
- Workspace: your .hireline directory with the database; behavior is tuned in hireline.yml.
- Requisition: one open position moving requested -> registered -> announced -> in_selection -> archived.
- Tasks: the checklist; register-requisition and publish-campaign tasks drive the board when completed.
- Delays: overdue requisitions get flagged one at a time and stay flagged until justified.
- Candidates: each requisition has its own applied -> interviews -> approved -> hired pipeline.
- Activity log: append-only history, view with 'hl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("HIRELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(reqCmd())
	rootCmd.AddCommand(boardCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(escalationCmd())
	rootCmd.AddCommand(justifyCmd())
	rootCmd.AddCommand(candidateCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(authCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfgPath := config.Path(workspace)
			if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
				if err := os.WriteFile(cfgPath, []byte(config.GenerateDefault()), 0o644); err != nil {
					return err
				}
				fmt.Printf("Wrote default config to %s\n", cfgPath)
			}
			fmt.Printf("Workspace ready at %s\n", workspace)
			return nil
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config is the rulebook: interview depth, default due horizon, the platform catalog for campaigns, and webhook targets. Stored in hireline.yml.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate config",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				out := map[string]any{"ok": err == nil}
				if err != nil {
					out["error"] = err.Error()
				}
				return printJSON(out)
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func reqCmd() *cobra.Command {
	req := &cobra.Command{
		Use:   "req",
		Short: "Manage requisitions",
		Long:  "Requisitions are open positions. They start requested; registration and campaign publication happen by completing their linked tasks, not by dragging.",
	}
	req.AddCommand(reqCreateCmd())
	req.AddCommand(reqListCmd())
	req.AddCommand(reqGetCmd())
	req.AddCommand(reqMoveCmd())
	req.AddCommand(reqDeleteCmd())
	req.AddCommand(reqBriefingCmd())
	return req
}

func reqCreateCmd() *cobra.Command {
	var opts engine.RequisitionCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a requisition",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r, err := e.CreateRequisition(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(r)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "requisition id (optional, deterministic UUID if omitted)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.DueDate, "due-date", "", "due date YYYY-MM-DD (defaults from config)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func reqListCmd() *cobra.Command {
	var f repo.RequisitionFilters
	var delayed bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requisitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("delayed") {
				f.Delayed = &delayed
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListRequisitions(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Stage", "Due", "Delayed"})
				for _, r := range items {
					due := ""
					if r.DueDate != nil {
						due = *r.DueDate
					}
					flag := ""
					if r.Delayed {
						flag = "yes"
					}
					tw.AppendRow(table.Row{r.ID, r.Title, r.Stage, due, flag})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Stage, "stage", "", "stage filter")
	cmd.Flags().BoolVar(&delayed, "delayed", false, "delayed filter")
	return cmd
}

func reqGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get requisition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r, err := e.Repo.GetRequisition(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(r)
			})
		},
	}
	return cmd
}

func reqMoveCmd() *cobra.Command {
	var to string
	var position int
	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move requisition between stages",
		Long:  "Registered and announced are task-gated; the move is refused with the reason instead of applied.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.AttemptMove(ctx, engine.MoveOptions{
					RequisitionID: args[0],
					To:            to,
					Position:      position,
					ActorID:       viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				if !res.Accepted {
					fmt.Printf("move refused: %s\n", res.Violation.Reason)
					return nil
				}
				return printJSONOrTable(res.Requisition)
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "target stage")
	cmd.Flags().IntVar(&position, "position", 0, "position within the column")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func reqDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete requisition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteRequisition(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func reqBriefingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "briefing <id>",
		Short: "Show the hiring briefing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.Repo.GetBriefing(ctx, args[0])
				if err != nil {
					return err
				}
				allocs, err := e.Repo.ListAllocations(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"briefing": b, "allocations": allocs})
			})
		},
	}
	return cmd
}

func boardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the requisition board",
		Long:  "One column per stage, plus a virtual delayed column listing flagged requisitions wherever they sit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListRequisitions(ctx, repo.RequisitionFilters{})
				if err != nil {
					return err
				}
				byStage := map[string][]domain.Requisition{}
				var delayed []domain.Requisition
				for _, r := range items {
					byStage[r.Stage] = append(byStage[r.Stage], r)
					if r.Delayed {
						delayed = append(delayed, r)
					}
				}
				if viper.GetBool("json") {
					out := map[string]any{}
					for _, s := range stage.Order {
						out[s] = byStage[s]
					}
					out["delayed"] = delayed
					return printJSON(out)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				header := table.Row{}
				for _, s := range stage.Order {
					header = append(header, strings.ToUpper(s))
				}
				header = append(header, "DELAYED")
				tw.AppendHeader(header)
				rows := 0
				for _, s := range stage.Order {
					if len(byStage[s]) > rows {
						rows = len(byStage[s])
					}
				}
				if len(delayed) > rows {
					rows = len(delayed)
				}
				cell := func(r domain.Requisition) string {
					due := ""
					if r.DueDate != nil {
						due = " (" + *r.DueDate + ")"
					}
					mark := ""
					if r.Delayed {
						mark = " !"
					}
					return r.Title + due + mark
				}
				for i := 0; i < rows; i++ {
					row := table.Row{}
					for _, s := range stage.Order {
						if i < len(byStage[s]) {
							row = append(row, cell(byStage[s][i]))
						} else {
							row = append(row, "")
						}
					}
					if i < len(delayed) {
						row = append(row, delayed[i].Title)
					} else {
						row = append(row, "")
					}
					tw.AppendRow(row)
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks are the checklist. Most are plain todo items; register-requisition and publish-campaign tasks move their requisition's stage when completed.",
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskStatusCmd())
	task.AddCommand(taskCompleteCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "task id (optional, deterministic UUID if omitted)")
	cmd.Flags().StringVar(&opts.RequisitionID, "req", "", "requisition id")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "task kind (register-requisition and publish-campaign are linked)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.Repo.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Kind", "Status", "Requisition"})
				for _, t := range tasks {
					reqID := ""
					if t.RequisitionID != nil {
						reqID = *t.RequisitionID
					}
					tw.AppendRow(table.Row{t.ID, t.Title, t.Kind, t.Status, reqID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.RequisitionID, "req", "", "requisition filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Kind, "kind", "", "kind filter")
	return cmd
}

func taskGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.Repo.GetTask(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "set-status <id>",
		Short: "Set task status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.SetTaskStatus(ctx, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status (todo, doing, done, archived)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func taskCompleteCmd() *cobra.Command {
	var role, compensation, requirements string
	var headcount int
	var platforms []string
	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Complete a task",
		Long:  "Completing a register-requisition task registers its requisition (briefing + campaign allocations) and queues the publish-campaign follow-up; completing publish-campaign moves the requisition into selection.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.CompleteTaskOptions{
				TaskID:    args[0],
				ActorID:   viper.GetString("actor-id"),
				Platforms: platforms,
			}
			if cmd.Flags().Changed("role") || cmd.Flags().Changed("compensation") ||
				cmd.Flags().Changed("requirements") || cmd.Flags().Changed("headcount") {
				opts.Briefing = &engine.BriefingSpec{
					Role:         role,
					Compensation: compensation,
					Requirements: requirements,
					Headcount:    headcount,
				}
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.CompleteTask(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				if res.RequisitionEffectApplied {
					fmt.Println("task done; requisition moved")
				}
				return printJSONOrTable(res.Task)
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "briefing role (defaults to requisition title)")
	cmd.Flags().StringVar(&compensation, "compensation", "", "briefing compensation band")
	cmd.Flags().StringVar(&requirements, "requirements", "", "briefing requirements")
	cmd.Flags().IntVar(&headcount, "headcount", 1, "briefing headcount")
	cmd.Flags().StringArrayVar(&platforms, "platform", []string{}, "campaign platform id (repeatable, defaults from config)")
	return cmd
}

func escalationCmd() *cobra.Command {
	esc := &cobra.Command{
		Use:   "escalation",
		Short: "Overdue requisition notifications",
		Long:  "At most one overdue requisition is surfaced at a time. Surfacing flags it delayed; it clears only through justification.",
	}
	esc.AddCommand(escalationCurrentCmd())
	esc.AddCommand(escalationCountCmd())
	esc.AddCommand(escalationDismissCmd())
	return esc
}

func escalationCurrentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "current",
		Short: "Show the current notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r, err := e.CurrentEscalation(ctx)
				if err != nil {
					return err
				}
				if r == nil {
					if viper.GetBool("json") {
						return printJSON(nil)
					}
					fmt.Println("nothing overdue")
					return nil
				}
				return printJSONOrTable(r)
			})
		},
	}
	return cmd
}

func escalationCountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count pending notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.PendingEscalationCount(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]int{"pending": n})
				}
				fmt.Println(n)
				return nil
			})
		},
	}
	return cmd
}

func escalationDismissCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dismiss",
		Short: "Dismiss the current notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DismissEscalation(ctx, viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func justifyCmd() *cobra.Command {
	var reason, newDueDate string
	cmd := &cobra.Command{
		Use:   "justify <req-id>",
		Short: "Justify a delayed requisition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.SubmitJustification(ctx, engine.JustificationOptions{
					RequisitionID: args[0],
					Reason:        reason,
					NewDueDate:    newDueDate,
					ActorID:       viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the deadline slipped")
	cmd.Flags().StringVar(&newDueDate, "new-due-date", "", "new due date YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("reason")
	_ = cmd.MarkFlagRequired("new-due-date")
	return cmd
}

func candidateCmd() *cobra.Command {
	cand := &cobra.Command{
		Use:   "candidate",
		Short: "Manage candidates",
		Long:  "Candidates move through their requisition's selection pipeline. Moving one into hired asks for confirmation first; a no blocks the move.",
	}
	cand.AddCommand(candidateAddCmd())
	cand.AddCommand(candidateListCmd())
	cand.AddCommand(candidateMoveCmd())
	return cand
}

func candidateAddCmd() *cobra.Command {
	var opts engine.CandidateCreateOptions
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a candidate",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.AddCandidate(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "candidate id (optional)")
	cmd.Flags().StringVar(&opts.RequisitionID, "req", "", "requisition id")
	cmd.Flags().StringVar(&opts.Name, "name", "", "candidate name")
	_ = cmd.MarkFlagRequired("req")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func candidateListCmd() *cobra.Command {
	var f repo.CandidateFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListCandidates(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Stage", "Requisition"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.Name, c.Stage, c.RequisitionID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.RequisitionID, "req", "", "requisition filter")
	cmd.Flags().StringVar(&f.Stage, "stage", "", "stage filter")
	return cmd
}

func candidateMoveCmd() *cobra.Command {
	var to string
	var position int
	var yes, no bool
	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move candidate between stages",
		Long:  "Moving into hired opens a confirmation; answer with --yes or --no in the same invocation.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if yes && no {
				return fmt.Errorf("--yes and --no are mutually exclusive")
			}
			actorID := viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.AttemptCandidateMove(ctx, engine.CandidateMoveOptions{
					CandidateID: args[0],
					To:          to,
					Position:    position,
					ActorID:     actorID,
				})
				if err != nil {
					return err
				}
				if res.Applied {
					return printJSONOrTable(res.Candidate)
				}
				// hire gate is open
				if !yes && !no {
					e.CloseHireGate(args[0])
					return fmt.Errorf("moving %q into hired needs confirmation; re-run with --yes or --no", res.Candidate.Name)
				}
				d, err := e.ConfirmHire(ctx, args[0], yes, actorID)
				if err != nil {
					return err
				}
				e.CloseHireGate(args[0])
				if viper.GetBool("json") {
					return printJSON(d)
				}
				if yes {
					fmt.Printf("%s hired\n", res.Candidate.Name)
				} else {
					fmt.Println("hire declined; candidate not moved")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "target stage")
	cmd.Flags().IntVar(&position, "position", 0, "position within the column")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the hire")
	cmd.Flags().BoolVar(&no, "no", false, "decline the hire")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Activity log",
		Long:  "The diary of everything that happened: stage moves, task completions, delay flags, justifications, hires.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var action, entityKind, entityID, reqID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.Repo.LatestActivity(ctx, repo.ActivityFilters{
					RequisitionID: reqID,
					Action:        action,
					EntityKind:    entityKind,
					EntityID:      entityID,
					Limit:         n,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(entries)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	cmd.Flags().StringVar(&action, "action", "", "action filter")
	cmd.Flags().StringVar(&reqID, "req", "", "requisition filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func authCmd() *cobra.Command {
	auth := &cobra.Command{
		Use:   "auth",
		Short: "API key management",
	}
	auth.AddCommand(authKeyCreateCmd())
	auth.AddCommand(authKeyListCmd())
	auth.AddCommand(authKeyDeleteCmd())
	return auth
}

func authKeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create-key",
		Short: "Issue an API key for the current actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				key := "hl_" + strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
				rec, err := e.CreateAPIKey(ctx, viper.GetString("actor-id"), name, key)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"key": key, "record": rec})
				}
				fmt.Printf("API key (store it now, it is not shown again): %s\n", key)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func authKeyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list-keys",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListAPIKeys(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func authKeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-key <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("HIRELINE_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("HIRELINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Hireline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
