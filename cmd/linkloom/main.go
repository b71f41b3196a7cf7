package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"linkloom/internal/autoseed"
	"linkloom/internal/cmdlog"
	"linkloom/internal/config"
	"linkloom/internal/fcsearch"
	"linkloom/internal/logging"
	"linkloom/internal/model"
	"linkloom/internal/quota"
	"linkloom/internal/recommend"
	"linkloom/internal/server"
	"linkloom/internal/theme"
	"linkloom/internal/util"
)

const defaultConfigPath = "./linkloom.yaml"

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	var args []string
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}
	run, ok := commands[cmd]
	if !ok {
		printHelp()
		return
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmdlog.Run(cmd, func() error { return run(ctx, args) }); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

var commands = map[string]func(context.Context, []string) error{
	"init":     cmdInit,
	"serve":    cmdServe,
	"seed":     cmdSeed,
	"validate": cmdValidate,
	"search":   cmdSearch,
	"history":  cmdHistory,
}

func printHelp() {
	theme.PrintBanner(os.Stdout)
	fmt.Println("Usage: linkloom <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init        Write a default config file to ./linkloom.yaml")
	fmt.Println("  serve       Run the HTTP API")
	fmt.Println("  seed        Generate a seed plan for a query")
	fmt.Println("  validate    Check that Farcaster handles exist")
	fmt.Println("  search      Run a topic search and print ranked candidates")
	fmt.Println("  history     List recent searches")
}

// loadConfig reads the config and points logs at stderr so stdout stays
// machine readable.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return cfg, err
	}
	logging.Configure(os.Stderr, cfg.Server.LogLevel)
	return cfg, nil
}

func cmdInit(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	path := fs.String("path", defaultConfigPath, "path to write config")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := config.Save(*path, config.Default()); err != nil {
		return err
	}
	abs, _ := filepath.Abs(*path)
	theme.PrintBanner(os.Stdout)
	fmt.Println("Config written to:", abs)
	return nil
}

func cmdServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config path")
	addr := fs.String("addr", "", "listen address (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	deps := server.Deps{
		Searcher:      a.searcher(),
		Seeder:        a.seeder(),
		Validator:     a.validator(),
		SearchTimeout: cfg.Server.RequestTimeout,
	}
	if a.db != nil {
		deps.History = a.db
		deps.Runs = a.db
		deps.Quota = quota.Limits{MaxPerHour: cfg.Search.MaxPerHour, MaxPerDay: cfg.Search.MaxPerDay}
	}
	return server.Serve(ctx, cfg.Server.Addr, server.New(deps))
}

func cmdSeed(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config path")
	audience := fs.String("audience", "", "target audience")
	region := fs.String("region", "", "region")
	seniority := fs.String("seniority", "", "seniority")
	temp := fs.Float64("temperature", 0, "sampling temperature (default 0.2)")
	validate := fs.Bool("validate", false, "check generated Farcaster seeds")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("usage: linkloom seed [options] <query>")
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	plan, err := a.seeder().Generate(ctx, query, autoseed.Options{
		Audience: *audience, Region: *region, Seniority: *seniority, Temperature: *temp,
	})
	if err != nil {
		return err
	}
	out := map[string]any{"plan": plan}
	if *validate {
		vals, _ := a.validator().Validate(ctx, plan.Seeds.Farcaster)
		out["validation"] = vals
	}
	return printJSON(out)
}

func cmdValidate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	evidence := fs.Bool("evidence", false, "print raw search evidence")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("usage: linkloom validate [options] <handle>...")
	}
	logging.Configure(os.Stderr, "warn")
	vals, evs := fcsearch.NewClient().Validate(ctx, fs.Args())
	if *evidence {
		return printJSON(map[string]any{"validations": vals, "evidence": evs})
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "HANDLE\tVALID\tFID\tFOLLOWERS")
	for _, v := range vals {
		fmt.Fprintf(w, "%s\t%t\t%d\t%d\n", v.Handle, v.Valid, v.FID, v.FollowerCount)
	}
	return w.Flush()
}

func cmdSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config path")
	seeds := fs.String("seeds", "", "comma-separated Farcaster seed handles")
	topic := fs.String("topic", "", "topic to search for")
	keywords := fs.String("keywords", "", "comma-separated keywords (default: extracted from topic)")
	negative := fs.String("negative", "", "comma-separated negative keywords")
	autoNeg := fs.Bool("auto-negative", false, "generate negative keywords with the LLM")
	minSeeds := fs.Int("min-seeds", 0, "minimum seeds a candidate must follow")
	minScore := fs.Float64("min-score", 0, "minimum score")
	asJSON := fs.Bool("json", false, "print the full result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	req := recommend.Request{
		Seeds:        splitList(*seeds),
		Topic:        *topic,
		Keywords:     splitList(*keywords),
		Negative:     splitList(*negative),
		AutoNegative: *autoNeg,
	}
	if *minSeeds > 0 || *minScore > 0 {
		th := cfg.Search.Thresholds
		if *minSeeds > 0 {
			th.MinSeedFollows = *minSeeds
		}
		if *minScore > 0 {
			th.MinScore = *minScore
		}
		req.Thresholds = &th
	}
	if err := req.Validate(); err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.searcher().Search(ctx, req)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(res)
	}
	printCandidates(res)
	return nil
}

func cmdHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config path")
	limit := fs.Int("limit", 20, "runs to show")
	id := fs.String("id", "", "show one run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.close()
	if a.db == nil {
		return errors.New("history storage is disabled (set storage.dbPath or storage.postgresURL)")
	}
	if *id != "" {
		run, err := a.db.GetRun(ctx, *id)
		if err != nil {
			return err
		}
		return printJSON(run)
	}
	runs, err := a.db.ListRuns(ctx, *limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tID\tTOPIC\tPOOL\tRETURNED\tFALLBACK\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%t\t%s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"), r.ID, r.Topic, r.Total, r.Returned, r.Fallback, r.Duration)
	}
	return w.Flush()
}

func printCandidates(res recommend.Result) {
	md := res.Metadata
	fmt.Printf("pool=%d hydrated=%d aligned=%d fallback=%t keywords=%v\n",
		md.TotalCandidates, md.Hydrated, md.Aligned, md.Fallback, md.TopicKeywords)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tUSER\tSCORE\tSEEDS\tKW\tFOLLOWERS\tBIO")
	for i, c := range res.Candidates {
		fmt.Fprintf(w, "%d\t@%s\t%.3f\t%d\t%.2f\t%d\t%s\n",
			i+1, c.Username, c.Score, c.Why.Seeds, c.Why.KeywordScore, c.Why.Followers, oneLine(c))
	}
	_ = w.Flush()
}

func oneLine(c model.RankedCandidate) string {
	return util.Truncate(util.NormalizeWhitespace(c.Bio), 60)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
