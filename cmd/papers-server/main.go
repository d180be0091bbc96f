package main

import (
	"flag"

	"pastpapers-backend/internal/components/serviceutil"
	"pastpapers-backend/internal/config"
	"pastpapers-backend/internal/service"
)

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	port := flag.Int("port", 0, "Override the configured http port.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	cfg, err := config.Load()
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	if *verbose {
		cfg.Verbose = true
		if cfg.Http.DumpDir == "" {
			cfg.Http.DumpDir = ".dev/resty/papers"
		}
	}
	if *port > 0 {
		cfg.Port = *port
	}

	tel := InitTelemetry(ctx, cfg)

	stack, err := config.Open(ctx, cfg, tel)
	if err != nil {
		serviceutil.Fatal("init discovery", err)
	}
	defer stack.Close()

	if stack.Cache != nil {
		pruned, err := stack.Cache.Prune(ctx)
		if err != nil {
			tel.ReportWarning("subject-cache.prune", err)
		} else {
			tel.ReportCount("subject-cache.pruned", pruned)
		}
	}

	svc := service.NewService(stack.Orchestrator, tel)
	err = serviceutil.StartHttpServer(ctx, cfg.Port, svc.Handler())
	if err != nil {
		serviceutil.Fatal("serve http", err)
	}
}
