package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"

	"github.com/caremesh-ai/rampart/pkg/classifier"
	"github.com/caremesh-ai/rampart/pkg/config"
	"github.com/caremesh-ai/rampart/pkg/decision"
	"github.com/caremesh-ai/rampart/pkg/metrics"
	"github.com/caremesh-ai/rampart/pkg/patterns"
	"github.com/caremesh-ai/rampart/pkg/pipeline"
	"github.com/caremesh-ai/rampart/pkg/session"
	"github.com/caremesh-ai/rampart/pkg/threat"
)

const Version = "0.1.0"

// Gateway bundles the assembled pipeline with the handles that need
// explicit shutdown.
type Gateway struct {
	engine *pipeline.Engine
	cls    classifier.Classifier
	audit  *decision.FileAuditSink
	cfg    *config.Config
}

// NewGateway assembles the full pipeline from configuration. Every
// optional component degrades gracefully: a missing model means
// pattern-only detection, an unreachable audit path means a no-op sink.
func NewGateway(cfg *config.Config) *Gateway {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}

	detector := patterns.NewDetector(patterns.NewRegistry(), cfg.MaxInputLength)

	var cls classifier.Classifier
	if cfg.EnableClassifier {
		hugotCfg := classifier.AutoDetectConfig()
		if hugotCfg == nil {
			hugotCfg = &classifier.HugotConfig{}
		}
		if cfg.ModelPath != "" {
			hugotCfg.ModelPath = cfg.ModelPath
		}
		hugotCfg.Timeout = time.Duration(cfg.ClassifierTimeoutMs) * time.Millisecond
		h := classifier.NewHugot(*hugotCfg)
		if h.IsTrained() {
			log.Println("✓ Adaptive classification enabled (hugot/ONNX)")
			cls = h
		} else if sem := classifier.NewAutoDetectedSemantic(); sem.IsTrained() {
			log.Println("✓ Adaptive classification enabled (semantic similarity)")
			cls = sem
		} else {
			log.Println("○ No classification or embedding model found, using the static phrase classifier")
			cls = classifier.NewStatic()
		}
	} else {
		log.Println("○ Adaptive classification disabled (pattern-only)")
	}

	var store session.Store
	switch cfg.SessionBackend {
	case config.BackendRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.RedisAddr}})
		store = session.NewRedisStore(client)
		log.Printf("✓ Session intelligence backed by redis at %s", cfg.RedisAddr)
	default:
		store = session.NewMemoryStore()
		log.Println("✓ Session intelligence in memory")
	}

	var audit *decision.FileAuditSink
	var sink decision.AuditSink
	if cfg.AuditLogPath != "" {
		s, err := decision.NewFileAuditSink(cfg.AuditLogPath, 0)
		if err != nil {
			log.Printf("○ Audit log disabled (open %s: %v)", cfg.AuditLogPath, err)
		} else {
			audit = s
			sink = s
		}
	}

	var deployer decision.Deployer
	if cfg.EnableDeception {
		deployer = decision.NewTokenDeployer()
	}

	decider := decision.NewEngine(decision.Config{
		HighThreshold:       cfg.HighThreshold,
		MediumThreshold:     cfg.MediumThreshold,
		BadActorFloor:       cfg.BadActorFloor,
		EnableDeception:     cfg.EnableDeception,
		EscalateAfterBlocks: cfg.EscalateAfterBlocks,
	}, store, deployer, sink)

	orc := pipeline.NewOrchestrator(detector, cls, cfg.EnableClassifier,
		time.Duration(cfg.ClassifierTimeoutMs)*time.Millisecond,
		threat.Breakpoints{
			Critical: cfg.Breakpoints.Critical,
			High:     cfg.Breakpoints.High,
			Medium:   cfg.Breakpoints.Medium,
		})

	engine := pipeline.NewEngine(orc, store, decider, metrics.NewRegistry(), pipeline.Options{
		SafetyThreshold: cfg.SafetyThreshold,
		StrictMode:      cfg.StrictMode,
	})

	return &Gateway{engine: engine, cls: cls, audit: audit, cfg: cfg}
}

// Close releases the classifier session and flushes the audit log.
func (g *Gateway) Close() {
	if g.cls != nil {
		if err := g.cls.Close(); err != nil {
			log.Printf("classifier close: %v", err)
		}
	}
	if g.audit != nil {
		if err := g.audit.Close(); err != nil {
			log.Printf("audit close: %v", err)
		}
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	switch os.Args[1] {
	case "serve":
		if len(os.Args) > 2 {
			cfg.ListenAddr = ":" + strings.TrimPrefix(os.Args[2], ":")
		}
		runHTTPServer(cfg)
	case "scan":
		if len(os.Args) < 3 {
			fmt.Println("Usage: rampart scan <text>")
			os.Exit(1)
		}
		runCLIScan(cfg, strings.Join(os.Args[2:], " "))
	case "batch":
		runBatchScan(cfg)
	case "version":
		fmt.Printf("Rampart v%s\n", Version)
		fmt.Println("Security decision pipeline for AI-facing inputs")
	default:
		printUsage()
		os.Exit(1)
	}
}

// loadConfig prefers an explicit YAML file and falls back to env-driven
// defaults.
func loadConfig() (*config.Config, error) {
	if path := os.Getenv("RAMPART_CONFIG"); path != "" {
		return config.Load(path)
	}
	cfg := config.NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printUsage() {
	fmt.Printf("Rampart v%s - Security Decision Pipeline\n\n", Version)
	fmt.Println("Usage:")
	fmt.Println("  rampart serve [port]   Start the HTTP gateway (default: 8089)")
	fmt.Println("  rampart scan <text>    Evaluate one input and print the outcome")
	fmt.Println("  rampart batch          Evaluate JSONL requests from stdin")
	fmt.Println("  rampart version        Show version")
	fmt.Println("")
	fmt.Println("Environment Variables:")
	fmt.Println("  RAMPART_CONFIG           Path to a YAML config file")
	fmt.Println("  RAMPART_MODEL_PATH       Path to ONNX model directory")
	fmt.Println("  RAMPART_EMBED_MODEL_PATH Path to ONNX embedding model directory")
	fmt.Println("  RAMPART_SESSION_BACKEND  Session backend: memory, redis")
	fmt.Println("  RAMPART_REDIS_ADDR       Redis address for the redis backend")
}

// ============================================================================
// HTTP Server Mode
// ============================================================================

func runHTTPServer(cfg *config.Config) {
	gw := NewGateway(cfg)
	defer gw.Close()

	app := fiber.New(fiber.Config{
		AppName: "Rampart",
	})

	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "version": Version})
	})

	app.Post("/v1/analyze", func(c fiber.Ctx) error {
		var req pipeline.Request
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		out, err := gw.engine.Evaluate(c.Context(), req)
		if err != nil {
			var verr *threat.ValidationError
			if errors.As(err, &verr) {
				return c.Status(400).JSON(fiber.Map{"error": verr.Error(), "field": verr.Field})
			}
			var rej *threat.SecurityRejected
			if errors.As(err, &rej) {
				return c.Status(403).JSON(fiber.Map{
					"error":      rej.Error(),
					"risk_level": rej.RiskLevel,
					"risk_score": rej.RiskScore,
					"findings":   rej.Findings,
				})
			}
			return c.Status(500).JSON(fiber.Map{"error": "internal error"})
		}
		return c.JSON(out)
	})

	app.Post("/v1/reconcile", func(c fiber.Ctx) error {
		var req struct {
			SessionID string `json:"session_id"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}
		if err := gw.engine.ReconcileFalsePositive(c.Context(), req.SessionID); err != nil {
			var verr *threat.ValidationError
			if errors.As(err, &verr) {
				return c.Status(400).JSON(fiber.Map{"error": verr.Error(), "field": verr.Field})
			}
			return c.Status(500).JSON(fiber.Map{"error": "internal error"})
		}
		return c.JSON(fiber.Map{"status": "reconciled", "session_id": req.SessionID})
	})

	app.Get("/v1/metrics", func(c fiber.Ctx) error {
		return c.JSON(gw.engine.Metrics())
	})

	log.Printf("Rampart gateway starting on %s", cfg.ListenAddr)
	log.Printf("Endpoints:")
	log.Printf("  GET  /healthz       - Health check")
	log.Printf("  POST /v1/analyze    - Evaluate one input")
	log.Printf("  POST /v1/reconcile  - Reverse a false-positive block")
	log.Printf("  GET  /v1/metrics    - Decision counters")

	if err := app.Listen(cfg.ListenAddr); err != nil {
		log.Fatal(err)
	}
}

// ============================================================================
// CLI Modes
// ============================================================================

func runCLIScan(cfg *config.Config, text string) {
	gw := NewGateway(cfg)
	defer gw.Close()

	out, err := gw.engine.Evaluate(context.Background(), pipeline.Request{
		Text:    text,
		Session: pipeline.SessionContext{SessionID: "cli"},
	})
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	pretty, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(pretty))
}

// runBatchScan reads one JSON request per line from stdin and writes one
// JSON outcome per line to stdout. Errors are reported inline so a long
// batch survives bad rows.
func runBatchScan(cfg *config.Config) {
	gw := NewGateway(cfg)
	defer gw.Close()

	ctx := context.Background()
	reader := bufio.NewReaderSize(os.Stdin, 1024*1024)
	enc := json.NewEncoder(os.Stdout)

	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			log.Fatalf("read stdin: %v", err)
		}
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			var req pipeline.Request
			if uerr := json.Unmarshal([]byte(trimmed), &req); uerr != nil {
				enc.Encode(map[string]string{"error": "invalid request: " + uerr.Error()})
			} else if out, eerr := gw.engine.Evaluate(ctx, req); eerr != nil {
				enc.Encode(errorRow(eerr))
			} else {
				enc.Encode(out)
			}
		}
		if err == io.EOF {
			return
		}
	}
}

func errorRow(err error) map[string]interface{} {
	var rej *threat.SecurityRejected
	if errors.As(err, &rej) {
		return map[string]interface{}{
			"error":      rej.Error(),
			"risk_level": rej.RiskLevel,
			"risk_score": rej.RiskScore,
		}
	}
	return map[string]interface{}{"error": err.Error()}
}

func printError(err error) {
	var rej *threat.SecurityRejected
	if errors.As(err, &rej) {
		pretty, _ := json.MarshalIndent(errorRow(err), "", "  ")
		fmt.Println(string(pretty))
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}
