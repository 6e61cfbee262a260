// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/poiesic/ragline"
	"github.com/poiesic/ragline/chat"
	"github.com/poiesic/ragline/chunk"
	"github.com/poiesic/ragline/config"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/ingestion"
	"github.com/poiesic/ragline/reembed"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	ownerFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:    "owner",
			Aliases: []string{"o"},
			Usage:   "Owner the documents belong to",
		}
	}
	chatFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:     "chat",
			Usage:    "Conversation ID",
			Required: true,
		}
	}

	return &cli.App{
		Name:  "ragline",
		Usage: "Retrieval-augmented question answering over uploaded documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   config.DefaultPath,
			},
			&cli.BoolFlag{
				Name:  "offline",
				Usage: "Count chunk tokens as whitespace-separated words instead of downloading a BPE vocabulary",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and load the knowledge base",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address, overrides the configured one",
					},
					&cli.BoolFlag{
						Name:  "skip-knowledge",
						Usage: "Do not load the knowledge base directory at startup",
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Ingest files for an owner",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					ownerFlag(),
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Print a progress event per file",
					},
				},
			},
			{
				Name:   "documents",
				Usage:  "List documents uploaded by an owner",
				Action: documentsCommand,
				Flags:  []cli.Flag{ownerFlag()},
			},
			{
				Name:   "purge",
				Usage:  "Remove every document and fragment of an owner",
				Action: purgeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "owner",
						Aliases:  []string{"o"},
						Usage:    "Owner whose documents are removed",
						Required: true,
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Ask a question in a conversation and stream the answer",
				ArgsUsage: "QUESTION...",
				Action:    askCommand,
				Flags: []cli.Flag{
					chatFlag(),
					&cli.BoolFlag{
						Name:  "general",
						Usage: "Allow answers from general knowledge when the documents do not cover the question",
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Sampling top-k for this answer (0 keeps the configured value)",
					},
					&cli.Float64Flag{
						Name:  "top-p",
						Usage: "Sampling top-p for this answer (0 keeps the configured value)",
					},
				},
			},
			{
				Name:  "chats",
				Usage: "Manage conversations",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List conversations",
						Action: listChatsCommand,
					},
					{
						Name:      "create",
						Usage:     "Create a conversation",
						ArgsUsage: "[TITLE]",
						Action:    createChatCommand,
					},
					{
						Name:   "show",
						Usage:  "Print a conversation and its messages",
						Action: showChatCommand,
						Flags:  []cli.Flag{chatFlag()},
					},
					{
						Name:   "delete",
						Usage:  "Delete a conversation and its messages",
						Action: deleteChatCommand,
						Flags:  []cli.Flag{chatFlag()},
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Recompute the embedding of every stored fragment",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of fragments to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N fragments",
						Value: 100,
					},
				},
			},
			{
				Name:   "config",
				Usage:  "Print the effective configuration",
				Action: configCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "write",
						Usage: "Write the effective configuration to this path instead of printing it",
					},
				},
			},
		},
	}
}

// openEngine loads the configuration named by the global flag and opens an Engine.
func openEngine(c *cli.Context) (*ragline.Engine, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	var opts []ragline.EngineOption
	if c.Bool("offline") {
		chunker, err := chunk.NewWordChunker(cfg.Ingestion.ChunkSize)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ragline.WithChunker(chunker))
	}
	engine, err := ragline.Open(c.Context, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	srv, err := engine.NewServer()
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	addr := c.String("addr")
	if addr == "" {
		addr = engine.Config().Server.Addr
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, addr)
	})
	if !c.Bool("skip-knowledge") {
		g.Go(func() error {
			summary, err := engine.LoadKnowledgeBase(gctx)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				// The API stays up without the shared documents.
				slog.Error("failed to load knowledge base", "err", err)
				return nil
			}
			slog.Info("knowledge base loaded",
				"processed", len(summary.Processed),
				"skipped", len(summary.Skipped))
			return nil
		})
	}
	return g.Wait()
}

// readUploads reads each path into an Upload. Unreadable files are kept with
// ReadErr set so the pipeline reports them in order.
func readUploads(paths []string) []ingestion.Upload {
	uploads := make([]ingestion.Upload, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		uploads = append(uploads, ingestion.Upload{
			Filename: filepath.Base(path),
			Content:  content,
			ReadErr:  err,
		})
	}
	return uploads
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one file is required")
	}
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	owner := c.String("owner")
	uploads := readUploads(c.Args().Slice())
	out := c.App.Writer

	if c.Bool("progress") {
		return engine.Pipeline().IngestWithProgress(c.Context, owner, uploads, func(p core.UploadProgress) error {
			name := p.CurrentFile
			if name == "" {
				name = "-"
			}
			_, err := fmt.Fprintf(out, "%3d%% %d/%d %-10s %s\n", p.Percent, p.ProcessedFiles, p.TotalFiles, p.Status, name)
			return err
		})
	}

	summary, err := engine.Pipeline().IngestFiles(c.Context, owner, uploads)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	fmt.Fprintln(out, summary.Message)
	if len(summary.Skipped) > 0 {
		fmt.Fprintf(out, "Already uploaded: %s\n", strings.Join(summary.Skipped, ", "))
	}
	return nil
}

func documentsCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	docs, err := engine.Pipeline().Documents(c.Context, c.String("owner"))
	if err != nil {
		return err
	}
	printDocuments(c.App.Writer, docs)
	return nil
}

func printDocuments(w io.Writer, docs []*core.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents")
		return
	}
	for _, doc := range docs {
		fmt.Fprintf(w, "%s\t%s\t%d chunks\t%s\n",
			doc.Filename, doc.DocumentType, doc.ChunkCount, doc.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
}

func purgeCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	removed, err := engine.Pipeline().Purge(c.Context, c.String("owner"))
	if err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Removed %d documents\n", removed)
	return nil
}

// askRequest builds the request from the ask flags. OnlyContext is left unset
// unless --general is given so the configured default applies.
func askRequest(c *cli.Context) (chat.AskRequest, error) {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return chat.AskRequest{}, chat.ErrEmptyQuestion
	}
	req := chat.AskRequest{
		ConversationID: c.String("chat"),
		Question:       question,
		TopK:           c.Int("top-k"),
		TopP:           c.Float64("top-p"),
	}
	if c.Bool("general") {
		onlyContext := false
		req.OnlyContext = &onlyContext
	}
	return req, nil
}

func askCommand(c *cli.Context) error {
	req, err := askRequest(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	if _, err := engine.Chats().GetConversation(ctx, req.ConversationID); err != nil {
		return err
	}

	out := c.App.Writer
	msg, err := engine.Chats().Ask(ctx, req, func(token string) error {
		if _, err := io.WriteString(out, token); err != nil {
			return chat.ErrConsumerGone
		}
		return nil
	})
	fmt.Fprintln(out)
	if err != nil {
		return err
	}
	if msg == nil {
		slog.Warn("answer interrupted and not saved")
	}
	return nil
}

func listChatsCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	convs, err := engine.Chats().ListConversations(c.Context)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Fprintln(c.App.Writer, "No conversations")
		return nil
	}
	for _, conv := range convs {
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n",
			conv.Id, conv.Title, conv.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func createChatCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	conv, err := engine.Chats().CreateConversation(c.Context, strings.Join(c.Args().Slice(), " "))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, conv.Id)
	return nil
}

func showChatCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	conv, err := engine.Chats().GetConversation(c.Context, c.String("chat"))
	if err != nil {
		return err
	}
	printConversation(c.App.Writer, conv)
	return nil
}

func printConversation(w io.Writer, conv *core.Conversation) {
	fmt.Fprintf(w, "%s (%s)\n", conv.Title, conv.Id)
	for _, msg := range conv.Messages {
		fmt.Fprintf(w, "\n[%s] %s\n", msg.Role, msg.Content)
	}
}

func deleteChatCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	return engine.Chats().DeleteConversation(c.Context, c.String("chat"))
}

func reembedCommand(c *cli.Context) error {
	batchSize := c.Int("batch-size")
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	reportInterval := c.Int("report-interval")
	if reportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	cfg := engine.Config()
	reembedConfig := &reembed.Config{
		BatchSize:      batchSize,
		ReportInterval: reportInterval,
		Retry:          cfg.RetryPolicy(),
	}
	reembedder, err := engine.NewReembedder(reembedConfig, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to create reembedder: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Storage backend: %s\n", cfg.Storage.Backend)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(os.Stderr)

	if _, err := reembedder.Run(c.Context); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func configCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if path := c.String("write"); path != "" {
		return config.Save(path, cfg)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(data)
	return err
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
