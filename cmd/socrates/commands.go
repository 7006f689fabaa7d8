package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/socrates-agent/socrates/agent"
	"github.com/socrates-agent/socrates/corpus"
	"github.com/socrates-agent/socrates/corpus/pgvector"
	"github.com/socrates-agent/socrates/graph"
	"github.com/socrates-agent/socrates/ingest"
)

func newChatCmd(c *cli) *cobra.Command {
	var threadID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive dialogue with Socrates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return newChatSession(a.agent, threadID, cmd.OutOrStdout()).Run(cmd.Context(), cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&threadID, "thread", "", "Conversation thread to resume")
	return cmd
}

func newAskCmd(c *cli) *cobra.Command {
	var (
		threadID string
		trace    bool
	)

	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Ask a single question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return ask(cmd.Context(), a.agent, threadID, strings.Join(args, " "), trace, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&threadID, "thread", "", "Conversation thread to continue")
	cmd.Flags().BoolVar(&trace, "trace", false, "Print the thread ID and every tool call")
	return cmd
}

func ask(ctx context.Context, a *agent.Agent, threadID, question string, trace bool, out io.Writer) error {
	reply, err := a.Ask(ctx, threadID, question)
	if err != nil {
		return err
	}
	if trace {
		_, _ = fmt.Fprintf(out, "hilo: %s\n", reply.ThreadID)
		for _, st := range reply.Steps {
			_, _ = fmt.Fprintf(out, "%s(%s) -> %s\n", st.Action, st.Input, st.Observation)
		}
	}
	_, _ = fmt.Fprintln(out, reply.Answer)
	return nil
}

func newIngestCmd(c *cli) *cobra.Command {
	var (
		dir      string
		glossary string
		fromDB   bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed the corpus texts and concepts into the vector store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !fromDB && dir == "" {
				return errors.New("either --dir or --from-db is required")
			}
			ctx := cmd.Context()

			model, err := buildModel(c.cfg)
			if err != nil {
				return fmt.Errorf("build model: %w", err)
			}
			embedder, err := buildEmbedder(c.cfg, model)
			if err != nil {
				return fmt.Errorf("build embedder: %w", err)
			}
			backend, closeCorpus, err := openCorpus(ctx, c.cfg, embedder)
			if err != nil {
				return fmt.Errorf("open corpus: %w", err)
			}
			defer closeCorpus()

			src, opts, err := ingestSource(backend, dir, glossary, fromDB)
			if err != nil {
				return err
			}
			logger := c.logger.Named("ingest")
			if s, ok := src.(*ingest.DirectorySource); ok {
				s.Logger = logger
			}
			opts = append(opts, ingest.WithLogger(logger))

			report, err := ingest.NewVectorizer(embedder, backend, opts...).Run(ctx, src)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(),
				"documentos: %d, fragmentos: %d, menciones: %d, conceptos: %d, fallidos: %d\n",
				report.Documents, report.Fragments, report.Mentions, report.Concepts, report.Failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory with .txt, .md and .html texts")
	cmd.Flags().StringVar(&glossary, "glossary", "", "File with one concept per line")
	cmd.Flags().BoolVar(&fromDB, "from-db", false, "Re-embed the texts already stored in PostgreSQL")
	return cmd
}

// ingestSource picks where the vectorizer reads from. Re-embedding from the
// database keeps the stored mentions instead of writing them again.
func ingestSource(backend corpusBackend, dir, glossaryPath string, fromDB bool) (corpus.Source, []ingest.VectorizerOption, error) {
	if fromDB {
		pg, ok := backend.(*pgvector.Store)
		if !ok {
			return nil, nil, fmt.Errorf("--from-db requires the pgvector corpus backend: %w", corpus.ErrUnsupported)
		}
		return pg, []ingest.VectorizerOption{ingest.WithStoreMentions(false)}, nil
	}

	var terms []string
	if glossaryPath != "" {
		var err error
		if terms, err = ingest.LoadGlossary(glossaryPath); err != nil {
			return nil, nil, err
		}
	}
	return ingest.NewDirectorySource(dir, terms), nil, nil
}

func newInitDBCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the pgvector tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !strings.EqualFold(c.cfg.Corpus.Backend, "pgvector") {
				return fmt.Errorf("init-db requires the pgvector corpus backend: %w", corpus.ErrUnsupported)
			}
			s, err := pgvector.New(cmd.Context(), nil, pgvector.Options{
				ConnString: c.cfg.Corpus.PostgresDSN,
				Model:      c.cfg.Embeddings.Model,
				Dimensions: c.cfg.Embeddings.Dimensions,
			})
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.InitSchema(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Esquema creado.")
			return nil
		},
	}
}

func newGraphCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Print the agent graph as a Mermaid diagram",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := buildModel(c.cfg)
			if err != nil {
				return fmt.Errorf("build model: %w", err)
			}
			a, err := agent.New(agent.Config{Model: model, Logger: c.logger})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), graph.NewExporter(a.Graph()).DrawMermaid())
			return nil
		},
	}
}
