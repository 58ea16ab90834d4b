// Copyright 2025 Kadir Pekel
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

// Package knowledge provides an embedded vector store for supplementary
// course material. Retrieved snippets are passed to a session as its context
// text, grounding the generated explanation.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"golang.org/x/sync/errgroup"
)

// Config configures the knowledge store.
type Config struct {
	// Path enables file persistence; empty keeps vectors in memory only.
	Path       string
	Collection string
	TopK       int

	// OpenAI-compatible embeddings endpoint.
	EmbedderBaseURL string
	EmbedderAPIKey  string
	EmbedderModel   string
}

// Result is one retrieved snippet.
type Result struct {
	ID      string
	Content string
	Score   float32
	Source  string
}

// Store is an embedded vector store over chromem-go. Safe for concurrent
// use.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	topK       int
	logger     *slog.Logger
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	embeddingFunc chromem.EmbeddingFunc
	logger        *slog.Logger
}

// WithEmbeddingFunc overrides the embedding function, mainly for tests.
func WithEmbeddingFunc(fn chromem.EmbeddingFunc) Option {
	return func(o *storeOptions) {
		o.embeddingFunc = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *storeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates a knowledge store. With cfg.Path set the database persists to
// disk and reloads on restart.
func New(cfg Config, opts ...Option) (*Store, error) {
	options := &storeOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	var db *chromem.DB
	var err error

	if cfg.Path != "" {
		if err := os.MkdirAll(cfg.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create persist directory: %w", err)
		}
		db, err = chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector database: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	embeddingFunc := options.embeddingFunc
	if embeddingFunc == nil {
		baseURL := cfg.EmbedderBaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		embeddingFunc = chromem.NewEmbeddingFuncOpenAICompat(
			baseURL, cfg.EmbedderAPIKey, cfg.EmbedderModel, nil)
	}

	collectionName := cfg.Collection
	if collectionName == "" {
		collectionName = "knowledge"
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %q: %w", collectionName, err)
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = 3
	}

	return &Store{
		db:         db,
		collection: collection,
		topK:       topK,
		logger:     options.logger,
	}, nil
}

// Add stores one document.
func (s *Store) Add(ctx context.Context, content, source string) error {
	doc := chromem.Document{
		ID:      uuid.NewString(),
		Content: content,
		Metadata: map[string]string{
			"source": source,
		},
	}

	if err := s.collection.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}
	return nil
}

// IngestDirectory embeds every .md and .txt file under dir, concurrently.
func (s *Store) IngestDirectory(ctx context.Context, dir string) (int, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".md", ".txt":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for _, path := range paths {
		path := path
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			if len(strings.TrimSpace(string(data))) == 0 {
				return nil
			}
			return s.Add(ctx, string(data), path)
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	s.logger.Info("ingested knowledge files", "dir", dir, "files", len(paths))
	return len(paths), nil
}

// Query returns the most similar snippets for the question.
func (s *Store) Query(ctx context.Context, question string) ([]Result, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}

	topK := s.topK
	if topK > count {
		topK = count
	}

	results, err := s.collection.Query(ctx, question, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	out := make([]Result, 0, len(results))
	for _, r := range results {
		out = append(out, Result{
			ID:      r.ID,
			Content: r.Content,
			Score:   r.Similarity,
			Source:  r.Metadata["source"],
		})
	}
	return out, nil
}

// BuildContext retrieves snippets for the question and joins them into a
// context string for session initialization. Retrieval failures degrade to
// an empty context rather than blocking the session.
func (s *Store) BuildContext(ctx context.Context, question string) string {
	results, err := s.Query(ctx, question)
	if err != nil {
		s.logger.Warn("knowledge retrieval failed, continuing without context",
			"error", err)
		return ""
	}

	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Content)
	}
	return strings.Join(parts, "\n\n")
}

// Count returns the number of stored documents.
func (s *Store) Count() int {
	return s.collection.Count()
}
