package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tubetalk/tubetalk/internal/pkg/errs"
)

const (
	AnswerStyleFirstPerson = "first_person"
	AnswerStyleThirdPerson = "third_person"

	TaskTypeDocument = "RETRIEVAL_DOCUMENT"
	TaskTypeQuery    = "RETRIEVAL_QUERY"
)

const firstPersonPrompt = `You are a helpful AI assistant chatting with a user about a YouTube video.
You have been given transcript excerpts of the video as your primary source of context.

Behavior rules:
1. Respond in the first person ("I", "me", "my"). You are an AI assistant, not the video's narrator.
2. Always try to answer from the provided transcript context first.
3. If the context does not contain the answer or only partially covers it, use your general knowledge and say so.
4. Make clear which parts come from the video ("In the video, the speaker mentions...") and which come from your own knowledge.
5. For greetings or casual phrases, respond naturally without using the transcript.
6. Be concise and natural.

TRANSCRIPT CONTEXT:
%s

USER QUESTION:
%s
`

const thirdPersonPrompt = `You are a helpful assistant. Answer ONLY from the provided transcript context. If the context is insufficient, just say you don't know the answer.

TRANSCRIPT CONTEXT:
%s

QUESTION:
%s
`

type ManagerConfig struct {
	Timeout          int
	MaxQuestionChars int
	AnswerStyle      string
}

// Manager front-ends the configured provider: it owns the prompt templates,
// the per-call timeout, and the mapping of provider failures onto the
// service error taxonomy.
type Manager struct {
	generator IGenerator
	embedder  IEmbedder
	cfg       ManagerConfig
}

func NewManager(generator IGenerator, embedder IEmbedder, cfg ManagerConfig) *Manager {
	if cfg.AnswerStyle == "" {
		cfg.AnswerStyle = AnswerStyleFirstPerson
	}
	return &Manager{
		generator: generator,
		embedder:  embedder,
		cfg:       cfg,
	}
}

func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("%w: embedder not configured", errs.ErrEmbeddingUnavailable)
	}
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	values, err := m.embedder.Embed(ctx, text, taskType)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: embed: %v", errs.ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", errs.ErrEmbeddingUnavailable, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", errs.ErrEmbeddingUnavailable)
	}
	return values, nil
}

// Answer renders the configured prompt style around the retrieved context and
// the user question, then asks the generation model.
func (m *Manager) Answer(ctx context.Context, contextText, question string) (string, error) {
	if m.generator == nil {
		return "", fmt.Errorf("%w: generator not configured", errs.ErrUpstream)
	}
	template := firstPersonPrompt
	if m.cfg.AnswerStyle == AnswerStyleThirdPerson {
		template = thirdPersonPrompt
	}
	prompt := fmt.Sprintf(template, contextText, question)
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	resp, err := m.generator.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: generate: %v", errs.ErrUpstreamTimeout, err)
		}
		return "", fmt.Errorf("%w: generate: %v", errs.ErrUpstream, err)
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("%w: empty ai response", errs.ErrUpstream)
	}
	return text, nil
}

func (m *Manager) AnswerStyle() string {
	return m.cfg.AnswerStyle
}

func (m *Manager) MaxQuestionChars() int {
	return m.cfg.MaxQuestionChars
}

func (m *Manager) EmbeddingModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}
