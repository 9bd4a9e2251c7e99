package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"make-comics-server/models"

	"go.uber.org/zap"
)

const (
	maxCharacterImages = 2
	imageTemperature   = 0.1
)

// PageStore is the persistence the generator needs.
type PageStore interface {
	CreateStoryWithFirstPage(ctx context.Context, in models.NewStory, prompt string, characterImageURLs []string) (*models.Story, *models.Page, error)
	CreateNextPage(ctx context.Context, storyID, prompt string, characterImageURLs []string) (*models.Page, error)
	GetStoryByID(ctx context.Context, id string) (*models.Story, error)
	GetPage(ctx context.Context, id string) (*models.Page, error)
	UpdatePageImage(ctx context.Context, pageID, imageURL string) error
	MarkPageFailed(ctx context.Context, pageID, reason string) error
	ResetPage(ctx context.Context, pageID, prompt string, characterImageURLs []string) error
}

// ArchiveEnqueuer schedules the object storage copy of a finished page.
type ArchiveEnqueuer interface {
	EnqueueArchivePage(ctx context.Context, pageID string) error
}

// ReferenceResolver turns a stored character reference into a URL the provider can fetch.
type ReferenceResolver interface {
	ResolveReference(ctx context.Context, ref string) (string, error)
}

type GeneratorConfig struct {
	DefaultAPIKey string
	DefaultModel  string
	Timeout       time.Duration
}

type GenerateRequest struct {
	StoryID         string   `json:"storyId"`
	Prompt          string   `json:"prompt"`
	APIKey          string   `json:"apiKey"`
	Style           string   `json:"style"`
	CharacterImages []string `json:"characterImages"`
	IsContinuation  bool     `json:"isContinuation"`
	PreviousContext string   `json:"previousContext"`
	Model           string   `json:"model"`
}

// RedrawRequest regenerates an existing page. Empty fields keep the stored values.
type RedrawRequest struct {
	Prompt          string   `json:"prompt"`
	APIKey          string   `json:"apiKey"`
	Style           string   `json:"style"`
	CharacterImages []string `json:"characterImages"`
	IsContinuation  bool     `json:"isContinuation"`
	PreviousContext string   `json:"previousContext"`
	Model           string   `json:"model"`
}

type GenerateResult struct {
	ImageURL   string `json:"imageUrl"`
	PageID     string `json:"pageId"`
	PageNumber int    `json:"pageNumber"`
	StoryID    string `json:"storyId,omitempty"`
	StorySlug  string `json:"storySlug,omitempty"`
}

type renderInput struct {
	apiKey          string
	prompt          string
	style           string
	characterImages []string
	isContinuation  bool
	previousContext string
	model           string
}

// Generator runs the comic page pipeline: quota, story and page records, prompt, provider call.
type Generator struct {
	store    PageStore
	limiter  RateLimiter
	images   ImageGenerator
	archiver ArchiveEnqueuer
	refs     ReferenceResolver
	cfg      GeneratorConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewGenerator wires the pipeline. A nil refs passes character references to the provider as stored.
func NewGenerator(store PageStore, limiter RateLimiter, images ImageGenerator, archiver ArchiveEnqueuer, refs ReferenceResolver, cfg GeneratorConfig, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Generator{
		store:    store,
		limiter:  limiter,
		images:   images,
		archiver: archiver,
		refs:     refs,
		cfg:      cfg,
		logger:   logger.Named("Generator"),
		now:      time.Now,
	}
}

// Generate creates a new page, and a new story when req.StoryID is empty.
func (g *Generator) Generate(ctx context.Context, userID string, req GenerateRequest) (*GenerateResult, error) {
	res, err := g.generate(ctx, userID, req)
	generationsTotal.WithLabelValues(outcomeLabel(err)).Inc()
	return res, err
}

func (g *Generator) generate(ctx context.Context, userID string, req GenerateRequest) (*GenerateResult, error) {
	if userID == "" {
		return nil, newError(KindAuth, msgAuthRequired, nil)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, newError(KindValidation, msgMissingFields, nil)
	}
	if len(req.CharacterImages) > maxCharacterImages {
		return nil, newError(KindValidation, msgTooManyCharacters, nil)
	}
	style := req.Style
	if style == "" {
		style = DefaultStyleID
	}

	// a client disconnect must not abandon a page half way
	ctx = context.WithoutCancel(ctx)
	log := g.logger.With(zap.String("user_id", userID), zap.Bool("free_tier", req.APIKey == ""))

	apiKey, err := g.resolveCredential(ctx, userID, req.APIKey)
	if err != nil {
		return nil, err
	}

	var (
		story   *models.Story
		page    *models.Page
		created bool
	)
	if req.StoryID != "" {
		story, err = g.store.GetStoryByID(ctx, req.StoryID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, newError(KindNotFound, msgStoryNotFound, err)
			}
			return nil, newError(KindInternal, "Failed to load story", err)
		}
		if story.UserID != userID {
			return nil, newError(KindForbidden, msgNotOwner, nil)
		}
		page, err = g.store.CreateNextPage(ctx, story.ID, req.Prompt, req.CharacterImages)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, newError(KindNotFound, msgStoryNotFound, err)
			}
			return nil, newError(KindInternal, "Failed to create page", err)
		}
	} else {
		story, page, err = g.store.CreateStoryWithFirstPage(ctx, models.NewStory{
			Title:  models.TitleFromPrompt(req.Prompt),
			UserID: userID,
			Style:  style,
		}, req.Prompt, req.CharacterImages)
		if err != nil {
			return nil, newError(KindInternal, "Failed to create story", err)
		}
		created = true
	}
	log = log.With(zap.String("story_id", story.ID), zap.String("page_id", page.ID), zap.Int("page_number", page.PageNumber))
	log.Info("page created, generating image")

	imageURL, err := g.render(ctx, log, page.ID, renderInput{
		apiKey:          apiKey,
		prompt:          req.Prompt,
		style:           style,
		characterImages: req.CharacterImages,
		isContinuation:  req.IsContinuation,
		previousContext: req.PreviousContext,
		model:           req.Model,
	})
	if err != nil {
		return nil, err
	}

	res := &GenerateResult{ImageURL: imageURL, PageID: page.ID, PageNumber: page.PageNumber}
	if created {
		res.StoryID = story.ID
		res.StorySlug = story.Slug
	}
	return res, nil
}

// Redraw regenerates the image of an existing page owned by userID.
func (g *Generator) Redraw(ctx context.Context, userID, pageID string, req RedrawRequest) (*GenerateResult, error) {
	res, err := g.redraw(ctx, userID, pageID, req)
	generationsTotal.WithLabelValues(outcomeLabel(err)).Inc()
	return res, err
}

func (g *Generator) redraw(ctx context.Context, userID, pageID string, req RedrawRequest) (*GenerateResult, error) {
	if userID == "" {
		return nil, newError(KindAuth, msgAuthRequired, nil)
	}
	ctx = context.WithoutCancel(ctx)

	page, err := g.store.GetPage(ctx, pageID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, newError(KindNotFound, msgPageNotFound, err)
		}
		return nil, newError(KindInternal, "Failed to load page", err)
	}
	story, err := g.store.GetStoryByID(ctx, page.StoryID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, newError(KindNotFound, msgStoryNotFound, err)
		}
		return nil, newError(KindInternal, "Failed to load story", err)
	}
	if story.UserID != userID {
		return nil, newError(KindForbidden, msgNotOwner, nil)
	}

	prompt := req.Prompt
	if strings.TrimSpace(prompt) == "" {
		prompt = page.Prompt
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, newError(KindValidation, msgMissingFields, nil)
	}
	characters := req.CharacterImages
	if characters == nil {
		characters = []string(page.CharacterImageURLs)
	}
	if len(characters) > maxCharacterImages {
		return nil, newError(KindValidation, msgTooManyCharacters, nil)
	}
	style := req.Style
	if style == "" {
		style = story.Style
	}
	if style == "" {
		style = DefaultStyleID
	}

	apiKey, err := g.resolveCredential(ctx, userID, req.APIKey)
	if err != nil {
		return nil, err
	}

	log := g.logger.With(
		zap.String("user_id", userID),
		zap.String("story_id", story.ID),
		zap.String("page_id", page.ID),
		zap.Int("page_number", page.PageNumber),
		zap.Bool("free_tier", req.APIKey == ""),
	)
	if err := g.store.ResetPage(ctx, page.ID, prompt, characters); err != nil {
		return nil, newError(KindInternal, "Failed to reset page", err)
	}
	log.Info("page reset, redrawing image")

	imageURL, err := g.render(ctx, log, page.ID, renderInput{
		apiKey:          apiKey,
		prompt:          prompt,
		style:           style,
		characterImages: characters,
		isContinuation:  req.IsContinuation,
		previousContext: req.PreviousContext,
		model:           req.Model,
	})
	if err != nil {
		return nil, err
	}
	return &GenerateResult{ImageURL: imageURL, PageID: page.ID, PageNumber: page.PageNumber}, nil
}

// resolveCredential picks the caller's key, or the server key gated by the weekly quota.
func (g *Generator) resolveCredential(ctx context.Context, userID, apiKey string) (string, error) {
	if apiKey != "" {
		return apiKey, nil
	}
	if g.cfg.DefaultAPIKey == "" {
		g.logger.Error("free tier requested but no default api key is configured")
		return "", newError(KindConfig, msgMissingDefaultKey, nil)
	}

	d, err := g.limiter.Check(ctx, userID)
	if err != nil {
		g.logger.Error("rate limiter unavailable, rejecting free tier request", zap.String("user_id", userID), zap.Error(err))
		return "", newError(KindConfig, "Server configuration error - rate limiter unavailable", err)
	}
	if !d.Allowed {
		rateLimitDenied.Inc()
		return "", &Error{
			Kind:    KindRateLimited,
			Message: rateLimitMessage(d.ResetAt.Sub(g.now())),
			ResetAt: d.ResetAt,
		}
	}
	return g.cfg.DefaultAPIKey, nil
}

func rateLimitMessage(untilReset time.Duration) string {
	days := int(math.Ceil(untilReset.Hours() / 24))
	if days < 1 {
		days = 1
	}
	return fmt.Sprintf("Free tier limit reached. You can generate 1 comic per week. Try again in %d day(s), or provide your own API key for unlimited access.", days)
}

// render calls the provider for a pending page and records the outcome on it.
func (g *Generator) render(ctx context.Context, log *zap.Logger, pageID string, in renderInput) (string, error) {
	mode := ResolveModelMode(in.model, g.cfg.DefaultModel)
	prompt := ComposePrompt(PromptInput{
		Story:           in.prompt,
		StyleID:         in.style,
		CharacterCount:  len(in.characterImages),
		IsContinuation:  in.isContinuation,
		PreviousContext: in.previousContext,
	})

	references, err := g.resolveReferences(ctx, in.characterImages)
	if err != nil {
		log.Error("character reference could not be resolved", zap.Error(err))
		g.markFailed(ctx, log, pageID, msgReferenceUnavailable)
		return "", newError(KindInternal, msgReferenceUnavailable, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	started := time.Now()
	res, err := g.images.Generate(callCtx, in.apiKey, ImageRequest{
		Model:           mode.Model,
		Prompt:          prompt,
		Width:           mode.Width,
		Height:          mode.Height,
		Temperature:     imageTemperature,
		ReferenceImages: references,
	})
	generationDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		genErr := classifyProviderError(err)
		log.Warn("image generation failed", zap.String("model", mode.Model), zap.Error(err))
		g.markFailed(ctx, log, pageID, genErr.Message)
		return "", genErr
	}

	if err := g.store.UpdatePageImage(ctx, pageID, res.URL); err != nil {
		log.Error("generated image could not be persisted",
			zap.String("image_url", res.URL),
			zap.String("model", mode.Model),
			zap.Error(err),
		)
		g.markFailed(ctx, log, pageID, msgSaveFailed)
		return "", newError(KindPersistence, msgSaveFailed, err)
	}
	log.Info("page ready", zap.String("model", mode.Model), zap.Duration("elapsed", time.Since(started)))

	if g.archiver != nil {
		if err := g.archiver.EnqueueArchivePage(ctx, pageID); err != nil {
			log.Warn("archive enqueue failed", zap.Error(err))
		}
	}
	return res.URL, nil
}

// resolveReferences issues fresh URLs for stored object keys. The page keeps the keys.
func (g *Generator) resolveReferences(ctx context.Context, refs []string) ([]string, error) {
	if g.refs == nil || len(refs) == 0 {
		return refs, nil
	}
	out := make([]string, len(refs))
	for i, ref := range refs {
		u, err := g.refs.ResolveReference(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", ref, err)
		}
		out[i] = u
	}
	return out, nil
}

func (g *Generator) markFailed(ctx context.Context, log *zap.Logger, pageID, reason string) {
	if err := g.store.MarkPageFailed(ctx, pageID, reason); err != nil {
		log.Warn("could not mark page failed", zap.Error(err))
	}
}

func classifyProviderError(err error) *Error {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == http.StatusPaymentRequired {
			return &Error{Kind: KindInsufficientCredits, Message: msgInsufficientCredits, StatusCode: apiErr.StatusCode, Err: err}
		}
		msg := apiErr.Message
		if msg == "" {
			msg = fmt.Sprintf("Failed to generate image: %d", apiErr.StatusCode)
		}
		return &Error{Kind: KindUpstream, Message: msg, StatusCode: apiErr.StatusCode, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindUpstream, Message: msgUpstreamTimeout, StatusCode: http.StatusGatewayTimeout, Err: err}
	case errors.Is(err, ErrEmptyResponse):
		return newError(KindEmptyResponse, msgEmptyResponse, err)
	default:
		return newError(KindInternal, "Internal server error: "+err.Error(), err)
	}
}
