// Package notify delivers level-up notifications to an external webhook.
//
// The reconciler must never wait on a webhook: dispatch is a non-blocking push
// onto a bounded queue, consumed by a small pool of worker goroutines. A full
// queue drops the event — there is no retry queue, and a lost notification
// stays lost. Delivery failures are logged and go nowhere else.
//
// With no webhook URL configured the pool is inert: Dispatch reports false,
// Start and Stop are no-ops, and the reconciler is unaffected.
package notify

import (
	"bytes"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/sakif/levelboard/internal/model"
)

// Renderer produces the profile card image attached to each notification.
// The card pipeline is an external collaborator — the notifier only needs
// bytes and a content type from it.
type Renderer interface {
	RenderCard(p model.Participant) (data []byte, contentType string, err error)
}

// Config holds the notifier's wiring.
type Config struct {
	WebhookURL string // empty disables the notifier entirely
	RootURL    string // public root of this service, used in message links
	QueueSize  int    // bounded queue capacity (default 64)
	Workers    int    // concurrent deliveries (default 2)
}

// Pool is the bounded-queue notifier.
//
// LIFECYCLE:
// Start launches the workers; Stop closes the queue and waits for in-flight
// deliveries to finish, so queued events are drained, not abandoned. The
// producer (the reconciler) must be stopped before Stop is called — Dispatch
// on a stopped pool would push to a closed channel.
type Pool struct {
	cfg      Config
	renderer Renderer
	http     *http.Client
	logger   *slog.Logger

	queue     chan model.LevelUpEvent
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPool creates a notifier pool. renderer may be nil only when the webhook
// URL is empty (the inert configuration).
func NewPool(cfg Config, renderer Renderer, logger *slog.Logger) *Pool {
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	return &Pool{
		cfg:      cfg,
		renderer: renderer,
		http:     &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
		queue:    make(chan model.LevelUpEvent, cfg.QueueSize),
	}
}

// Enabled reports whether a webhook is configured.
func (p *Pool) Enabled() bool {
	return p.cfg.WebhookURL != ""
}

// Start launches the delivery workers. Safe to call more than once.
func (p *Pool) Start() {
	if !p.Enabled() {
		return
	}
	p.startOnce.Do(func() {
		p.logger.Info("starting notifier workers", slog.Int("workers", p.cfg.Workers))
		for i := 0; i < p.cfg.Workers; i++ {
			p.wg.Add(1)
			go p.worker()
		}
	})
}

// Stop closes the queue and waits for queued deliveries to drain.
func (p *Pool) Stop() {
	if !p.Enabled() {
		return
	}
	p.stopOnce.Do(func() {
		close(p.queue)
		p.wg.Wait()
		p.logger.Info("notifier stopped")
	})
}

// Dispatch enqueues a level-up event without blocking. Returns false when the
// event was dropped: notifier disabled, or queue full.
func (p *Pool) Dispatch(ev model.LevelUpEvent) bool {
	if !p.Enabled() {
		return false
	}
	select {
	case p.queue <- ev:
		return true
	default:
		return false
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for ev := range p.queue {
		if err := p.send(ev); err != nil {
			p.logger.Error("notification delivery failed",
				slog.Uint64("participant", ev.Participant.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// webhookEmbed and webhookPayload are the subset of the Discord webhook
// payload this service sends.
type webhookEmbed struct {
	Description string `json:"description"`
	Image       struct {
		URL string `json:"url"`
	} `json:"image"`
}

type webhookPayload struct {
	Content   string         `json:"content"`
	Username  string         `json:"username"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Embeds    []webhookEmbed `json:"embeds"`
}

// send renders the card and posts it plus the message as multipart/form-data:
// a payload_json field with content and embed, and the card file the embed
// references via the attachment:// scheme.
func (p *Pool) send(ev model.LevelUpEvent) error {
	user := ev.Participant

	card, contentType, err := p.renderer.RenderCard(user)
	if err != nil {
		return fmt.Errorf("notify: rendering card for %d: %w", user.ID, err)
	}

	link := fmt.Sprintf("%s/card?id=%d <@%d>", p.cfg.RootURL, user.ID, user.ID)
	var embed webhookEmbed
	embed.Description = fmt.Sprintf(
		"User %s#%s (<@%d>) has reached level %d```%s```",
		user.Username, user.Discriminator, user.ID, ev.NewLevel, link,
	)
	embed.Image.URL = "attachment://card.svg"

	payload, err := json.Marshal(webhookPayload{
		Content:  link,
		Username: "levelboard notifier",
		Embeds:   []webhookEmbed{embed},
	})
	if err != nil {
		return fmt.Errorf("notify: serializing payload for %d: %w", user.ID, err)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("payload_json", string(payload)); err != nil {
		return fmt.Errorf("notify: writing payload field: %w", err)
	}
	fileHeader := make(textproto.MIMEHeader)
	fileHeader.Set("Content-Disposition", `form-data; name="files[0]"; filename="card.svg"`)
	fileHeader.Set("Content-Type", contentType)
	filePart, err := form.CreatePart(fileHeader)
	if err != nil {
		return fmt.Errorf("notify: creating file part: %w", err)
	}
	if _, err := filePart.Write(card); err != nil {
		return fmt.Errorf("notify: writing card attachment: %w", err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("notify: finalizing form: %w", err)
	}

	resp, err := p.http.Post(p.cfg.WebhookURL, form.FormDataContentType(), &body)
	if err != nil {
		return fmt.Errorf("notify: posting webhook for %d: %w", user.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
