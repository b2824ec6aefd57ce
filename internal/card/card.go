// Package card renders rank-card images for participants.
//
// The card is an SVG document produced from an embedded template — SVG is
// text, so Go's template machinery is the whole rendering pipeline; no
// rasterizer is involved. The notifier attaches the SVG to webhook messages
// and the /card endpoint serves it directly (browsers render SVG natively).
package card

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	_ "embed"

	"github.com/sakif/levelboard/internal/level"
	"github.com/sakif/levelboard/internal/model"
)

//go:embed card.svg.tmpl
var cardTemplate string

// ContentType is the MIME type of rendered cards.
const ContentType = "image/svg+xml"

// barMaxWidth is the progress bar's full width in the template's coordinate
// space. Must match the background bar's width attribute in card.svg.tmpl.
const barMaxWidth = 550

// Renderer renders rank cards. It fetches the participant's avatar from the
// CDN and inlines it as a base64 data URI, so the produced SVG is entirely
// self-contained — required for webhook attachments, where the receiving
// client won't resolve external references inside an image.
type Renderer struct {
	tmpl *template.Template
	http *http.Client
}

// New creates a Renderer. Panics only on a broken embedded template, which a
// test catches at build time.
func New() *Renderer {
	return &Renderer{
		tmpl: template.Must(template.New("card").Parse(cardTemplate)),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// cardContext is the data handed to the SVG template.
type cardContext struct {
	Name          string
	Discriminator string
	Level         uint64
	NextLevel     uint64
	Rank          int64
	Current       uint64 // xp into the current level
	Needed        uint64 // xp span of the current level
	Percentage    int    // 0-100, rounded
	BarWidth      int    // Percentage scaled to the bar's pixel width
	Avatar        template.URL
}

// RenderCard produces the SVG card for a participant.
// Satisfies notify.Renderer.
func (r *Renderer) RenderCard(p model.Participant) ([]byte, string, error) {
	lvl := level.FromXP(p.XP)
	progress := level.Progress(p.XP)
	pct := int(progress*100 + 0.5)

	avatar, err := r.inlineAvatar(p)
	if err != nil {
		return nil, "", fmt.Errorf("card: fetching avatar for %d: %w", p.ID, err)
	}

	ctx := cardContext{
		Name:          p.Username,
		Discriminator: p.Discriminator,
		Level:         lvl,
		NextLevel:     lvl + 1,
		Rank:          p.Rank,
		Current:       p.XP - level.ForLevel(lvl),
		Needed:        level.ForLevel(lvl+1) - level.ForLevel(lvl),
		Percentage:    pct,
		BarWidth:      pct * barMaxWidth / 100,
		Avatar:        avatar,
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, ctx); err != nil {
		return nil, "", fmt.Errorf("card: executing template for %d: %w", p.ID, err)
	}
	return buf.Bytes(), ContentType, nil
}

// inlineAvatar downloads the participant's avatar and returns it as a base64
// data URI. template.URL marks it trusted — html/template would otherwise
// reject a data: scheme in a URL attribute.
func (r *Renderer) inlineAvatar(p model.Participant) (template.URL, error) {
	resp, err := r.http.Get(p.AvatarURL())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("avatar CDN returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)
	return template.URL(uri), nil
}
