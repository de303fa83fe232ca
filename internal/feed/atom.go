// Package feed renders the active offers as Atom 1.0 feeds and publishes
// changed files to the data directory and the FTP server.
// atom.go builds the documents.
package feed

import (
	"encoding/xml"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"freeloot.dev/lootscraper/internal/common"
	"freeloot.dev/lootscraper/internal/config"
	"freeloot.dev/lootscraper/internal/features/games"
	"freeloot.dev/lootscraper/internal/features/offers"
)

const generatorName = "LootScraper"

type atomFeed struct {
	XMLName   xml.Name    `xml:"http://www.w3.org/2005/Atom feed"`
	ID        string      `xml:"id"`
	Title     string      `xml:"title"`
	Updated   string      `xml:"updated"`
	Author    *atomPerson `xml:"author,omitempty"`
	Links     []atomLink  `xml:"link"`
	Generator string      `xml:"generator,omitempty"`
	Entries   []atomEntry `xml:"entry"`
}

type atomPerson struct {
	Name  string `xml:"name"`
	Email string `xml:"email,omitempty"`
	URI   string `xml:"uri,omitempty"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr,omitempty"`
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr,omitempty"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomContent struct {
	Type string    `xml:"type,attr"`
	Div  xhtmlBody `xml:"http://www.w3.org/1999/xhtml div"`
}

type xhtmlBody struct {
	Inner string `xml:",innerxml"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Updated    string         `xml:"updated"`
	Published  string         `xml:"published"`
	Links      []atomLink     `xml:"link"`
	Categories []atomCategory `xml:"category"`
	Content    *atomContent   `xml:"content,omitempty"`
}

// Item is one offer together with the game it was linked to, if any.
type Item struct {
	Offer offers.Offer
	Game  *games.Details
}

// Generator renders feeds with the configured ids, links and author.
type Generator struct {
	cfg    config.FeedConfig
	prefix string
}

// NewGenerator creates a generator. prefix is the file name prefix.
func NewGenerator(cfg config.FeedConfig, prefix string) *Generator {
	return &Generator{cfg: cfg, prefix: prefix}
}

// FileName is "<prefix>_<source>_<type>[_<duration>].xml", or "<prefix>.xml"
// for the combined feed (nil key).
func (g *Generator) FileName(key *offers.Key) string {
	if key == nil {
		return g.prefix + ".xml"
	}
	return g.prefix + "_" + key.Slug() + ".xml"
}

// Build renders items, newest first, into an Atom document.
func (g *Generator) Build(key *offers.Key, items []Item) ([]byte, error) {
	items = append([]Item(nil), items...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Offer.ID > items[j].Offer.ID })

	f := atomFeed{
		ID:        g.cfg.IDPrefix + feedIDSuffix(key),
		Title:     feedTitle(key),
		Links:     []atomLink{{Rel: "self", Href: g.cfg.URLPrefix + g.FileName(key), Type: "application/atom+xml"}},
		Generator: generatorName,
	}
	if g.cfg.URLAlternate != "" {
		f.Links = append(f.Links, atomLink{Rel: "alternate", Href: g.cfg.URLAlternate})
	}
	if g.cfg.AuthorName != "" {
		f.Author = &atomPerson{Name: g.cfg.AuthorName, Email: g.cfg.AuthorEmail, URI: g.cfg.AuthorWeb}
	}

	// An empty feed gets a fixed date so it stays byte-identical between runs.
	updated := time.Unix(0, 0).UTC()
	for _, it := range items {
		e := g.entry(it)
		if u := entryUpdated(&it.Offer); u.After(updated) {
			updated = u
		}
		f.Entries = append(f.Entries, e)
	}
	f.Updated = atomTime(updated)

	out, err := xml.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal feed %s: %w", g.FileName(key), err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

func (g *Generator) entry(it Item) atomEntry {
	o := &it.Offer
	e := atomEntry{
		ID:        fmt.Sprintf("%s%d", g.cfg.IDPrefix, o.ID),
		Title:     o.Headline(),
		Updated:   atomTime(entryUpdated(o)),
		Published: atomTime(o.SeenFirst),
		Content:   &atomContent{Type: "xhtml", Div: xhtmlBody{Inner: entryContent(it)}},
	}
	if o.URL != "" {
		e.Links = append(e.Links, atomLink{Rel: "alternate", Href: o.URL})
	}
	for _, genre := range it.Game.Genres() {
		e.Categories = append(e.Categories, atomCategory{Term: genre})
	}
	return e
}

func feedIDSuffix(key *offers.Key) string {
	if key == nil {
		return ""
	}
	id := strings.ToLower(string(key.Source) + string(key.Type))
	if key.Duration != common.DurationClaimable {
		id += strings.ToLower(string(key.Duration))
	}
	return id
}

func feedTitle(key *offers.Key) string {
	if key == nil {
		return "Free Games and Loot"
	}
	return "Free " + key.Label()
}

// entryUpdated is the later of valid-from and seen-first.
func entryUpdated(o *offers.Offer) time.Time {
	if o.ValidFrom != nil && o.ValidFrom.After(o.SeenFirst) {
		return *o.ValidFrom
	}
	return o.SeenFirst
}

func atomTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// entryContent renders the long description of an offer as xhtml.
func entryContent(it Item) string {
	o := &it.Offer
	var b strings.Builder
	esc := html.EscapeString

	if o.ImgURL != "" {
		fmt.Fprintf(&b, `<img src="%s" />`, esc(o.ImgURL))
	}
	b.WriteString("<ol>")
	if o.ValidTo != nil {
		fmt.Fprintf(&b, "<li><b>Offer valid until:</b> %s</li>", esc(common.FormatDateTime(*o.ValidTo, 0)))
	} else {
		b.WriteString("<li><b>Offer valid until:</b> unknown</li>")
	}
	if o.URL != "" {
		fmt.Fprintf(&b, `<li><b>Claim:</b> <a href="%s">%s</a></li>`, esc(o.URL), esc(o.Source.DisplayName()))
	}
	b.WriteString("</ol>")

	d := it.Game
	if !d.HasInfo() {
		return b.String()
	}
	fmt.Fprintf(&b, "<p>About the game (<b>%s</b>, <i>Source: %s</i>):</p><ul>", esc(d.Name()), esc(d.Sources()))
	for _, f := range d.Facts() {
		fmt.Fprintf(&b, "<li><b>%s:</b> %s</li>", esc(f.Label), esc(f.Value))
	}
	b.WriteString("</ul>")
	if desc := d.Description(); desc != "" {
		fmt.Fprintf(&b, "<p>%s</p>", esc(desc))
	}
	return b.String()
}
