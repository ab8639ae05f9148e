package server

import (
	"embed"
	"errors"
	"html/template"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"mmfeed/feed"
	"mmfeed/theme"
)

//go:embed templates/*.html
var templates embed.FS

var pageTemplate = template.Must(template.ParseFS(templates, "templates/page.html"))

type pageData struct {
	Theme   theme.Theme
	Toggle  theme.Theme
	Icon    string
	Refresh int
	Count   int
	Entries []feed.Entry
}

// page renders the feed on the server with a synchronizer over the local
// store, one synchronizer per request.
type page struct {
	items          *Items
	contactMessage string
	welcome        string
	refresh        time.Duration
}

func (p *page) load(c *fiber.Ctx) (*feed.Synchronizer, *feed.List) {
	list := feed.NewList()
	sync := feed.New(localSource{items: p.items}, list, feed.WithContactMessage(p.contactMessage))
	if err := sync.LoadAll(c.UserContext(), false); err == nil && p.welcome != "" {
		list.Notice(p.welcome)
	}
	return sync, list
}

func (p *page) render(c *fiber.Ctx, list *feed.List, status int) error {
	t := pageTheme(c)
	entries := list.Entries()

	data := pageData{
		Theme:   t,
		Toggle:  t.Toggle(),
		Icon:    t.Icon(),
		Refresh: int(p.refresh.Seconds()),
		Count:   len(list.Keys()),
		Entries: entries,
	}

	c.Set("Accept-CH", "Sec-CH-Prefers-Color-Scheme")
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Type("html", "utf-8")
	c.Status(status)
	return pageTemplate.Execute(c.Response().BodyWriter(), data)
}

func (p *page) show(c *fiber.Ctx) error {
	_, list := p.load(c)
	return p.render(c, list, fiber.StatusOK)
}

func (p *page) post(c *fiber.Ctx) error {
	sync, list := p.load(c)

	err := sync.Post(c.UserContext(), c.FormValue("text"))
	if err == nil || errors.Is(err, feed.ErrEmptyMessage) {
		return c.Redirect("/", fiber.StatusSeeOther)
	}

	log.WithFields(log.Fields{
		"error": err,
	}).Error("Error posting from page")
	return p.render(c, list, fiber.StatusInternalServerError)
}

func (p *page) delete(c *fiber.Ctx) error {
	sync, list := p.load(c)

	if err := sync.Delete(c.UserContext(), c.FormValue("id")); err != nil {
		return p.render(c, list, fiber.StatusNotFound)
	}
	return c.Redirect("/", fiber.StatusSeeOther)
}

// pageTheme picks the theme from ?theme=, then the mm_theme cookie, then the
// client's color scheme hint. A valid ?theme= is saved in the cookie.
func pageTheme(c *fiber.Ctx) theme.Theme {
	if q := c.Query("theme"); q != "" {
		if t, err := theme.Parse(q); err == nil {
			c.Cookie(&fiber.Cookie{
				Name:     theme.Key,
				Value:    string(t),
				Path:     "/",
				MaxAge:   365 * 24 * 60 * 60,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
			return t
		}
	}

	saved, err := theme.Parse(c.Cookies(theme.Key))
	return theme.Resolve(saved, err == nil, c.Get("Sec-CH-Prefers-Color-Scheme") == "dark")
}
