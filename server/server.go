package server

import (
	"bufio"
	"bytes"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cache"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"mmfeed/models"
)

//go:embed static/*
var static embed.FS

type ServerConfig struct {

	// Items behind /api/pmap
	Items *Items

	// Broadcast channels to pass item events to SSE clients
	Broadcaster *Broadcaster

	// Token the webhook caller must send. Webhook calls are refused when empty.
	WebhookToken string

	// Text before the quoted item in WhatsApp contact links
	ContactMessage string

	// Notice shown above the feed on the page
	Welcome string

	// How often the page reloads itself, zero disables it
	RefreshInterval time.Duration
}

// Returns a fiber.App instance to be used as an HTTP server for the feed
func Server(config *ServerConfig) *fiber.App {

	items := config.Items
	bc := config.Broadcaster
	if bc == nil {
		bc = NewBroadcaster()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		latency := time.Since(start)
		requestDuration.WithLabelValues(c.Method(), c.Route().Path).Observe(latency.Seconds())

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"status":  c.Response().StatusCode(),
			"latency": latency,
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New(compress.Config{
		Next: func(c *fiber.Ctx) bool {
			return strings.HasSuffix(c.Path(), "/sse")
		},
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Content-Type, Authorization",
		MaxAge:       86400,
	}))

	// Only the embedded assets are cacheable
	app.Use(cache.New(cache.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Method() != fiber.MethodGet || !strings.HasPrefix(c.Path(), "/static/")
		},
		Expiration:   time.Hour,
		CacheControl: true,
	}))

	app.Use("/static", filesystem.New(filesystem.Config{
		Browse:     false,
		Root:       http.FS(static),
		PathPrefix: "/static",
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/api/pmap", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.JSON(models.ItemsResponse{Ok: true, Items: items.Snapshot()})
	})

	app.Post("/api/pmap", func(c *fiber.Ctx) error {
		value, code := parsePutRequest(c.Body())
		if code != "" {
			return fail(c, fiber.StatusBadRequest, code)
		}

		key, err := items.Create(value, "api")
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error creating item")
			return fail(c, fiber.StatusInternalServerError, "io_error")
		}

		return c.Status(fiber.StatusCreated).JSON(models.CreatedResponse{Ok: true, Key: key})
	})

	// Registered before /api/pmap/:k so the stream is not taken for a key
	app.Get("/api/pmap/sse", sseHandler(bc))

	app.Get("/api/pmap/:k", func(c *fiber.Ctx) error {
		key := keyParam(c)
		value, ok := items.Get(key)
		if !ok {
			return fail(c, fiber.StatusNotFound, "not_found")
		}
		return c.JSON(models.ItemResponse{Ok: true, Key: key, Value: value})
	})

	app.Delete("/api/pmap/:k", func(c *fiber.Ctx) error {
		key := keyParam(c)
		removed, err := items.Delete(key)
		if err != nil {
			log.WithFields(log.Fields{
				"key":   key,
				"error": err,
			}).Error("Error deleting item")
			return fail(c, fiber.StatusInternalServerError, "io_error")
		}
		if !removed {
			return fail(c, fiber.StatusNotFound, "not_found")
		}
		return c.JSON(fiber.Map{"ok": true})
	})

	app.Post("/wabox/hook", webhookHandler(items, config.WebhookToken))

	p := &page{
		items:          items,
		contactMessage: config.ContactMessage,
		welcome:        config.Welcome,
		refresh:        config.RefreshInterval,
	}
	app.Get("/", p.show)
	app.Post("/feed/post", p.post)
	app.Post("/feed/delete", p.delete)

	return app
}

func fail(c *fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(models.ErrorResponse{Ok: false, Error: code})
}

func keyParam(c *fiber.Ctx) string {
	raw := c.Params("k")
	key, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return key
}

// parsePutRequest extracts "v" from a POST body. A JSON string is used as is,
// any other non-null JSON value is kept as its JSON text. The returned code is
// empty on success.
func parsePutRequest(body []byte) (string, string) {
	if !json.Valid(body) {
		return "", "invalid_json"
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", "missing_value"
	}

	raw, ok := fields["v"]
	raw = bytes.TrimSpace(raw)
	if !ok || len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", "missing_value"
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", "invalid_json"
		}
		return s, ""
	}
	return string(raw), ""
}

// webhookValue is how an incoming chat message is stored
type webhookValue struct {
	Text  string `json:"text"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"wa,omitempty"`
}

func webhookHandler(items *Items, token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		given := c.FormValue("token")
		if token == "" || subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
			return fail(c, fiber.StatusForbidden, "forbidden")
		}

		event := c.FormValue("event")
		if event == "" {
			return fail(c, fiber.StatusBadRequest, "missing_event")
		}

		switch event {
		case "message":
			webhookEvents.WithLabelValues(event).Inc()

			// An empty text is still a message, only a missing one is skipped
			text := c.FormValue("message[body][text]")
			if !strings.EqualFold(c.FormValue("message[dir]"), "i") ||
				!strings.EqualFold(c.FormValue("message[type]"), "chat") ||
				!hasFormValue(c, "message[body][text]") {
				return c.JSON(fiber.Map{"ok": true})
			}

			value := text
			name := c.FormValue("contact[name]")
			phone := c.FormValue("contact[uid]")
			if name != "" || phone != "" {
				encoded, err := json.Marshal(webhookValue{Text: text, Name: name, Phone: phone})
				if err == nil {
					value = string(encoded)
				}
			}

			// Answer 200 even when storing fails so the message is not redelivered
			if _, err := items.Create(value, "webhook"); err != nil {
				log.WithFields(log.Fields{
					"error": err,
				}).Error("Error storing webhook message")
			}
			return c.JSON(fiber.Map{"ok": true})

		case "ack":
			webhookEvents.WithLabelValues(event).Inc()
			log.WithFields(log.Fields{
				"cuid": c.FormValue("cuid"),
				"ack":  c.FormValue("ack"),
			}).Debug("Webhook ack")
			return c.JSON(fiber.Map{"ok": true})

		default:
			return c.SendStatus(fiber.StatusNoContent)
		}
	}
}

// hasFormValue reports whether the form carries key, even with an empty value
func hasFormValue(c *fiber.Ctx, key string) bool {
	if c.Request().PostArgs().Has(key) {
		return true
	}
	if form, err := c.MultipartForm(); err == nil {
		_, ok := form.Value[key]
		return ok
	}
	return false
}

func sseHandler(bc *Broadcaster) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("Transfer-Encoding", "chunked")

		// Unique client key
		key := uuid.New().String()
		putChannel := make(chan models.PutItemEvent, 10)
		removeChannel := make(chan models.RemoveItemEvent, 10)
		aliveChan := time.NewTicker(5 * time.Second)

		bc.AddClient(key, putChannel, removeChannel)
		sseClients.Inc()

		cleanup := func() {
			log.Infof("Cleaning up SSE stream for client: %s", key)
			aliveChan.Stop()
			bc.RemoveClient(key)
			sseClients.Dec()
		}

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer cleanup()

			// Send initial event with client key
			fmt.Fprintf(w, "event: init\ndata: %s\n\n", key)
			if err := w.Flush(); err != nil {
				log.Errorf("Failed to send init event: %v", err)
				return
			}

			for {
				select {
				case <-aliveChan.C:
					if _, err := fmt.Fprintf(w, "event: ping\ndata: \n\n"); err != nil {
						log.Warnf("Failed to send ping to client %s: %v", key, err)
						return
					}
					if err := w.Flush(); err != nil {
						log.Warnf("Failed to flush ping for client %s: %v", key, err)
						return
					}

				case event, ok := <-putChannel:
					if !ok {
						return
					}
					if err := writeEvent(w, "put", event.Item); err != nil {
						log.Warnf("Failed to send put event to client %s: %v", key, err)
						return
					}

				case event, ok := <-removeChannel:
					if !ok {
						return
					}
					if err := writeEvent(w, "remove", event); err != nil {
						log.Warnf("Failed to send remove event to client %s: %v", key, err)
						return
					}
				}
			}
		}))

		return nil
	}
}

func writeEvent(w *bufio.Writer, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return w.Flush()
}
