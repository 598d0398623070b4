package session

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const flashCookieName = "haven_flash"

// Flash is a one-shot message rendered on the next page load.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// AddFlash queues a flash message for the next rendered page.
func AddFlash(c *fiber.Ctx, category, message string) {
	flashes := readFlashes(c)
	flashes = append(flashes, Flash{Category: category, Message: message})

	payload, err := json.Marshal(flashes)
	if err != nil {
		return
	}
	c.Cookie(&fiber.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(payload),
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// PopFlashes returns all queued flash messages and clears them.
func PopFlashes(c *fiber.Ctx) []Flash {
	flashes := readFlashes(c)
	if len(flashes) == 0 {
		return nil
	}
	c.Cookie(&fiber.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return flashes
}

func readFlashes(c *fiber.Ctx) []Flash {
	// Prefer a value set earlier in this request (AddFlash then PopFlashes
	// within one handler chain), falling back to the request cookie.
	raw := string(c.Response().Header.PeekCookie(flashCookieName))
	if raw != "" {
		if idx := strings.IndexByte(raw, '='); idx >= 0 {
			raw = raw[idx+1:]
		}
		if idx := strings.IndexByte(raw, ';'); idx >= 0 {
			raw = raw[:idx]
		}
	}
	if raw == "" {
		raw = c.Cookies(flashCookieName)
	}
	if raw == "" {
		return nil
	}

	payload, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	var flashes []Flash
	if err := json.Unmarshal(payload, &flashes); err != nil {
		return nil
	}
	return flashes
}
