// Package cli runs the interactive terminal client on top of an assistant
// session.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"health-assistant/internal/assistant"
	"health-assistant/internal/attachments"
	"health-assistant/internal/domain"
	"health-assistant/internal/hospitals"
	"health-assistant/internal/location"
	"health-assistant/internal/maps"
)

const helpText = `Commands:
  /lang [value]         show or switch the reply language
  /image <path> [text]  send an image with an optional caption
  /hospitals [lat lng]  list nearby hospitals
  /emergency            show the ambulance number
  /history              print the current transcript
  /help                 show this help
  /quit                 exit
Anything else is sent as a message.
`

type HospitalFinder interface {
	Nearby(ctx context.Context, center *domain.Coordinate) (hospitals.Result, error)
}

// Console reads commands from In and writes replies to Out.
type Console struct {
	Session   *assistant.Session
	Hospitals HospitalFinder
	In        io.Reader
	Out       io.Writer
	// ReadFile loads images for /image; os.ReadFile when nil.
	ReadFile func(name string) ([]byte, error)
}

// Run loops until /quit, end of input or ctx cancellation.
func (c *Console) Run(ctx context.Context) error {
	if c.Session == nil {
		return errors.New("cli: session must not be nil")
	}
	if err := c.Session.Load(ctx); err != nil {
		c.printf("Could not load your chat history: %v\n", err)
	}
	c.printBanner()
	c.printTranscript()

	scanner := bufio.NewScanner(c.In)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		c.printf("> ")
		if !scanner.Scan() {
			c.printf("\n")
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if quit := c.dispatch(ctx, line); quit {
			return nil
		}
	}
}

func (c *Console) dispatch(ctx context.Context, line string) bool {
	if !strings.HasPrefix(line, "/") {
		c.send(ctx, assistant.SendInput{Text: line})
		return false
	}

	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		c.printf("%s", helpText)
	case "/lang":
		c.language(ctx, rest)
	case "/image":
		c.image(ctx, rest)
	case "/hospitals":
		c.hospitals(ctx, rest)
	case "/emergency":
		c.printf("🚑 Emergency: call 108 (%s)\n", domain.EmergencyURI)
	case "/history":
		c.printTranscript()
	default:
		c.printf("Unknown command %s. Type /help for commands.\n", cmd)
	}
	return false
}

func (c *Console) printBanner() {
	mode := "connected"
	if c.Session.LocalMode() {
		mode = "local mode"
	}
	saved := "not saved"
	if c.Session.Persistent() {
		saved = "saved to your account"
	}
	c.printf("Health assistant (%s, chat %s). Type /help for commands.\n", mode, saved)
	c.printf("This assistant gives general information only. For emergencies call 108.\n\n")
}

func (c *Console) printTranscript() {
	for _, m := range c.Session.Messages() {
		who := "Assistant"
		if m.Role == domain.RoleUser {
			who = "You"
		}
		c.printf("%s: %s\n", who, m.Content)
		if m.ImageURL != "" && !strings.HasPrefix(m.ImageURL, "data:") {
			c.printf("    [image] %s\n", m.ImageURL)
		}
	}
}

func (c *Console) send(ctx context.Context, in assistant.SendInput) {
	printed := 0
	c.printf("Assistant: ")
	_, err := c.Session.Send(ctx, in, func(content string) {
		if len(content) > printed {
			c.printf("%s", content[printed:])
			printed = len(content)
		}
	})
	if printed > 0 {
		c.printf("\n")
	}
	if err != nil {
		c.printf("\n⚠ %s\n", sendErrorText(err))
	}
}

func sendErrorText(err error) string {
	switch {
	case errors.Is(err, assistant.ErrBusy), errors.Is(err, assistant.ErrEmptyMessage):
		return err.Error()
	case errors.Is(err, attachments.ErrNotImage), errors.Is(err, attachments.ErrTooLarge),
		errors.Is(err, attachments.ErrAuthRequired), errors.Is(err, attachments.ErrPolicyDenied),
		errors.Is(err, attachments.ErrBucketNotFound), errors.Is(err, attachments.ErrSessionExpired):
		return attachments.Remediation(err)
	}
	var status interface{ HTTPStatusCode() int }
	if errors.As(err, &status) {
		return err.Error()
	}
	return "Failed to get a response: " + err.Error()
}

func (c *Console) language(ctx context.Context, arg string) {
	if arg == "" {
		current := c.Session.Language()
		for _, info := range domain.Languages() {
			marker := " "
			if info.Value == current {
				marker = "*"
			}
			c.printf("%s %-8s %s\n", marker, info.Value, info.Label)
		}
		return
	}
	lang, ok := domain.ParseLanguage(arg)
	if !ok {
		c.printf("Unknown language %q. Type /lang to list them.\n", arg)
		return
	}
	if err := c.Session.SetLanguage(ctx, lang); err != nil {
		if errors.Is(err, assistant.ErrBusy) {
			c.printf("⚠ %s\n", err)
			return
		}
		c.printf("Could not load your chat history: %v\n", err)
	}
	c.printf("Language: %s\n", lang.Info().Label)
	c.printTranscript()
}

func (c *Console) image(ctx context.Context, arg string) {
	path, caption, _ := strings.Cut(arg, " ")
	if path == "" {
		c.printf("Usage: /image <path> [text]\n")
		return
	}
	read := c.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	data, err := read(path)
	if err != nil {
		c.printf("⚠ Could not read %s: %v\n", path, err)
		return
	}
	img := attachments.Image{
		Name:        filepath.Base(path),
		ContentType: imageContentType(path, data),
		Data:        data,
	}
	c.send(ctx, assistant.SendInput{Text: strings.TrimSpace(caption), Image: &img})
}

func imageContentType(path string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

func (c *Console) hospitals(ctx context.Context, arg string) {
	if c.Hospitals == nil {
		c.printf("Hospital search is not configured.\n")
		return
	}
	var center *domain.Coordinate
	if fields := strings.Fields(arg); len(fields) > 0 {
		if len(fields) != 2 {
			c.printf("Usage: /hospitals [lat lng]\n")
			return
		}
		lat, err1 := strconv.ParseFloat(fields[0], 64)
		lng, err2 := strconv.ParseFloat(fields[1], 64)
		if err1 != nil || err2 != nil {
			c.printf("Usage: /hospitals [lat lng]\n")
			return
		}
		center = &domain.Coordinate{Lat: lat, Lng: lng}
	}

	c.printf("Searching for nearby hospitals...\n")
	res, err := c.Hospitals.Nearby(ctx, center)
	if err != nil {
		c.printf("⚠ %s\n", hospitalErrorText(err))
		return
	}
	if res.Empty() {
		c.printf("%s\n", hospitals.NoHospitalsMessage)
		return
	}
	if err := (maps.TextRenderer{W: c.Out}).RenderMarkers(maps.Markers(res)); err != nil {
		c.printf("⚠ %v\n", err)
	}
}

func hospitalErrorText(err error) string {
	for _, sentinel := range []error{location.ErrPermissionDenied, location.ErrTimeout, location.ErrUnavailable} {
		if errors.Is(err, sentinel) {
			return sentinel.Error() + ". Pass coordinates instead: /hospitals <lat> <lng>"
		}
	}
	return "Failed to search for hospitals. Please try again or check your internet connection."
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.Out, format, args...)
}
