package command

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"
)

// Kind says whether an utterance was answered locally or needs the
// conversational engine.
type Kind string

const (
	KindPredefined     Kind = "predefined"
	KindConversational Kind = "conversational"
)

// Handler tags.
const (
	HandlerGreeting       = "greeting"
	HandlerTime           = "time"
	HandlerLightOn        = "light_on"
	HandlerLightOff       = "light_off"
	HandlerWeather        = "weather"
	HandlerShutdown       = "shutdown"
	HandlerReminder       = "reminder"
	HandlerConversational = "conversational"
)

// Result is the outcome of routing one utterance. Text is empty for
// conversational results.
type Result struct {
	Text     string
	Kind     Kind
	Handler  string
	Pattern  string
	Reminder *Reminder
}

// Picker returns an index in [0, n). It is the router's only entropy source.
type Picker func(n int) int

// Clock returns the current local time.
type Clock func() time.Time

type rule struct {
	patterns []string
	handler  string
}

// Table order is significant: the first pattern found in the text wins.
var rules = []rule{
	{patterns: []string{"привет джарвис", "hello jarvis"}, handler: HandlerGreeting},
	{patterns: []string{"какое время", "what time"}, handler: HandlerTime},
	{patterns: []string{"включить свет", "turn on light"}, handler: HandlerLightOn},
	{patterns: []string{"выключить свет", "turn off light"}, handler: HandlerLightOff},
	{patterns: []string{"какая погода", "what's the weather"}, handler: HandlerWeather},
	{patterns: []string{"выключись", "стоп", "stop", "shutdown"}, handler: HandlerShutdown},
}

var (
	reminderTriggers = []string{"напомни", "remind me"}
	reminderTrigger  = regexp.MustCompile(`(?i)remind\s+me`)
	reminderFiller   = map[string]bool{"напомни": true, "мне": true, "о": true, "об": true, "about": true}
)

// Router classifies utterances into fixed commands or a conversational
// fallback.
type Router struct {
	pick    Picker
	now     Clock
	weather *weatherHandler
	logger  *slog.Logger
}

type Option func(*Router)

func WithPicker(p Picker) Option {
	return func(r *Router) {
		if p != nil {
			r.pick = p
		}
	}
}

func WithClock(c Clock) Option {
	return func(r *Router) {
		if c != nil {
			r.now = c
		}
	}
}

// WithWeather enables live weather answers for city. display is the city name
// as it should appear in the spoken sentence.
func WithWeather(lookup WeatherLookup, city, display string) Option {
	return func(r *Router) {
		r.weather = &weatherHandler{lookup: lookup, city: city, display: display}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRouter(opts ...Option) *Router {
	r := &Router{
		pick:    rand.IntN,
		now:     time.Now,
		weather: &weatherHandler{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route classifies text. Reminders created by the utterance are appended to
// reminders, which may be nil when the caller keeps no reminder list.
func (r *Router) Route(ctx context.Context, text string, reminders *Reminders) Result {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Result{Kind: KindConversational, Handler: HandlerConversational}
	}

	for _, rl := range rules {
		for _, p := range rl.patterns {
			if !strings.Contains(lower, p) {
				continue
			}
			r.logger.Debug("command matched", "pattern", p, "handler", rl.handler)
			return Result{
				Text:    r.respond(ctx, rl.handler, text),
				Kind:    KindPredefined,
				Handler: rl.handler,
				Pattern: p,
			}
		}
	}

	for _, trigger := range reminderTriggers {
		if strings.Contains(lower, trigger) {
			res := Result{Kind: KindPredefined, Handler: HandlerReminder, Pattern: trigger}
			res.Text, res.Reminder = r.remind(text, reminders)
			return res
		}
	}

	return Result{Kind: KindConversational, Handler: HandlerConversational}
}

func (r *Router) respond(ctx context.Context, handler, text string) string {
	switch handler {
	case HandlerGreeting:
		return r.choose(greetingPhrases)
	case HandlerTime:
		return timePhrase(text, r.now())
	case HandlerLightOn:
		r.logger.Info("light on command executed")
		return r.choose(lightOnPhrases)
	case HandlerLightOff:
		r.logger.Info("light off command executed")
		return r.choose(lightOffPhrases)
	case HandlerWeather:
		return r.weather.answer(ctx, r.logger)
	case HandlerShutdown:
		return shutdownPhrase
	default:
		return ""
	}
}

func (r *Router) remind(text string, reminders *Reminders) (string, *Reminder) {
	body := reminderBody(text)
	if body == "" {
		return reminderNotUnderstood, nil
	}
	rem := Reminder{Text: body, CreatedAt: r.now()}
	if reminders != nil {
		reminders.Add(rem)
	}
	return reminderAcknowledged + body, &rem
}

// reminderBody drops the trigger and filler words. Only whole words are
// removed, so "о" inside "молоко" survives.
func reminderBody(text string) string {
	words := strings.Fields(reminderTrigger.ReplaceAllString(text, " "))
	kept := words[:0]
	for _, w := range words {
		if reminderFiller[strings.ToLower(strings.Trim(w, ",.!?:"))] {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

func (r *Router) choose(phrases []string) string {
	i := r.pick(len(phrases))
	if i < 0 || i >= len(phrases) {
		i = 0
	}
	return phrases[i]
}
