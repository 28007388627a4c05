package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/antoniostano/jarvis/internal/reliability"
	"github.com/antoniostano/jarvis/internal/weather"
)

var greetingPhrases = []string{
	"Здравствуйте, сэр. Чем могу помочь?",
	"Приветствую вас. Готов к работе.",
	"Добрый день. Жду ваших указаний.",
	"Всегда к вашим услугам, сэр.",
}

var lightOnPhrases = []string{
	"Свет включён, сэр.",
	"Освещение активировано.",
	"Конечно, включаю свет.",
}

var lightOffPhrases = []string{
	"Свет выключен, сэр.",
	"Освещение деактивировано.",
	"Выключаю свет.",
}

const (
	shutdownPhrase        = "До свидания, сэр. Перехожу в режим ожидания."
	reminderAcknowledged  = "Хорошо, я напомню вам о: "
	reminderNotUnderstood = "Извините, я не понял, о чём вам напомнить."

	weatherNotConfigured = "К сожалению, API ключ для получения погоды не настроен."
	weatherBadStatus     = "Не удалось получить данные о погоде."
	weatherTimeout       = "Превышено время ожидания при получении данных о погоде."
	weatherFailed        = "Произошла ошибка при получении информации о погоде."
)

// timePhrase answers in Russian when the utterance is Cyrillic or mentions
// "ru", otherwise in English.
func timePhrase(text string, now time.Time) string {
	hhmm := now.Format("15:04")
	if strings.Contains(strings.ToLower(text), "ru") || hasCyrillic(text) {
		return "Сейчас " + hhmm
	}
	return "It's " + hhmm
}

func hasCyrillic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}

// WeatherLookup fetches current conditions for a city.
type WeatherLookup interface {
	Current(ctx context.Context, city string) (weather.Report, error)
}

type weatherHandler struct {
	lookup  WeatherLookup
	city    string
	display string
}

func (h *weatherHandler) answer(ctx context.Context, logger *slog.Logger) string {
	if h == nil || h.lookup == nil {
		return weatherNotConfigured
	}
	report, err := h.lookup.Current(ctx, h.city)
	if err == nil {
		display := h.display
		if display == "" {
			display = h.city
		}
		return fmt.Sprintf("Сейчас в %s %.1f градусов, %s.", display, report.Temperature, report.Description)
	}

	var se *reliability.StatusError
	switch {
	case errors.Is(err, weather.ErrNotConfigured):
		return weatherNotConfigured
	case errors.As(err, &se):
		logger.Warn("weather lookup rejected", "status", se.Code)
		return weatherBadStatus
	case errors.Is(err, context.DeadlineExceeded):
		return weatherTimeout
	default:
		logger.Error("weather lookup failed", "error", err)
		return weatherFailed
	}
}
