package privacy

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// Hook is a logrus hook that redacts the message and string or error fields
// of every entry.
type Hook struct {
	redactor *Redactor
}

// NewHook creates a hook backed by r.
func NewHook(r *Redactor) *Hook {
	return &Hook{redactor: r}
}

func (h *Hook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *Hook) Fire(entry *logrus.Entry) error {
	entry.Message = h.redactor.String(entry.Message)
	for k, v := range entry.Data {
		switch val := v.(type) {
		case string:
			entry.Data[k] = h.redactor.String(val)
		case error:
			entry.Data[k] = errors.New(h.redactor.String(val.Error()))
		}
	}
	return nil
}
