package publishers

import (
	"encoding/json"
	"path"
	"strings"
	"time"
)

// Delivery is a rendered report handed to every sink.
type Delivery struct {
	Filename      string    `json:"filename"`
	ContentType   string    `json:"content_type"`
	Body          []byte    `json:"-"`
	Rows          int       `json:"rows"`
	WindowDays    int       `json:"window_days"`
	ReferenceTime time.Time `json:"reference_time"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// reportNotice is the message body sent to queue and topic sinks.
type reportNotice struct {
	Delivery
	Report string `json:"report"`
}

func (d Delivery) notice() ([]byte, error) {
	return json.Marshal(reportNotice{Delivery: d, Report: string(d.Body)})
}

// objectKey joins prefix and the delivery filename. With dated set the
// generation date is inserted as its own path segment.
func (d Delivery) objectKey(prefix string, dated bool) string {
	parts := []string{}
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	if dated {
		parts = append(parts, d.GeneratedAt.UTC().Format("2006-01-02"))
	}
	parts = append(parts, d.Filename)
	return path.Join(parts...)
}
