package publishers

import (
	"time"

	"github.com/samvad-hq/samvad-feed-digest/internal/logger"
)

var testGeneratedAt = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func testDelivery() Delivery {
	return Delivery{
		Filename:      "feed.csv",
		ContentType:   "text/csv",
		Body:          []byte("Source,Date,Title,Description,Link\r\nAlpha,2025-06-09T00:00:00Z,Hello,N/A,https://a.example/1\r\n"),
		Rows:          1,
		WindowDays:    7,
		ReferenceTime: testGeneratedAt,
		GeneratedAt:   testGeneratedAt,
	}
}

var noopLogger = logger.NopLogger{}
