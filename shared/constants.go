package shared

import "time"

const (
	GRANULARITY_HOURLY = "hourly"

	SOURCE_SAAVN = "jiosaavn"

	// JioSaavn serves a reduced page to obvious bots so we present
	// ourselves as a desktop browser, same as the legacy monitor did.
	USER_AGENT = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/113.0.0.0 Safari/537.36"

	// Every timestamp we read or write is civil IST in this layout.
	// Legacy files carry a trailing " IST" which loaders strip.
	TimestampLayout = "2006-01-02 15:04:05"

	TimezoneName = "Asia/Kolkata"
)

// Location is the fixed timezone for all artifacts, independent of the
// host TZ setting.
var Location = mustLoadLocation()

func mustLoadLocation() *time.Location {
	loc, err := time.LoadLocation(TimezoneName)
	if err != nil {
		panic(err)
	}
	return loc
}
