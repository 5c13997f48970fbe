package tradier

import (
	"bytes"
	"time"

	"github.com/xhhuango/json"
)

// QuoteHistory is the body of /v1/markets/history.
type QuoteHistory struct {
	History struct {
		Day Days `json:"day"`
	} `json:"history"`
}

type Day struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int     `json:"volume"`
}

// Time parses the bar's date.
func (d Day) Time() (time.Time, error) {
	return time.Parse(dateLayout, d.Date)
}

// Days decodes the "day" field, which the API sends as an object when the
// range holds a single bar and as an array otherwise.
type Days []Day

func (d *Days) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*d = nil
		return nil
	case len(data) > 0 && data[0] == '{':
		var one Day
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*d = Days{one}
		return nil
	}
	var many []Day
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*d = many
	return nil
}

// Days returns the bars oldest first.
func (q *QuoteHistory) Days() []Day {
	if q == nil {
		return nil
	}
	return q.History.Day
}

// Closes returns the closing prices oldest first.
func (q *QuoteHistory) Closes() []float64 {
	days := q.Days()
	closes := make([]float64, len(days))
	for i, d := range days {
		closes[i] = d.Close
	}
	return closes
}

// Last returns the most recent bar.
func (q *QuoteHistory) Last() (Day, bool) {
	days := q.Days()
	if len(days) == 0 {
		return Day{}, false
	}
	return days[len(days)-1], true
}

// Window returns the last n bars, or every bar when fewer exist.
func (q *QuoteHistory) Window(n int) []Day {
	days := q.Days()
	if n <= 0 || n >= len(days) {
		return days
	}
	return days[len(days)-n:]
}
