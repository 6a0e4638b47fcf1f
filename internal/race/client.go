package race

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// Race is one event from the Jolpica/Ergast season calendar.
type Race struct {
	Name    string `json:"raceName"`
	Round   string `json:"round"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Circuit struct {
		Name     string `json:"circuitName"`
		Location struct {
			Locality string `json:"locality"`
			Country  string `json:"country"`
		} `json:"Location"`
	} `json:"Circuit"`
}

// DateOn parses the calendar's YYYY-MM-DD race date.
func (r Race) DateOn() (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(r.Date))
}

// Key identifies a race for announce-once deduplication.
func (r Race) Key(year int) string {
	return fmt.Sprintf("%d-%s", year, strings.TrimSpace(r.Round))
}

type calendar struct {
	MRData struct {
		RaceTable struct {
			Races []Race `json:"Races"`
		} `json:"RaceTable"`
	} `json:"MRData"`
}

// Client fetches the season calendar from a Jolpica-compatible API.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	timeout time.Duration
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second},
		timeout: 10 * time.Second,
	}
}

func (c *Client) SeasonRaces(ctx context.Context, year int) ([]Race, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(fmt.Sprintf("%s/ergast/f1/%d/races.json", c.baseURL, year))

	deadline := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("calendar request: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("calendar api error: status=%d", resp.StatusCode())
	}

	races, err := ParseCalendar(resp.Body())
	if err != nil {
		return nil, err
	}
	return races, nil
}

// ParseCalendar decodes the MRData envelope into its race list.
func ParseCalendar(body []byte) ([]Race, error) {
	var cal calendar
	if err := json.Unmarshal(body, &cal); err != nil {
		return nil, fmt.Errorf("decode calendar: %w", err)
	}
	return cal.MRData.RaceTable.Races, nil
}

// NextRace returns the race with the earliest date on or after today. The
// calendar is normally sorted ascending but that is not relied on.
func NextRace(races []Race, today time.Time) (*Race, bool) {
	todayDate := calendarDate(today)
	var (
		best     *Race
		bestDate time.Time
	)
	for i := range races {
		d, err := races[i].DateOn()
		if err != nil || d.Before(todayDate) {
			continue
		}
		if best == nil || d.Before(bestDate) {
			best = &races[i]
			bestDate = d
		}
	}
	return best, best != nil
}

// SortByDate orders races ascending by date, unparseable dates last.
func SortByDate(races []Race) {
	sort.SliceStable(races, func(i, j int) bool {
		di, erri := races[i].DateOn()
		dj, errj := races[j].DateOn()
		if erri != nil {
			return false
		}
		if errj != nil {
			return true
		}
		return di.Before(dj)
	})
}

// DaysUntil counts whole days from today to the race date; negative for past
// races, large negative sentinel when the date cannot be parsed.
func DaysUntil(r Race, today time.Time) int {
	d, err := r.DateOn()
	if err != nil {
		return -1 << 20
	}
	return int(d.Sub(calendarDate(today)).Hours() / 24)
}

// calendarDate projects a wall-clock instant onto the same UTC midnight the
// parsed race dates use, so comparisons work on calendar days no matter what
// timezone the process runs in.
func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
